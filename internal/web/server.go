// Package web serves the bridge's JSON API and the WebSocket event stream.
package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"lor-go-bridge/internal/automation"
	"lor-go-bridge/internal/director"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version string reported by the API.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP server for the bridge API.
type Server struct {
	dir            *director.Director
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates a new web server.
func NewServer(dir *director.Director, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		dir:    dir,
		logger: logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Every director event is mirrored onto the WebSocket stream.
	s.unsubEvents = dir.Events().OnAll(func(event director.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s
}

// Stop shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleAPIStatus)
	s.mux.HandleFunc("GET /api/channels", s.handleAPIListChannels)
	s.mux.HandleFunc("GET /api/units", s.handleAPIListUnits)
	s.mux.HandleFunc("GET /api/units/{unit}", s.handleAPIGetUnit)
	s.mux.HandleFunc("POST /api/units/{unit}/power", s.handleAPIUnitPower)
	s.mux.HandleFunc("POST /api/units/{unit}/channels/{channel}/set", s.handleAPIChannelSet)

	// Scripts
	s.mux.HandleFunc("GET /api/scripts", s.handleAPIListScripts)
	s.mux.HandleFunc("GET /api/scripts/{id}", s.handleAPIGetScript)
	s.mux.HandleFunc("POST /api/scripts", s.handleAPICreateScript)
	s.mux.HandleFunc("PUT /api/scripts/{id}", s.handleAPIUpdateScript)
	s.mux.HandleFunc("DELETE /api/scripts/{id}", s.handleAPIDeleteScript)
	s.mux.HandleFunc("POST /api/scripts/{id}/toggle", s.handleAPIToggleScript)
	s.mux.HandleFunc("POST /api/scripts/{id}/run", s.handleAPIRunScript)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				// Preflight request.
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" {
		// WebSocket upgrades cannot carry custom headers from a browser, so
		// only /api/ routes are key-protected.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
