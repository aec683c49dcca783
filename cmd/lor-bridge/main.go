package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"lor-go-bridge/internal/director"
	"lor-go-bridge/internal/link"
	"lor-go-bridge/internal/lor"
	"lor-go-bridge/internal/store"
	"lor-go-bridge/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Serial struct {
		Port      string `yaml:"port"`
		Baud      int    `yaml:"baud"`
		Heartbeat string `yaml:"heartbeat"` // interval, e.g. "500ms"; "off" disables
	} `yaml:"serial"`
	Bus struct {
		Curve string `yaml:"curve"` // "linear", "squared", "xlights"
		Model string `yaml:"model"` // controller model for validation, e.g. "CTB16PC"
	} `yaml:"bus"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	switch c.Bus.Curve {
	case "", "linear", "squared", "xlights":
	default:
		return fmt.Errorf("bus.curve must be linear, squared, or xlights, got %q", c.Bus.Curve)
	}
	if c.Serial.Heartbeat != "" && c.Serial.Heartbeat != "off" {
		if _, err := time.ParseDuration(c.Serial.Heartbeat); err != nil {
			return fmt.Errorf("serial.heartbeat: %w", err)
		}
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("lor-bridge starting", "version", version)

	// Open store
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Open the serial link to the controller chain
	serialLink, err := link.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, logger)
	if err != nil {
		logger.Error("open serial link", "err", err)
		os.Exit(1)
	}
	defer serialLink.Close()

	switch cfg.Serial.Heartbeat {
	case "off":
	case "":
		serialLink.StartHeartbeat(link.DefaultHeartbeatInterval)
	default:
		interval, _ := time.ParseDuration(cfg.Serial.Heartbeat)
		serialLink.StartHeartbeat(interval)
	}

	// Create director
	events := director.NewEventBus(logger)
	dir, err := director.New(serialLink, db, events, director.Config{
		Curve: curveByName(cfg.Bus.Curve),
		Model: cfg.Bus.Model,
	}, logger)
	if err != nil {
		logger.Error("create director", "err", err)
		os.Exit(1)
	}

	// Replay the persisted picture onto the bus
	if err := dir.Start(); err != nil {
		logger.Error("start director", "err", err)
		os.Exit(1)
	}

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(dir, cfg, logger)

	// Start web server
	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)

	webServer := web.NewServer(dir, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(dir, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()

	logger.Info("goodbye")
}

func curveByName(name string) lor.Curve {
	switch name {
	case "squared":
		return lor.CurveSquared
	case "xlights":
		return lor.CurveXLights
	default:
		return lor.CurveLinear
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "lor-bridge.db"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = link.DefaultBaud
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "lor"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
