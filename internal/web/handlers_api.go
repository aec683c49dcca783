package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"lor-go-bridge/internal/lor"
	"lor-go-bridge/internal/store"
)

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	channels, err := s.dir.Channels()
	if err != nil {
		s.logger.Error("list channels", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	units, err := s.dir.Units()
	if err != nil {
		s.logger.Error("list units", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":  s.version,
		"channels": len(channels),
		"units":    len(units),
	})
}

func (s *Server) handleAPIListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.dir.Channels()
	if err != nil {
		s.logger.Error("list channels", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleAPIListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.dir.Units()
	if err != nil {
		s.logger.Error("list units", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, units)
}

// handleAPIGetUnit returns one unit's persisted state together with every
// channel recorded for it.
func (s *Server) handleAPIGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.pathUint8(w, r, "unit")
	if !ok {
		return
	}

	channels, err := s.dir.Channels()
	if err != nil {
		s.logger.Error("list channels", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var unitChannels []*store.ChannelState
	for _, st := range channels {
		if st.Unit == unit {
			unitChannels = append(unitChannels, st)
		}
	}

	resp := map[string]interface{}{
		"unit":     unit,
		"channels": unitChannels,
	}
	st, err := s.dir.Unit(unit)
	if err == nil {
		resp["on"] = st.On
		resp["updated_at"] = st.UpdatedAt
	} else if len(unitChannels) == 0 {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unit not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type unitPowerRequest struct {
	State string `json:"state"` // "ON" or "OFF"
}

func (s *Server) handleAPIUnitPower(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.pathUint8(w, r, "unit")
	if !ok {
		return
	}

	var req unitPowerRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var on bool
	switch req.State {
	case "ON", "on":
		on = true
	case "OFF", "off":
		on = false
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state must be ON or OFF"})
		return
	}

	if err := s.dir.UnitPower(lor.Unit(unit), on); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type channelSetRequest struct {
	State      string   `json:"state,omitempty"`      // "ON" or "OFF"
	Brightness *float64 `json:"brightness,omitempty"` // normalized 0-1
	Transition float64  `json:"transition,omitempty"` // seconds
	Effect     string   `json:"effect,omitempty"`     // "twinkle" or "shimmer"
}

func (s *Server) handleAPIChannelSet(w http.ResponseWriter, r *http.Request) {
	unit, ok := s.pathUint8(w, r, "unit")
	if !ok {
		return
	}
	channel, ok := s.pathUint8(w, r, "channel")
	if !ok {
		return
	}

	var req channelSetRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	u := lor.Unit(unit)
	var err error
	switch {
	case req.Effect == "twinkle":
		err = s.dir.Twinkle(u, channel)
	case req.Effect == "shimmer":
		err = s.dir.Shimmer(u, channel)
	case req.Effect != "":
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown effect"})
		return
	case req.Brightness != nil && req.Transition > 0:
		err = s.dir.Transition(u, channel, *req.Brightness, req.Transition)
	case req.Brightness != nil:
		err = s.dir.SetBrightness(u, channel, *req.Brightness)
	case req.State == "ON" || req.State == "on":
		err = s.dir.On(u, channel)
	case req.State == "OFF" || req.State == "off":
		if req.Transition > 0 {
			err = s.dir.Transition(u, channel, 0, req.Transition)
		} else {
			err = s.dir.Off(u, channel)
		}
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty command"})
		return
	}

	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathUint8 parses a numeric path value; writes a 400 response on failure.
func (s *Server) pathUint8(w http.ResponseWriter, r *http.Request, name string) (uint8, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 8)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return uint8(n), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
