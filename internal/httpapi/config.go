package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/domain"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	cfg, err := sess.Config().Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cfg == nil {
		s.writeError(w, r, domain.ErrConfigAbsent)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type thresholdsPayload struct {
	TempMax     *float64 `json:"tempMax"`
	HumidityMax *float64 `json:"humidityMax"`
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var p thresholdsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.TempMax == nil || p.HumidityMax == nil {
		badRequest(w, "bad payload: tempMax and humidityMax are required")
		return
	}
	if err := domain.ValidateThresholds(*p.TempMax, *p.HumidityMax); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	cfg, err := sess.Config().Set(r.Context(), *p.TempMax, *p.HumidityMax)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("config_updated",
		zap.Float64("temp_max", cfg.TempMax),
		zap.Float64("humidity_max", cfg.HumidityMax),
	)
	writeJSON(w, http.StatusOK, cfg)
}
