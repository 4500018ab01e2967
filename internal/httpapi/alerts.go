package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/alerting"
	"github.com/hamed0406/sensoralert/internal/domain"
)

func parseAlertID(r *http.Request) (domain.AlertID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return domain.AlertID(id), true
}

// parseFilter reads ?type=&status=&from=&to=. Dates are RFC3339.
func parseFilter(r *http.Request) (alerting.Filter, string) {
	var f alerting.Filter
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t, ok := domain.ParseType(v)
		if !ok {
			return f, "invalid type filter"
		}
		f.Type = t
	}
	if v := q.Get("status"); v != "" {
		st, ok := domain.ParseStatus(v)
		if !ok {
			return f, "invalid status filter"
		}
		f.Status = st
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, "invalid " + p.key + " filter, want RFC3339"
		}
		*p.dst = ts
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, "to must not be before from"
	}
	return f, ""
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	f, msg := parseFilter(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	list, err := s.manager(sess).List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAlertID(r)
	if !ok {
		badRequest(w, "invalid alert id")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	a, err := s.manager(sess).Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAlertID(r)
	if !ok {
		badRequest(w, "invalid alert id")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	a, err := s.manager(sess).Acknowledge(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("alert_acknowledged", zap.Int64("alert_id", int64(a.ID)))
	writeJSON(w, http.StatusOK, a)
}

type statusPayload struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAlertID(r)
	if !ok {
		badRequest(w, "invalid alert id")
		return
	}
	var p statusPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		badRequest(w, "bad payload")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	a, err := s.manager(sess).SetStatus(r.Context(), id, p.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("alert_status_set", zap.Int64("alert_id", int64(a.ID)), zap.String("status", string(a.Status)))
	writeJSON(w, http.StatusOK, a)
}
