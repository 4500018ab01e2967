package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/alerting"
	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/fanout"
	apimw "github.com/hamed0406/sensoralert/internal/httpapi/middleware"
	"github.com/hamed0406/sensoralert/internal/repo"
)

type Server struct {
	Logger *zap.Logger
	Stores repo.Provider
	Hub    *fanout.Hub
	Now    func() time.Time
}

func NewServer(l *zap.Logger, stores repo.Provider, hub *fanout.Hub) *Server {
	return &Server{Logger: l, Stores: stores, Hub: hub, Now: time.Now}
}

// Limits are requests per minute and burst for each key class. Zero
// requests per minute disables limiting for that class.
type Limits struct {
	PublicRPM, PublicBurst int
	AdminRPM, AdminBurst   int
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, lim Limits) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(apimw.Instrument(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// reads: public or admin
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Use(apimw.RateLimit(lim.PublicRPM, lim.PublicBurst, keys))
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/alerts/{id}", s.handleGetAlert)
		r.Get("/config", s.handleGetConfig)
		r.Get("/ws/alerts", s.handleAlertStream(allowedOrigins))
	})

	// mutations: admin only
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(lim.AdminRPM, lim.AdminBurst, keys))
		r.Post("/alerts/{id}/acknowledge", s.handleAcknowledge)
		r.Patch("/alerts/{id}/status", s.handleSetStatus)
		r.Put("/config", s.handlePutConfig)
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// originPatterns turns configured origins into the host patterns the
// WebSocket handshake checks against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// session opens a store session for one request. On failure it has already
// written the response.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (repo.Session, bool) {
	sess, err := s.Stores.Open(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) manager(sess repo.Session) *alerting.Manager {
	return alerting.NewManager(sess.Alerts(), s.Now)
}

type errorBody struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConfigAbsent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyAcknowledged),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidThresholds):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		s.Logger.Error("request_failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
