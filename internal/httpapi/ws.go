package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hamed0406/sensoralert/internal/domain"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// AlertEvent is the frame pushed to live subscribers.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert domain.Alert `json:"alert"`
}

const EventAlertCreated = "alert.created"

// handleAlertStream pushes every alert created after the handshake. There
// is no replay; clients list /alerts after (re)connecting.
func (s *Server) handleAlertStream(allowedOrigins []string) http.HandlerFunc {
	opts := &websocket.AcceptOptions{}
	if len(allowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = originPatterns(allowedOrigins)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			s.Logger.Warn("ws_accept_error", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		sub := s.Hub.Subscribe()
		defer s.Hub.Unsubscribe(sub)
		log := s.Logger.With(zap.String("subscription_id", sub.ID.String()))
		log.Info("ws_connected", zap.String("remote_addr", r.RemoteAddr))

		// we never expect messages; CloseRead handles control frames and
		// cancels ctx when the peer goes away
		ctx := conn.CloseRead(r.Context())

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("ws_disconnected")
				return
			case <-ping.C:
				if err := withTimeout(ctx, conn.Ping); err != nil {
					log.Info("ws_ping_failed", zap.Error(err))
					return
				}
			case a, ok := <-sub.C:
				if !ok {
					if sub.Dropped() {
						log.Warn("ws_subscriber_dropped")
						conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind")
					} else {
						conn.Close(websocket.StatusGoingAway, "server shutting down")
					}
					return
				}
				err := withTimeout(ctx, func(ctx context.Context) error {
					return wsjson.Write(ctx, conn, AlertEvent{Type: EventAlertCreated, Alert: a})
				})
				if err != nil {
					log.Info("ws_write_failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return fn(ctx)
}
