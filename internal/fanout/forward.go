package fanout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/metrics"
)

// SinkFunc consumes one alert. Errors are logged and counted, never
// retried.
type SinkFunc func(ctx context.Context, a domain.Alert) error

// Forward feeds every published alert to fn, in order, until ctx is done.
// If the hub drops the subscription because fn is too slow, Forward
// subscribes again and carries on with newer alerts.
func (h *Hub) Forward(ctx context.Context, name string, fn SinkFunc) {
	log := h.log.With(zap.String("sink", name))
	log.Info("sink_started")
	defer log.Info("sink_stopped")

	for {
		sub := h.Subscribe()
		if !h.drain(ctx, sub, log, name, fn) {
			h.Unsubscribe(sub)
			return
		}
		log.Warn("sink_resubscribing")
	}
}

// drain returns false when ctx is done and true when sub was closed.
func (h *Hub) drain(ctx context.Context, sub *Subscription, log *zap.Logger, name string, fn SinkFunc) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case a, ok := <-sub.C:
			if !ok {
				return ctx.Err() == nil
			}
			if err := deliver(ctx, fn, a); err != nil {
				metrics.SinkErrors.WithLabelValues(name).Inc()
				log.Warn("sink_error", zap.Int64("alert_id", int64(a.ID)), zap.Error(err))
			}
		}
	}
}

func deliver(ctx context.Context, fn SinkFunc, a domain.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("sink").Inc()
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return fn(ctx, a)
}
