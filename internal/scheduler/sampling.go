package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/alerting"
	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/metrics"
	"github.com/hamed0406/sensoralert/internal/repo"
	"github.com/hamed0406/sensoralert/internal/sensor"
)

var ErrAlreadyRunning = errors.New("sampling loop already running")

const (
	DefaultInterval    = 4 * time.Second
	DefaultSettleDelay = 2 * time.Second
)

// Publisher receives every alert the loop persisted.
type Publisher interface {
	Publish(domain.Alert)
}

type Sampling struct {
	Logger      *zap.Logger
	Stores      repo.Provider
	Sampler     sensor.Sampler
	Publisher   Publisher
	Clock       Clock
	Interval    time.Duration
	SettleDelay time.Duration

	running atomic.Bool
}

func NewSampling(
	logger *zap.Logger,
	stores repo.Provider,
	sampler sensor.Sampler,
	pub Publisher,
	clock Clock,
	interval time.Duration,
	settle time.Duration,
) *Sampling {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if settle < 0 {
		settle = 0
	}
	if clock == nil {
		clock = RealClock
	}
	return &Sampling{
		Logger:      logger,
		Stores:      stores,
		Sampler:     sampler,
		Publisher:   pub,
		Clock:       clock,
		Interval:    interval,
		SettleDelay: settle,
	}
}

// Run waits the settle delay, then ticks every Interval until ctx is done.
// Cancellation is honoured between ticks only; a tick that has started runs
// to completion. Run returns ctx.Err() on stop.
func (s *Sampling) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.Logger.Info("sampling_started",
		zap.Duration("settle_delay", s.SettleDelay),
		zap.Duration("interval", s.Interval),
	)
	defer s.Logger.Info("sampling_stopped")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Clock.After(s.SettleDelay):
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.tick(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Clock.After(s.Interval):
		}
	}
}

// tick runs one pass and reports its outcome. It never panics.
func (s *Sampling) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("sampling").Inc()
			metrics.TicksTotal.WithLabelValues("panic").Inc()
			s.Logger.Error("tick_panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
		metrics.TicksTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrConfigAbsent):
		metrics.TicksTotal.WithLabelValues("config_absent").Inc()
		s.Logger.Warn("tick_config_absent")
	default:
		metrics.TicksTotal.WithLabelValues("store_error").Inc()
		s.Logger.Error("tick_failed", zap.Error(err))
	}
}

// RunOnce samples, evaluates against the current config and, for each
// breach in order, persists then publishes. The first persistence failure
// abandons the rest of the tick. Alerts already persisted this tick are
// returned and have been published.
func (s *Sampling) RunOnce(ctx context.Context) ([]domain.Alert, error) {
	sess, err := s.Stores.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open session: %w", domain.ErrPersistence, err)
	}
	defer sess.Close()

	cfg, err := sess.Config().Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get config: %w", domain.ErrPersistence, err)
	}
	if cfg == nil {
		return nil, domain.ErrConfigAbsent
	}

	r := s.Sampler.Sample()
	metrics.Readings.WithLabelValues(string(domain.Temperature)).Set(r.Temperature)
	metrics.Readings.WithLabelValues(string(domain.Humidity)).Set(r.Humidity)
	s.Logger.Info("tick_reading",
		zap.Float64("temperature", r.Temperature),
		zap.Float64("humidity", r.Humidity),
		zap.Float64("temp_max", cfg.TempMax),
		zap.Float64("humidity_max", cfg.HumidityMax),
	)

	breaches, err := alerting.EvaluateReading(r, cfg)
	if err != nil {
		return nil, err
	}

	mgr := alerting.NewManager(sess.Alerts(), s.Clock.Now)
	created := make([]domain.Alert, 0, len(breaches))
	for _, b := range breaches {
		a, err := mgr.Create(ctx, b.Kind, b.Value, b.Threshold)
		if err != nil {
			return created, err
		}
		s.Logger.Info("alert_created",
			zap.Int64("alert_id", int64(a.ID)),
			zap.String("type", string(a.Type)),
			zap.Float64("value", a.Value),
			zap.Float64("threshold", a.Threshold),
		)
		s.Publisher.Publish(*a)
		created = append(created, *a)
	}
	return created, nil
}
