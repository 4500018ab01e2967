// Package app assembles the service: store, sampling loop, fan-out sinks
// and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/config"
	"github.com/hamed0406/sensoralert/internal/fanout"
	"github.com/hamed0406/sensoralert/internal/httpapi"
	apimw "github.com/hamed0406/sensoralert/internal/httpapi/middleware"
	"github.com/hamed0406/sensoralert/internal/notify"
	"github.com/hamed0406/sensoralert/internal/relay"
	"github.com/hamed0406/sensoralert/internal/repo"
	"github.com/hamed0406/sensoralert/internal/repo/memory"
	pg "github.com/hamed0406/sensoralert/internal/repo/postgres"
	"github.com/hamed0406/sensoralert/internal/repo/sqlite"
	"github.com/hamed0406/sensoralert/internal/scheduler"
	"github.com/hamed0406/sensoralert/internal/sensor"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg     config.Config
	log     *zap.Logger
	stores  repo.Provider
	hub     *fanout.Hub
	loop    *scheduler.Sampling
	handler http.Handler
	sinks   map[string]fanout.SinkFunc
	closers []func()
}

type Option func(*options)

type options struct {
	sampler sensor.Sampler
	clock   scheduler.Clock
}

// WithSampler replaces the random sensor.
func WithSampler(s sensor.Sampler) Option { return func(o *options) { o.sampler = s } }

// WithClock replaces the loop's time source.
func WithClock(c scheduler.Clock) Option { return func(o *options) { o.clock = c } }

// New opens the store, seeds the threshold row and connects optional sinks.
// Close releases what New acquired.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{clock: scheduler.RealClock}
	for _, fn := range opts {
		fn(&o)
	}
	if o.sampler == nil {
		o.sampler = sensor.NewRandomSampler(0)
	}

	a := &App{cfg: cfg, log: log, sinks: make(map[string]fanout.SinkFunc)}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.hub = fanout.NewHub(cfg.FanoutBuffer, log)
	a.loop = scheduler.NewSampling(log, a.stores, o.sampler, a.hub, o.clock, cfg.SampleInterval, cfg.SettleDelay)

	if cfg.RedisAddr != "" {
		r, err := relay.NewRedis(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = r.Close() })
		a.sinks["redis"] = r.Publish
		log.Info("relay_enabled", zap.String("addr", cfg.RedisAddr), zap.String("channel", r.Channel()))
	}
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		a.sinks["slack"] = notify.Sink(&notify.Retry{Inner: s, Attempts: 3, Backoff: time.Second})
		log.Info("slack_enabled")
	}

	api := httpapi.NewServer(log, a.stores, a.hub)
	a.handler = api.Router(
		apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
		cfg.AllowedOrigins,
		httpapi.Limits{
			PublicRPM: cfg.PublicRPM, PublicBurst: cfg.PublicBurst,
			AdminRPM: cfg.AdminRPM, AdminBurst: cfg.AdminBurst,
		},
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	var seeder repo.Seeder
	switch a.cfg.Store {
	case config.StorePostgres:
		s, err := pg.New(ctx, a.cfg.DatabaseURL, a.log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		a.stores, seeder = s, s
	case config.StoreSQLite:
		s, err := sqlite.New(ctx, a.cfg.SQLitePath, a.log)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.stores, seeder = s, s
	default:
		s := memory.New()
		a.stores, seeder = s, s
	}

	cfg, err := seeder.Seed(ctx, a.cfg.SeedTempMax, a.cfg.SeedHumidityMax)
	if err != nil {
		return fmt.Errorf("seed config: %w", err)
	}
	a.log.Info("store_ready",
		zap.String("store", a.cfg.Store),
		zap.Float64("temp_max", cfg.TempMax),
		zap.Float64("humidity_max", cfg.HumidityMax),
	)
	return nil
}

func (a *App) Handler() http.Handler { return a.handler }
func (a *App) Hub() *fanout.Hub      { return a.hub }

// Run listens on the configured address and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP API, the sampling loop and the sinks on ln until ctx
// is done, then shuts the HTTP server down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// live streams end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("sampling_exit", zap.Error(err))
		}
	}()
	for name, fn := range a.sinks {
		wg.Add(1)
		go func(name string, fn fanout.SinkFunc) {
			defer wg.Done()
			a.hub.Forward(ctx, name, fn)
		}(name, fn)
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("api_listen", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		a.log.Warn("api_shutdown_error", zap.Error(err))
	}
	wg.Wait()
	a.log.Info("service_stopped")
	return serveErr
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
