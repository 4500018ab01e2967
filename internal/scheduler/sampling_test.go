package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/fanout"
	"github.com/hamed0406/sensoralert/internal/repo"
	"github.com/hamed0406/sensoralert/internal/repo/memory"
	"github.com/hamed0406/sensoralert/internal/sensor"
)

// --- fakes ---

type wait struct {
	d  time.Duration
	ch chan time.Time
}

// fakeClock hands every After call to the test, which fires it.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits chan wait
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2025, 10, 22, 16, 0, 0, 0, time.UTC),
		waits: make(chan wait, 16),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	w := wait{d: d, ch: make(chan time.Time, 1)}
	c.waits <- w
	return w.ch
}

// next blocks until the loop asks to wait, then returns that wait.
func (c *fakeClock) next(t *testing.T) wait {
	t.Helper()
	select {
	case w := <-c.waits:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("loop never waited")
		return wait{}
	}
}

// fire advances the clock by the wait's duration and releases it.
func (c *fakeClock) fire(w wait) {
	c.mu.Lock()
	c.now = c.now.Add(w.d)
	now := c.now
	c.mu.Unlock()
	w.ch <- now
}

func readings(rs ...sensor.Reading) sensor.Sampler {
	var mu sync.Mutex
	i := 0
	return sensor.SamplerFunc(func() sensor.Reading {
		mu.Lock()
		defer mu.Unlock()
		r := rs[i%len(rs)]
		i++
		return r
	})
}

type failingAppend struct{ *memory.Store }

func (failingAppend) Append(context.Context, *domain.Alert) error {
	return errors.New("connection reset")
}

type failingProvider struct{ m *memory.Store }

type failingSession struct{ repo.Session }

func (s failingSession) Alerts() repo.AlertStore { return failingAppend{} }

func (p failingProvider) Open(ctx context.Context) (repo.Session, error) {
	sess, err := p.m.Open(ctx)
	return failingSession{sess}, err
}

// ctxStore fails writes on a cancelled context, as a database driver does.
type ctxStore struct{ *memory.Store }

func (s ctxStore) Append(ctx context.Context, a *domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Append(ctx, a)
}

type ctxSession struct {
	repo.Session
	m *memory.Store
}

func (s ctxSession) Alerts() repo.AlertStore { return ctxStore{s.m} }

type ctxProvider struct{ m *memory.Store }

func (p ctxProvider) Open(ctx context.Context) (repo.Session, error) {
	sess, err := p.m.Open(ctx)
	return ctxSession{Session: sess, m: p.m}, err
}

type harness struct {
	store *memory.Store
	hub   *fanout.Hub
	sub   *fanout.Subscription
	clock *fakeClock
	loop  *Sampling
	done  chan error
	stop  context.CancelFunc
}

func start(t *testing.T, stores repo.Provider, store *memory.Store, s sensor.Sampler) *harness {
	t.Helper()
	h := &harness{
		store: store,
		hub:   fanout.NewHub(16, zap.NewNop()),
		clock: newFakeClock(),
		done:  make(chan error, 1),
	}
	h.sub = h.hub.Subscribe()
	h.loop = NewSampling(zap.NewNop(), stores, s, h.hub, h.clock, 4*time.Second, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	go func() { h.done <- h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// step releases the pending wait and blocks until the loop waits again,
// which means one full tick has run.
func (h *harness) step(t *testing.T) {
	t.Helper()
	h.clock.fire(h.clock.next(t))
}

func published(s *fanout.Subscription) []domain.Alert {
	var out []domain.Alert
	for {
		select {
		case a := <-s.C:
			out = append(out, a)
		default:
			return out
		}
	}
}

// --- tests ---

func TestSampling_SettleThenInterval(t *testing.T) {
	m := memory.New()
	_, _ = m.Seed(context.Background(), 50, 70)
	h := start(t, m, m, readings(sensor.Reading{Temperature: 40, Humidity: 60}))

	first := h.clock.next(t)
	assert.Equal(t, 2*time.Second, first.d)
	h.clock.fire(first)

	second := h.clock.next(t)
	assert.Equal(t, 4*time.Second, second.d)
	h.clock.fire(second)

	third := h.clock.next(t)
	assert.Equal(t, 4*time.Second, third.d)
	h.clock.fire(third)
}

func TestSampling_TemperatureBeforeHumidity(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	h := start(t, m, m, readings(sensor.Reading{Temperature: 65, Humidity: 80}))

	h.step(t) // settle
	h.clock.next(t)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// newest first, so humidity is listed before temperature
	assert.Equal(t, domain.Humidity, list[0].Type)
	assert.Equal(t, domain.Temperature, list[1].Type)
	assert.Less(t, list[1].ID, list[0].ID)

	got := published(h.sub)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Temperature, got[0].Type)
	assert.Equal(t, 50.0, got[0].Threshold)
	assert.Equal(t, domain.Humidity, got[1].Type)
	assert.Equal(t, 70.0, got[1].Threshold)
}

func TestSampling_SingleBreachScenario(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	h := start(t, m, m, readings(sensor.Reading{Temperature: 55, Humidity: 60}))

	h.step(t)
	h.clock.next(t)

	list, _ := m.List(ctx)
	require.Len(t, list, 1)
	a := list[0]
	assert.Equal(t, domain.Temperature, a.Type)
	assert.Equal(t, 55.0, a.Value)
	assert.Equal(t, 50.0, a.Threshold)
	assert.Equal(t, domain.StatusOpen, a.Status)
	assert.Equal(t, h.clock.Now(), a.CreatedAt)
}

func TestSampling_AbsentConfigSkipsTickAndKeepsRunning(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	h := start(t, m, m, readings(sensor.Reading{Temperature: 70, Humidity: 100}))

	h.step(t)
	w := h.clock.next(t)

	list, _ := m.List(ctx)
	assert.Empty(t, list)
	assert.Empty(t, published(h.sub))
	assert.True(t, h.loop.running.Load())

	// once a config shows up the next tick uses it
	_, _ = m.Seed(ctx, 50, 70)
	h.clock.fire(w)
	h.clock.next(t)

	list, _ = m.List(ctx)
	assert.Len(t, list, 2)
	assert.Len(t, published(h.sub), 2)
}

func TestSampling_ConfigChangeAppliesNextTick(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	h := start(t, m, m, readings(sensor.Reading{Temperature: 55, Humidity: 60}))

	h.step(t) // tick 1: fires temperature at 50
	w := h.clock.next(t)

	sess, _ := m.Open(ctx)
	_, err := sess.Config().Set(ctx, 60, 70)
	require.NoError(t, err)
	sess.Close()

	h.clock.fire(w) // tick 2: 55 <= 60, nothing
	h.clock.next(t)

	list, _ := m.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, 50.0, list[0].Threshold, "existing alert keeps its snapshot")
}

func TestSampling_StoreErrorAbandonsTickWithoutPublish(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	h := start(t, failingProvider{m}, m, readings(sensor.Reading{Temperature: 65, Humidity: 80}))

	h.step(t)
	h.step(t)
	h.clock.next(t)

	assert.Empty(t, published(h.sub))
	list, _ := m.List(ctx)
	assert.Empty(t, list)
}

func TestSampling_RunOnceStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	hub := fanout.NewHub(4, zap.NewNop())
	sub := hub.Subscribe()
	s := NewSampling(zap.NewNop(), failingProvider{m}, readings(sensor.Reading{Temperature: 65, Humidity: 80}), hub, newFakeClock(), 0, 0)

	created, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, created)
	assert.Empty(t, published(sub))
}

func TestSampling_PanicInTickIsContained(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)

	var mu sync.Mutex
	calls := 0
	sampler := sensor.SamplerFunc(func() sensor.Reading {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			panic("sensor glitch")
		}
		return sensor.Reading{Temperature: 55, Humidity: 60}
	})
	h := start(t, m, m, sampler)

	h.step(t) // panicking tick
	h.step(t) // healthy tick
	h.clock.next(t)

	list, _ := m.List(ctx)
	assert.Len(t, list, 1)
}

func TestSampling_CancelDuringSettle(t *testing.T) {
	m := memory.New()
	h := start(t, m, m, readings(sensor.Reading{}))

	h.clock.next(t)
	h.stop()

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestSampling_CancelBetweenTicks(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)
	h := start(t, m, m, readings(sensor.Reading{Temperature: 55, Humidity: 60}))

	h.step(t)
	h.clock.next(t)
	h.stop()

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	list, _ := m.List(ctx)
	assert.Len(t, list, 1)
}

func TestSampling_CancelMidTickCompletesTick(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	_, _ = m.Seed(ctx, 50, 70)

	var h *harness
	sampler := sensor.SamplerFunc(func() sensor.Reading {
		h.stop()
		return sensor.Reading{Temperature: 65, Humidity: 80}
	})
	h = start(t, ctxProvider{m}, m, sampler)

	h.step(t) // settle; the tick cancels while it samples

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "both breaches persisted")
	assert.Len(t, published(h.sub), 2, "both breaches published")
}

func TestSampling_SecondRunRejected(t *testing.T) {
	m := memory.New()
	h := start(t, m, m, readings(sensor.Reading{}))
	h.clock.next(t)

	err := h.loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
