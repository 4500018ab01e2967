package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/repo"
)

// Store keeps alerts and the threshold row in process memory. Every method
// takes the lock for its whole duration, so single operations are atomic.
type Store struct {
	mu     sync.RWMutex
	alerts []domain.Alert
	nextID domain.AlertID
	config *domain.Config
	now    func() time.Time
}

func New() *Store {
	return &Store{
		alerts: make([]domain.Alert, 0, 128),
		nextID: 1,
		now:    time.Now,
	}
}

// ---- Provider ----

type session struct{ s *Store }

func (s session) Alerts() repo.AlertStore  { return s.s }
func (s session) Config() repo.ConfigStore { return configStore{s.s} }
func (s session) Close()                   {}

func (m *Store) Open(ctx context.Context) (repo.Session, error) {
	return session{m}, nil
}

// ---- AlertStore ----

func (m *Store) Append(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID
	m.nextID++
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now().UTC()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Alert, error) {
	m.mu.RLock()
	out := slices.Clone(m.alerts)
	m.mu.RUnlock()

	slices.Reverse(out)
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.index(id)
	if i < 0 {
		return nil, nil
	}
	a := m.alerts[i]
	return &a, nil
}

func (m *Store) UpdateStatus(ctx context.Context, id domain.AlertID, st domain.AlertStatus) (*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return nil, nil
	}
	m.alerts[i].Status = st
	a := m.alerts[i]
	return &a, nil
}

func (m *Store) SwapStatus(ctx context.Context, id domain.AlertID, from, to domain.AlertStatus) (*domain.Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return nil, false, nil
	}
	swapped := m.alerts[i].Status == from
	if swapped {
		m.alerts[i].Status = to
	}
	a := m.alerts[i]
	return &a, swapped, nil
}

// index relies on ids being assigned in slice order.
func (m *Store) index(id domain.AlertID) int {
	i, ok := slices.BinarySearchFunc(m.alerts, id, func(a domain.Alert, id domain.AlertID) int {
		return cmp.Compare(a.ID, id)
	})
	if !ok {
		return -1
	}
	return i
}

// ---- ConfigStore ----

type configStore struct{ m *Store }

func (c configStore) Get(ctx context.Context) (*domain.Config, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if c.m.config == nil {
		return nil, nil
	}
	cfg := *c.m.config
	return &cfg, nil
}

func (c configStore) Set(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.config == nil {
		return nil, domain.ErrConfigAbsent
	}
	c.m.config.TempMax = tempMax
	c.m.config.HumidityMax = humidityMax
	c.m.config.UpdatedAt = c.m.now().UTC()
	cfg := *c.m.config
	return &cfg, nil
}

// Seed implements repo.Seeder.
func (m *Store) Seed(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = &domain.Config{
			ID:          1,
			TempMax:     tempMax,
			HumidityMax: humidityMax,
			UpdatedAt:   m.now().UTC(),
		}
	}
	cfg := *m.config
	return &cfg, nil
}

var (
	_ repo.AlertStore = (*Store)(nil)
	_ repo.Provider   = (*Store)(nil)
	_ repo.Seeder     = (*Store)(nil)
)
