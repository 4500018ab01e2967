package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/metrics"
	"github.com/hamed0406/sensoralert/internal/repo"
)

// Manager owns alert state transitions on top of an AlertStore. It is cheap
// to build; callers make one per session.
type Manager struct {
	store repo.AlertStore
	now   func() time.Time
}

func NewManager(store repo.AlertStore, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now}
}

// Create persists a new Open alert and returns the stored record.
func (m *Manager) Create(ctx context.Context, typ domain.AlertType, value, threshold float64) (*domain.Alert, error) {
	a := &domain.Alert{
		Type:      typ,
		Value:     value,
		Threshold: threshold,
		CreatedAt: m.now().UTC(),
		Status:    domain.StatusOpen,
	}
	if err := m.store.Append(ctx, a); err != nil {
		return nil, persistence("append alert", err)
	}
	metrics.AlertsCreated.WithLabelValues(string(typ)).Inc()
	return a, nil
}

// Acknowledge moves an Open alert to Acknowledged. It never regresses and
// refuses a second acknowledge.
func (m *Manager) Acknowledge(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	up, swapped, err := m.store.SwapStatus(ctx, id, domain.StatusOpen, domain.StatusAcknowledged)
	if err != nil {
		return nil, persistence("swap alert status", err)
	}
	if up == nil {
		return nil, domain.ErrNotFound
	}
	if !swapped {
		return nil, domain.ErrAlreadyAcknowledged
	}
	metrics.AlertStatusChanges.WithLabelValues("acknowledge").Inc()
	return up, nil
}

// SetStatus writes any valid status, including the current one and
// Acknowledged back to Open.
func (m *Manager) SetStatus(ctx context.Context, id domain.AlertID, status string) (*domain.Alert, error) {
	st, ok := domain.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	up, err := m.store.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, persistence("update alert status", err)
	}
	if up == nil {
		return nil, domain.ErrNotFound
	}
	metrics.AlertStatusChanges.WithLabelValues("set_status").Inc()
	return up, nil
}

func (m *Manager) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, persistence("get alert", err)
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// Filter narrows List. Zero fields match everything; From and To are
// inclusive bounds on CreatedAt.
type Filter struct {
	Type   domain.AlertType
	Status domain.AlertStatus
	From   time.Time
	To     time.Time
}

func (f Filter) match(a domain.Alert) bool {
	switch {
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case !f.From.IsZero() && a.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && a.CreatedAt.After(f.To):
		return false
	}
	return true
}

// List returns matching alerts, newest first.
func (m *Manager) List(ctx context.Context, f Filter) ([]domain.Alert, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, persistence("list alerts", err)
	}
	out := make([]domain.Alert, 0, len(all))
	for _, a := range all {
		if f.match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
