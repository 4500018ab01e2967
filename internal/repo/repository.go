package repo

import (
	"context"

	"github.com/hamed0406/sensoralert/internal/domain"
)

// Ports (interfaces). The memory, sqlite and postgres adapters implement them.

// AlertStore is a durable append+update store for alerts.
type AlertStore interface {
	// Append assigns a.ID (monotonic, insertion order) and persists a.
	Append(ctx context.Context, a *domain.Alert) error
	// List returns all alerts, newest (highest id) first.
	List(ctx context.Context) ([]domain.Alert, error)
	// Get returns nil, nil if there's no such alert.
	Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error)
	// UpdateStatus returns nil, nil if there's no such alert.
	UpdateStatus(ctx context.Context, id domain.AlertID, st domain.AlertStatus) (*domain.Alert, error)
	// SwapStatus sets the status to `to` only if it is currently `from`, in
	// one atomic step. It returns the alert as it stands afterwards and
	// whether the swap happened; nil, false, nil if there's no such alert.
	SwapStatus(ctx context.Context, id domain.AlertID, from, to domain.AlertStatus) (*domain.Alert, bool, error)
}

// ConfigStore holds the single threshold row.
type ConfigStore interface {
	// Get returns nil, nil if the row was never seeded.
	Get(ctx context.Context) (*domain.Config, error)
	// Set fails with domain.ErrConfigAbsent if the row does not exist.
	Set(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error)
}

// Session is a short-lived handle on both stores. Callers Close it when
// their unit of work (one tick, one request) is done.
type Session interface {
	Alerts() AlertStore
	Config() ConfigStore
	Close()
}

// Provider hands out sessions.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// Seeder creates the threshold row once, at initialization. An existing row
// is left untouched and returned.
type Seeder interface {
	Seed(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error)
}
