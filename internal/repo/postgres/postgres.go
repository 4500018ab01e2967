package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/repo"
)

var (
	_ repo.Provider = (*Store)(nil)
	_ repo.Seeder   = (*Store)(nil)
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS alerts (
  id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  type       VARCHAR(50)      NOT NULL,
  value      DOUBLE PRECISION NOT NULL,
  threshold  DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ      NOT NULL,
  status     VARCHAR(20)      NOT NULL CHECK (status IN ('open', 'ack'))
);

CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at);

CREATE TABLE IF NOT EXISTS configs (
  id           INTEGER PRIMARY KEY CHECK (id = 1),
  temp_max     DOUBLE PRECISION NOT NULL,
  humidity_max DOUBLE PRECISION NOT NULL,
  updated_at   TIMESTAMPTZ      NOT NULL
);
`

// querier is satisfied by both *pgxpool.Pool and *pgxpool.Conn.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Open acquires one pooled connection for the lifetime of the session.
func (s *Store) Open(ctx context.Context) (repo.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	return &session{conn: conn}, nil
}

func (s *Store) Seed(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO configs (id, temp_max, humidity_max, updated_at)
		 VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		tempMax, humidityMax, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	cfg, err := configs{s.pool}.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		s.log.Info("config_ready", zap.Float64("temp_max", cfg.TempMax), zap.Float64("humidity_max", cfg.HumidityMax))
	}
	return cfg, nil
}

type session struct {
	conn *pgxpool.Conn
}

func (s *session) Alerts() repo.AlertStore  { return alerts{s.conn} }
func (s *session) Config() repo.ConfigStore { return configs{s.conn} }
func (s *session) Close()                   { s.conn.Release() }

// ---- AlertStore ----

type alerts struct{ q querier }

const alertColumns = `id, type, value, threshold, created_at, status`

func (a alerts) Append(ctx context.Context, al *domain.Alert) error {
	if al.CreatedAt.IsZero() {
		al.CreatedAt = time.Now().UTC()
	}
	var (
		id        int64
		createdAt time.Time
	)
	// TIMESTAMPTZ keeps microseconds; read back what was stored.
	err := a.q.QueryRow(ctx,
		`INSERT INTO alerts (type, value, threshold, created_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		string(al.Type), al.Value, al.Threshold, al.CreatedAt, string(al.Status),
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	al.ID = domain.AlertID(id)
	al.CreatedAt = createdAt.UTC()
	return nil
}

func (a alerts) List(ctx context.Context) ([]domain.Alert, error) {
	rows, err := a.q.Query(ctx,
		`SELECT `+alertColumns+`
		   FROM alerts
		  ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Alert, 0)
	for rows.Next() {
		al, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (a alerts) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	row := a.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, int64(id))
	return oneAlert(row, "get alert")
}

func (a alerts) UpdateStatus(ctx context.Context, id domain.AlertID, st domain.AlertStatus) (*domain.Alert, error) {
	row := a.q.QueryRow(ctx,
		`UPDATE alerts SET status = $2 WHERE id = $1
		 RETURNING `+alertColumns,
		int64(id), string(st))
	return oneAlert(row, "update alert status")
}

func (a alerts) SwapStatus(ctx context.Context, id domain.AlertID, from, to domain.AlertStatus) (*domain.Alert, bool, error) {
	row := a.q.QueryRow(ctx,
		`UPDATE alerts SET status = $3 WHERE id = $1 AND status = $2
		 RETURNING `+alertColumns,
		int64(id), string(from), string(to))
	up, err := oneAlert(row, "swap alert status")
	if err != nil || up != nil {
		return up, up != nil, err
	}
	cur, err := a.Get(ctx, id)
	return cur, false, err
}

func oneAlert(row pgx.Row, op string) (*domain.Alert, error) {
	al, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &al, nil
}

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var (
		id        int64
		typ       string
		value     float64
		threshold float64
		createdAt time.Time
		status    string
	)
	if err := row.Scan(&id, &typ, &value, &threshold, &createdAt, &status); err != nil {
		return domain.Alert{}, err
	}
	return domain.Alert{
		ID:        domain.AlertID(id),
		Type:      domain.AlertType(typ),
		Value:     value,
		Threshold: threshold,
		CreatedAt: createdAt.UTC(),
		Status:    domain.AlertStatus(status),
	}, nil
}

// ---- ConfigStore ----

type configs struct{ q querier }

func (c configs) Get(ctx context.Context) (*domain.Config, error) {
	row := c.q.QueryRow(ctx, `SELECT id, temp_max, humidity_max, updated_at FROM configs WHERE id = 1`)
	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

func (c configs) Set(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	row := c.q.QueryRow(ctx,
		`UPDATE configs SET temp_max = $1, humidity_max = $2, updated_at = $3
		  WHERE id = 1
		 RETURNING id, temp_max, humidity_max, updated_at`,
		tempMax, humidityMax, time.Now().UTC())
	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConfigAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	return cfg, nil
}

func scanConfig(row pgx.Row) (*domain.Config, error) {
	var cfg domain.Config
	if err := row.Scan(&cfg.ID, &cfg.TempMax, &cfg.HumidityMax, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}
