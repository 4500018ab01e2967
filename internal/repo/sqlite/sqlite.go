// Package sqlite is a single-file durable store for alerts and thresholds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/repo"
)

var (
	_ repo.Provider = (*Store)(nil)
	_ repo.Seeder   = (*Store)(nil)
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		type       TEXT    NOT NULL,
		value      REAL    NOT NULL,
		threshold  REAL    NOT NULL,
		created_at INTEGER NOT NULL,
		status     TEXT    NOT NULL CHECK (status IN ('open', 'ack'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at)`,
	`CREATE TABLE IF NOT EXISTS configs (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		temp_max     REAL    NOT NULL,
		humidity_max REAL    NOT NULL,
		updated_at   INTEGER NOT NULL
	)`,
}

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (or creates) the database file and runs migrations.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Open pins one connection for the session.
func (s *Store) Open(ctx context.Context) (repo.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	return &session{conn: conn, log: s.log}, nil
}

func (s *Store) Seed(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configs (id, temp_max, humidity_max, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		tempMax, humidityMax, time.Now().UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return configs{s.db}.Get(ctx)
}

type session struct {
	conn *sql.Conn
	log  *zap.Logger
}

func (s *session) Alerts() repo.AlertStore  { return alerts{s.conn} }
func (s *session) Config() repo.ConfigStore { return configs{s.conn} }

func (s *session) Close() {
	if err := s.conn.Close(); err != nil {
		s.log.Warn("sqlite_conn_close_error", zap.Error(err))
	}
}

// ---- AlertStore ----

type alerts struct{ q querier }

const alertColumns = `id, type, value, threshold, created_at, status`

func (a alerts) Append(ctx context.Context, al *domain.Alert) error {
	if al.CreatedAt.IsZero() {
		al.CreatedAt = time.Now().UTC()
	}
	res, err := a.q.ExecContext(ctx,
		`INSERT INTO alerts (type, value, threshold, created_at, status) VALUES (?, ?, ?, ?, ?)`,
		string(al.Type), al.Value, al.Threshold, al.CreatedAt.UnixNano(), string(al.Status))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert alert id: %w", err)
	}
	al.ID = domain.AlertID(id)
	return nil
}

func (a alerts) List(ctx context.Context) ([]domain.Alert, error) {
	rows, err := a.q.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts ORDER BY id DESC`)
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
	row := a.q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, int64(id))
	return oneAlert(row, "get alert")
}

func (a alerts) UpdateStatus(ctx context.Context, id domain.AlertID, st domain.AlertStatus) (*domain.Alert, error) {
	row := a.q.QueryRowContext(ctx,
		`UPDATE alerts SET status = ? WHERE id = ? RETURNING `+alertColumns,
		string(st), int64(id))
	return oneAlert(row, "update alert status")
}

func (a alerts) SwapStatus(ctx context.Context, id domain.AlertID, from, to domain.AlertStatus) (*domain.Alert, bool, error) {
	row := a.q.QueryRowContext(ctx,
		`UPDATE alerts SET status = ? WHERE id = ? AND status = ? RETURNING `+alertColumns,
		string(to), int64(id), string(from))
	up, err := oneAlert(row, "swap alert status")
	if err != nil || up != nil {
		return up, up != nil, err
	}
	cur, err := a.Get(ctx, id)
	return cur, false, err
}

type scanner interface {
	Scan(dest ...any) error
}

func oneAlert(row scanner, op string) (*domain.Alert, error) {
	al, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &al, nil
}

func scanAlert(row scanner) (domain.Alert, error) {
	var (
		id        int64
		typ       string
		value     float64
		threshold float64
		createdAt int64
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
		CreatedAt: time.Unix(0, createdAt).UTC(),
		Status:    domain.AlertStatus(status),
	}, nil
}

// ---- ConfigStore ----

type configs struct{ q querier }

func (c configs) Get(ctx context.Context) (*domain.Config, error) {
	row := c.q.QueryRowContext(ctx, `SELECT id, temp_max, humidity_max, updated_at FROM configs WHERE id = 1`)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

func (c configs) Set(ctx context.Context, tempMax, humidityMax float64) (*domain.Config, error) {
	row := c.q.QueryRowContext(ctx,
		`UPDATE configs SET temp_max = ?, humidity_max = ?, updated_at = ?
		  WHERE id = 1
		 RETURNING id, temp_max, humidity_max, updated_at`,
		tempMax, humidityMax, time.Now().UTC().UnixNano())
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConfigAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	return cfg, nil
}

func scanConfig(row scanner) (*domain.Config, error) {
	var (
		cfg       domain.Config
		updatedAt int64
	)
	if err := row.Scan(&cfg.ID, &cfg.TempMax, &cfg.HumidityMax, &updatedAt); err != nil {
		return nil, err
	}
	cfg.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &cfg, nil
}
