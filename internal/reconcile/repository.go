// Package reconcile keeps orders whose save failed after a successful payment
// and retries them until the backend accepts them or they are escalated.
package reconcile

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	d "github.com/fjod/go_cart/storefront/domain"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusEscalated Status = "ESCALATED"
)

// Entry is one order waiting to reach the backend.
type Entry struct {
	ID        int64
	OrderID   string
	Username  string
	Payload   []byte
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
}

func (e *Entry) Order() (*d.Order, error) {
	var o d.Order
	if err := json.Unmarshal(e.Payload, &o); err != nil {
		return nil, fmt.Errorf("unmarshal outbox order %s: %w", e.OrderID, err)
	}
	return &o, nil
}

type Repository struct {
	db     *sql.DB
	driver string
}

type RepoInterface interface {
	Enqueue(ctx context.Context, order *d.Order, cause error) error
	Pending(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) (int, error)
	MarkEscalated(ctx context.Context, id int64) error
	Close() error
}

// NewRepository opens the outbox database. driver is "sqlite" or "postgres".
func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported outbox driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// one connection keeps a :memory: database alive and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	}
	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+r.driver)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Enqueue records an order the backend did not accept. Enqueueing the same
// order twice keeps the first entry.
func (r *Repository) Enqueue(ctx context.Context, order *d.Order, cause error) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.OrderID, err)
	}

	query := `
		INSERT INTO order_outbox (order_id, username, payload, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
	`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, order.OrderID, order.Username, string(payload), StatusPending, errText(cause), now, now); err != nil {
		return fmt.Errorf("failed to enqueue order %s: %w", order.OrderID, err)
	}
	return nil
}

// Pending returns up to limit entries, oldest first.
func (r *Repository) Pending(ctx context.Context, limit int) ([]*Entry, error) {
	query := `
		SELECT id, order_id, username, payload, status, attempts, last_error, created_at
		FROM order_outbox
		WHERE status = $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var payload string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Username, &payload, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusProcessed)
}

func (r *Repository) MarkEscalated(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, StatusEscalated)
}

// MarkFailed bumps the attempt counter and returns its new value.
func (r *Repository) MarkFailed(ctx context.Context, id int64, cause error) (int, error) {
	query := `
		UPDATE order_outbox
		SET attempts = attempts + 1, last_error = $1, updated_at = $2
		WHERE id = $3
		RETURNING attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, query, errText(cause), time.Now().UTC(), id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("failed to mark outbox entry %d as failed: %w", id, err)
	}
	return attempts, nil
}

func (r *Repository) setStatus(ctx context.Context, id int64, s Status) error {
	query := `UPDATE order_outbox SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, s, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("outbox entry %d not found", id)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
