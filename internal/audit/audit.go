// Package audit persists concluded capture attempts for reconciliation and
// security review. The gateway itself never writes here; records arrive via
// the event queue so a slow database cannot delay a capture response.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Record is one concluded capture attempt. Only the masked hint is stored;
// raw account numbers never reach the audit trail.
type Record struct {
	ID              int64     `json:"id"`
	TID             int32     `json:"tid"`
	AccountID       string    `json:"accountId"`
	PaymentMethodID string    `json:"paymentMethodId"`
	Status          string    `json:"status"`
	Hint            string    `json:"hint,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// Repository wraps all SQL used by the audit worker.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the capture_events table if needed. Keeping the
// migration in code lets docker-compose bootstrap a working stack.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS capture_events (
	id BIGSERIAL PRIMARY KEY,
	tid INTEGER NOT NULL,
	account_id TEXT NOT NULL,
	payment_method_id TEXT NOT NULL,
	status TEXT NOT NULL,
	hint TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_events_tid ON capture_events(tid, occurred_at);`
	if _, err := r.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert stores one capture event.
func (r *Repository) Insert(ctx context.Context, rec *Record) error {
	rec.RecordedAt = time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO capture_events (tid, account_id, payment_method_id, status, hint, occurred_at, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, rec.TID, rec.AccountID, rec.PaymentMethodID, rec.Status, rec.Hint, rec.OccurredAt, rec.RecordedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert capture event: %w", err)
	}
	return nil
}

// Recent returns the latest capture events for a tenant, newest first.
func (r *Repository) Recent(ctx context.Context, tid int32, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tid, account_id, payment_method_id, status, COALESCE(hint,''), occurred_at, recorded_at
		FROM capture_events WHERE tid=$1
		ORDER BY occurred_at DESC LIMIT $2
	`, tid, limit)
	if err != nil {
		return nil, fmt.Errorf("select capture events: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TID, &rec.AccountID, &rec.PaymentMethodID,
			&rec.Status, &rec.Hint, &rec.OccurredAt, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan capture event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
