package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stemstr/paywall/internal/invoice"
)

func New(dbConnStr string) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dbConnStr)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// sqlx default is 0 (unlimited), while postgresql by default accepts up to 100 connections
	db.SetMaxOpenConns(80)

	// TODO: migrations
	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	amount BIGINT NOT NULL,
	description TEXT NOT NULL,
	payment_request TEXT NOT NULL,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL,
	valid_until TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS invoices_provideridx ON invoices(provider);
    `)
	if err != nil {
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB uses an existing connection and assumes the schema exists.
func NewWithDB(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

type Repo struct {
	db *sqlx.DB
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) SaveInvoice(ctx context.Context, rec invoice.Record) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO invoices (id, provider, amount, description, payment_request, created_at)
VALUES (:id, :provider, :amount, :description, :payment_request, :created_at) ON CONFLICT (id) DO NOTHING`, rec)
	if err != nil {
		return fmt.Errorf("db.Exec save invoice: %w", err)
	}
	return nil
}

func (r *Repo) GetInvoice(ctx context.Context, id string) (*invoice.Record, error) {
	const query = "SELECT id, provider, amount, description, payment_request, created_at, valid_until FROM invoices WHERE id=$1;"

	var rec invoice.Record
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.Get invoice: %w", err)
	}
	return &rec, nil
}

func (r *Repo) SetValidUntil(ctx context.Context, id string, t time.Time) (time.Time, bool, error) {
	const upsert = `INSERT INTO invoices (id, provider, amount, description, payment_request, valid_until)
VALUES ($1, '', 0, '', '', $2)
ON CONFLICT (id) DO UPDATE SET valid_until = COALESCE(invoices.valid_until, EXCLUDED.valid_until)
RETURNING valid_until;`

	// postgres keeps microseconds
	t = t.Truncate(time.Microsecond)

	var stored time.Time
	if err := r.db.QueryRowxContext(ctx, upsert, id, t).Scan(&stored); err != nil {
		return time.Time{}, false, fmt.Errorf("db.Exec set valid_until: %w", err)
	}
	return stored, stored.Equal(t), nil
}
