package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stemstr/paywall/internal/invoice"
)

func New(dbFile string) (*Repo, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("must set db_file")
	}
	if _, err := os.Stat(dbFile); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(dbFile)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}

	r := Repo{
		dbFile: dbFile,
		db:     db,
	}

	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return &r, nil
}

type Repo struct {
	dbFile string
	db     *sql.DB
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    amount INTEGER NOT NULL,
    description TEXT NOT NULL,
    payment_request TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    valid_until DATETIME
);`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

func (r *Repo) SaveInvoice(ctx context.Context, rec invoice.Record) error {
	const insert = `INSERT INTO invoices (id, provider, amount, description, payment_request, created_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, insert,
		rec.ID,
		rec.Provider,
		rec.AmountUnits,
		rec.Description,
		rec.PaymentRequest,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *Repo) GetInvoice(ctx context.Context, id string) (*invoice.Record, error) {
	const query = `SELECT id, provider, amount, description, payment_request, created_at, valid_until FROM invoices WHERE id=?`

	var (
		rec        invoice.Record
		validUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Provider,
		&rec.AmountUnits,
		&rec.Description,
		&rec.PaymentRequest,
		&rec.CreatedAt,
		&validUntil,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("query invoice: %w", err)
	}

	if validUntil.Valid {
		rec.ValidUntil = &validUntil.Time
	}
	return &rec, nil
}

func (r *Repo) SetValidUntil(ctx context.Context, id string, t time.Time) (time.Time, bool, error) {
	const upsert = `INSERT INTO invoices (id, provider, amount, description, payment_request, created_at, valid_until)
VALUES (?, '', 0, '', '', ?, ?)
ON CONFLICT(id) DO UPDATE SET valid_until = COALESCE(invoices.valid_until, excluded.valid_until)`

	if _, err := r.db.ExecContext(ctx, upsert, id, time.Now(), t); err != nil {
		return time.Time{}, false, fmt.Errorf("set valid_until: %w", err)
	}

	var stored time.Time
	if err := r.db.QueryRowContext(ctx, `SELECT valid_until FROM invoices WHERE id=?`, id).Scan(&stored); err != nil {
		return time.Time{}, false, fmt.Errorf("query valid_until: %w", err)
	}
	return stored, stored.Equal(t), nil
}
