// Package invoice is the uniform front over the Lightning backends that
// create and report on access invoices. One unit of amount buys one second
// of access.
package invoice

import (
	"context"
	"time"
)

// MaxDurationSeconds caps a single purchase at one year of access. It also
// keeps msat amounts and deadlines far from integer overflow.
const MaxDurationSeconds = 365 * 24 * 60 * 60

type Status string

const (
	StatusUnpaid     Status = "unpaid"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusUnknown    Status = "unknown"
)

// Pending reports whether the invoice may still be paid.
func (s Status) Pending() bool {
	return s == StatusUnpaid || s == StatusProcessing
}

type Invoice struct {
	ID             string    `json:"id"`
	AmountUnits    int64     `json:"amount"`
	Status         Status    `json:"status"`
	PaymentRequest string    `json:"payreq"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Request struct {
	DurationSeconds int64
	Description     string
	// ClientContext identifies the requesting client, e.g. its origin.
	ClientContext string
	// Expiry bounds how long the invoice can be paid. Zero leaves it to the
	// backend.
	Expiry time.Duration
}

type NodeInfo struct {
	PubKey string
	Alias  string
	// Hosted is set for payment processors, which expose only an identity.
	Hosted bool
}

// Provider is implemented by every payment backend.
type Provider interface {
	CreateInvoice(ctx context.Context, req Request) (*Invoice, error)
	GetInvoiceStatus(ctx context.Context, id string) (*Invoice, error)
	NodeInfo(ctx context.Context) (*NodeInfo, error)
}

// Record is what this server remembers about an invoice it created.
type Record struct {
	ID             string     `db:"id"`
	Provider       string     `db:"provider"`
	AmountUnits    int64      `db:"amount"`
	Description    string     `db:"description"`
	PaymentRequest string     `db:"payment_request"`
	CreatedAt      time.Time  `db:"created_at"`
	ValidUntil     *time.Time `db:"valid_until"`
}

// Repo stores invoice records. It is optional; without one the provider is
// the only source of invoice data.
type Repo interface {
	SaveInvoice(ctx context.Context, rec Record) error
	// GetInvoice returns nil, nil for an unknown id.
	GetInvoice(ctx context.Context, id string) (*Record, error)
	// SetValidUntil stores t unless a deadline is already set, and returns
	// the stored deadline and whether t was the one written.
	SetValidUntil(ctx context.Context, id string, t time.Time) (time.Time, bool, error)
}
