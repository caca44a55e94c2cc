package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/stemstr/paywall/internal/invoice"
)

type mockInvoices struct {
	Created   []invoice.Request
	CreateErr error

	Polled    []string
	Status    invoice.Status
	StatusErr error

	ValidUntil     map[string]time.Time
	PaidUntilCalls int
}

func (m *mockInvoices) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, req)
	return &invoice.Invoice{
		ID:             fmt.Sprintf("inv_%d", len(m.Created)),
		AmountUnits:    req.DurationSeconds,
		Status:         invoice.StatusUnpaid,
		PaymentRequest: fmt.Sprintf("lnbcmock%d", req.DurationSeconds),
		Description:    req.Description,
	}, nil
}

func (m *mockInvoices) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	m.Polled = append(m.Polled, id)
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	status := m.Status
	if status == "" {
		status = invoice.StatusUnpaid
	}
	return &invoice.Invoice{
		ID:             id,
		AmountUnits:    60,
		Status:         status,
		PaymentRequest: "lnbcmock60",
	}, nil
}

func (m *mockInvoices) PaidUntil(ctx context.Context, id string, candidate time.Time) (time.Time, bool, error) {
	m.PaidUntilCalls++
	if m.ValidUntil == nil {
		m.ValidUntil = map[string]time.Time{}
	}
	if t, ok := m.ValidUntil[id]; ok {
		return t, false, nil
	}
	m.ValidUntil[id] = candidate
	return candidate, true, nil
}
