package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemstr/paywall/internal/invoice"
)

type mockInvoices struct {
	AvailableErr error

	Created   []invoice.Request
	CreateErr error

	Status    invoice.Status
	StatusErr error

	Info    *invoice.NodeInfo
	InfoErr error

	deadlines map[string]time.Time
}

func (m *mockInvoices) Available() error {
	return m.AvailableErr
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
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockInvoices) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	status := m.Status
	if status == "" {
		status = invoice.StatusUnpaid
	}
	return &invoice.Invoice{ID: id, AmountUnits: 60, Status: status, PaymentRequest: "lnbcmock60"}, nil
}

func (m *mockInvoices) PaidUntil(ctx context.Context, id string, candidate time.Time) (time.Time, bool, error) {
	if m.deadlines == nil {
		m.deadlines = map[string]time.Time{}
	}
	if t, ok := m.deadlines[id]; ok {
		return t, false, nil
	}
	m.deadlines[id] = candidate
	return candidate, true, nil
}

func (m *mockInvoices) NodeInfo(ctx context.Context) (*invoice.NodeInfo, error) {
	return m.Info, m.InfoErr
}

type mockNotifier struct {
	PaidIDs []string
}

func (m *mockNotifier) Paid(invoiceID string, amount int64, validUntil time.Time) {
	m.PaidIDs = append(m.PaidIDs, invoiceID)
}
