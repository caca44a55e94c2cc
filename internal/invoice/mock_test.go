package invoice

import (
	"context"
	"time"
)

type mockProvider struct {
	CreateInvoiceInvoice *Invoice
	CreateInvoiceErr     error
	CreateInvoiceReq     Request
	GetStatusInvoice     *Invoice
	GetStatusErr         error
	NodeInfoInfo         *NodeInfo
	NodeInfoErr          error
}

func (m *mockProvider) CreateInvoice(ctx context.Context, req Request) (*Invoice, error) {
	m.CreateInvoiceReq = req
	if m.CreateInvoiceInvoice == nil {
		return nil, m.CreateInvoiceErr
	}
	inv := *m.CreateInvoiceInvoice
	return &inv, m.CreateInvoiceErr
}
func (m *mockProvider) GetInvoiceStatus(ctx context.Context, id string) (*Invoice, error) {
	if m.GetStatusInvoice == nil {
		return nil, m.GetStatusErr
	}
	inv := *m.GetStatusInvoice
	return &inv, m.GetStatusErr
}
func (m *mockProvider) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	return m.NodeInfoInfo, m.NodeInfoErr
}

type mockRepo struct {
	Saved       []Record
	SaveErr     error
	GetRecord   *Record
	GetErr      error
	ValidUntil  *time.Time
	SetValidErr error
}

func (m *mockRepo) SaveInvoice(ctx context.Context, rec Record) error {
	m.Saved = append(m.Saved, rec)
	return m.SaveErr
}
func (m *mockRepo) GetInvoice(ctx context.Context, id string) (*Record, error) {
	return m.GetRecord, m.GetErr
}
func (m *mockRepo) SetValidUntil(ctx context.Context, id string, t time.Time) (time.Time, bool, error) {
	if m.SetValidErr != nil {
		return time.Time{}, false, m.SetValidErr
	}
	if m.ValidUntil != nil {
		return *m.ValidUntil, false, nil
	}
	m.ValidUntil = &t
	return t, true, nil
}
