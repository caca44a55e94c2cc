// Package mock is a stateless development backend. Invoice ids encode their
// creation time and amount, and invoices settle on their own after a delay.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stemstr/paywall/internal/invoice"
)

const idPrefix = "mock"

func New(settleAfter time.Duration) *Client {
	return &Client{
		settleAfter: settleAfter,
		now:         time.Now,
	}
}

type Client struct {
	settleAfter time.Duration
	now         func() time.Time
}

func (c *Client) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	now := c.now()
	return &invoice.Invoice{
		ID:             fmt.Sprintf("%s_%d_%d", idPrefix, now.UnixMilli(), req.DurationSeconds),
		AmountUnits:    req.DurationSeconds,
		Status:         invoice.StatusUnpaid,
		PaymentRequest: fmt.Sprintf("lnbcmock%d", req.DurationSeconds),
		Description:    req.Description,
		CreatedAt:      now,
	}, nil
}

func (c *Client) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	createdAt, amount, err := parseID(id)
	if err != nil {
		return nil, err
	}

	status := invoice.StatusUnpaid
	if !c.now().Before(createdAt.Add(c.settleAfter)) {
		status = invoice.StatusPaid
	}

	return &invoice.Invoice{
		ID:             id,
		AmountUnits:    amount,
		Status:         status,
		PaymentRequest: fmt.Sprintf("lnbcmock%d", amount),
		CreatedAt:      createdAt,
	}, nil
}

func (c *Client) NodeInfo(ctx context.Context) (*invoice.NodeInfo, error) {
	return &invoice.NodeInfo{PubKey: "mock", Alias: "mock", Hosted: true}, nil
}

func parseID(id string) (time.Time, int64, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != idPrefix {
		return time.Time{}, 0, fmt.Errorf("unknown invoice %q", id)
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("unknown invoice %q", id)
	}
	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("unknown invoice %q", id)
	}
	return time.UnixMilli(ms), amount, nil
}
