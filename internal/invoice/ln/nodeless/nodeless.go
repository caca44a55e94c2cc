package nodeless

import (
	"context"
	"fmt"
	"strings"

	"github.com/nodeless-io/go-nodeless"

	"github.com/stemstr/paywall/internal/invoice"
)

func New(apiKey, storeID string, testnet bool, nodePubkey string) (*Client, error) {
	c, err := nodeless.New(nodeless.Config{
		APIKey:     apiKey,
		UseTestnet: testnet,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		Client:     c,
		storeID:    storeID,
		nodePubkey: nodePubkey,
	}, nil
}

type Client struct {
	*nodeless.Client
	storeID    string
	nodePubkey string
}

func (c *Client) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	inv, err := c.CreateStoreInvoice(ctx, nodeless.CreateInvoiceRequest{
		StoreID:  c.storeID,
		Amount:   float64(req.DurationSeconds),
		Currency: "SATS",
	})
	if err != nil {
		return nil, fmt.Errorf("CreateStoreInvoice: %w", err)
	}

	return &invoice.Invoice{
		ID:             inv.ID,
		AmountUnits:    req.DurationSeconds,
		Status:         invoice.StatusUnpaid,
		PaymentRequest: inv.LightningInvoice,
		Description:    req.Description,
	}, nil
}

// GetInvoiceStatus reports status only. Amount and payment request are
// filled in from the invoice record.
func (c *Client) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	status, err := c.GetStoreInvoiceStatus(ctx, c.storeID, id)
	if err != nil {
		return nil, fmt.Errorf("GetStoreInvoiceStatus: %w", err)
	}

	return &invoice.Invoice{ID: id, Status: statusFromName(string(status))}, nil
}

func (c *Client) NodeInfo(ctx context.Context) (*invoice.NodeInfo, error) {
	return &invoice.NodeInfo{PubKey: c.nodePubkey, Hosted: true}, nil
}

func statusFromName(name string) invoice.Status {
	switch strings.ToLower(name) {
	case "paid", "overpaid":
		return invoice.StatusPaid
	case "new":
		return invoice.StatusUnpaid
	case "pending_confirmation", "in_flight":
		return invoice.StatusProcessing
	}
	return invoice.StatusUnknown
}
