package zbd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	zebedee "github.com/zebedeeio/go-sdk"

	"github.com/stemstr/paywall/internal/invoice"
)

const defaultExpiry = 5 * time.Minute

func New(apiKey, chargeCallbackURL, nodePubkey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: zbd api key required", invoice.ErrProviderMisconfigured)
	}
	return &Client{
		Client:            zebedee.New(apiKey),
		chargeCallbackURL: chargeCallbackURL,
		nodePubkey:        nodePubkey,
	}, nil
}

type Client struct {
	*zebedee.Client
	chargeCallbackURL string
	nodePubkey        string
}

func (c *Client) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	expiry := req.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}

	charge, err := c.Charge(&zebedee.Charge{
		Amount:      strconv.FormatInt(req.DurationSeconds*1000, 10), // millisats
		Description: req.Description,
		ExpiresIn:   int64(expiry.Seconds()),
		CallbackURL: c.chargeCallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("Charge: %w", err)
	}

	return &invoice.Invoice{
		ID:             charge.ID,
		AmountUnits:    req.DurationSeconds,
		Status:         chargeStatus(charge.Status),
		PaymentRequest: charge.Invoice.Request,
		Description:    req.Description,
	}, nil
}

func (c *Client) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	charge, err := c.GetCharge(id)
	if err != nil {
		return nil, fmt.Errorf("GetCharge: %w", err)
	}

	return &invoice.Invoice{
		ID:             charge.ID,
		AmountUnits:    sats(charge.Amount),
		Status:         chargeStatus(charge.Status),
		PaymentRequest: charge.Invoice.Request,
		Description:    charge.Description,
	}, nil
}

func (c *Client) NodeInfo(ctx context.Context) (*invoice.NodeInfo, error) {
	return &invoice.NodeInfo{PubKey: c.nodePubkey, Hosted: true}, nil
}

func chargeStatus(status string) invoice.Status {
	switch status {
	case "completed":
		return invoice.StatusPaid
	case "pending", "":
		return invoice.StatusUnpaid
	case "processing":
		return invoice.StatusProcessing
	}
	return invoice.StatusUnknown
}

// sats converts a millisat amount string. Unparseable amounts are 0 and get
// filled from the invoice record when one exists.
func sats(msats string) int64 {
	n, err := strconv.ParseInt(msats, 10, 64)
	if err != nil {
		return 0
	}
	return n / 1000
}
