// Package lnd talks to a self-hosted lnd node over its gRPC interface.
package lnd

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"

	"github.com/stemstr/paywall/internal/invoice"
)

type lightningClient interface {
	AddInvoice(ctx context.Context, in *lnrpc.Invoice, opts ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error)
	LookupInvoice(ctx context.Context, in *lnrpc.PaymentHash, opts ...grpc.CallOption) (*lnrpc.Invoice, error)
	GetInfo(ctx context.Context, in *lnrpc.GetInfoRequest, opts ...grpc.CallOption) (*lnrpc.GetInfoResponse, error)
}

// New dials lnd lazily; credential problems are reported here so a bad
// configuration fails at startup rather than on the first request.
func New(tlsCert, mac, socket string) (*Client, error) {
	pool, err := certPool(tlsCert)
	if err != nil {
		return nil, fmt.Errorf("%w: LND_TLS_CERT: %v", invoice.ErrProviderMisconfigured, err)
	}

	macHex, err := macaroonHex(mac)
	if err != nil {
		return nil, fmt.Errorf("%w: LND_MACAROON: %v", invoice.ErrProviderMisconfigured, err)
	}

	conn, err := grpc.NewClient(socket,
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(pool, "")),
		grpc.WithPerRPCCredentials(macaroonCredential(macHex)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: LND_SOCKET: %v", invoice.ErrProviderMisconfigured, err)
	}

	return &Client{
		ln:   lnrpc.NewLightningClient(conn),
		conn: conn,
	}, nil
}

type Client struct {
	ln   lightningClient
	conn *grpc.ClientConn
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error) {
	resp, err := c.ln.AddInvoice(ctx, &lnrpc.Invoice{
		Memo:   req.Description,
		Value:  req.DurationSeconds,
		Expiry: int64(req.Expiry / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("AddInvoice: %w", err)
	}

	return &invoice.Invoice{
		ID:             hex.EncodeToString(resp.RHash),
		AmountUnits:    req.DurationSeconds,
		Status:         invoice.StatusUnpaid,
		PaymentRequest: resp.PaymentRequest,
		Description:    req.Description,
	}, nil
}

func (c *Client) GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error) {
	hash, err := hex.DecodeString(id)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("%w: invoice id must be a hex payment hash", invoice.ErrInvalidInvoiceRequest)
	}

	inv, err := c.ln.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: hash})
	if err != nil {
		return nil, fmt.Errorf("LookupInvoice: %w", err)
	}

	return &invoice.Invoice{
		ID:             id,
		AmountUnits:    inv.Value,
		Status:         invoiceState(inv.State),
		PaymentRequest: inv.PaymentRequest,
		Description:    inv.Memo,
		CreatedAt:      time.Unix(inv.CreationDate, 0),
	}, nil
}

func (c *Client) NodeInfo(ctx context.Context) (*invoice.NodeInfo, error) {
	info, err := c.ln.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, fmt.Errorf("GetInfo: %w", err)
	}
	return &invoice.NodeInfo{PubKey: info.IdentityPubkey, Alias: info.Alias}, nil
}

func invoiceState(state lnrpc.Invoice_InvoiceState) invoice.Status {
	switch state {
	case lnrpc.Invoice_OPEN:
		return invoice.StatusUnpaid
	case lnrpc.Invoice_ACCEPTED:
		return invoice.StatusProcessing
	case lnrpc.Invoice_SETTLED:
		return invoice.StatusPaid
	}
	return invoice.StatusUnknown
}

// certPool accepts the node's tls.cert as PEM or as base64 encoded PEM.
func certPool(cert string) (*x509.CertPool, error) {
	pem := []byte(cert)
	if !strings.Contains(cert, "BEGIN CERTIFICATE") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cert))
		if err != nil {
			return nil, fmt.Errorf("not PEM or base64: %w", err)
		}
		pem = decoded
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificate found")
	}
	return pool, nil
}

// macaroonHex accepts a macaroon as hex or base64 and checks that it parses.
func macaroonHex(mac string) (string, error) {
	mac = strings.TrimSpace(mac)

	raw, err := hex.DecodeString(mac)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(mac)
		if err != nil {
			return "", fmt.Errorf("not hex or base64")
		}
	}

	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// macaroonCredential attaches the admin or invoice macaroon to every call.
type macaroonCredential string

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": string(m)}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}
