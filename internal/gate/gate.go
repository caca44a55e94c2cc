// Package gate guards protected routes behind a paid invoice. All flow state
// lives in the client's credentials; the gate only reads and rewrites them.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/macaroon.v2"

	"github.com/stemstr/paywall/internal/credential"
	"github.com/stemstr/paywall/internal/invoice"
	"github.com/stemstr/paywall/internal/session"
)

const (
	defaultAccessSeconds = 60
	defaultAppName       = "the lightning reader"

	msgPaymentRequired = "payment required"
	msgAuthFailed      = "authorization failed"
)

// InvoiceService is the subset of *invoice.Service the gate drives.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error)
	GetInvoiceStatus(ctx context.Context, id string) (*invoice.Invoice, error)
	PaidUntil(ctx context.Context, id string, candidate time.Time) (time.Time, bool, error)
}

// Hooks observe gate events. Any of them may be nil.
type Hooks struct {
	OnInvoice   func(inv *invoice.Invoice)
	OnDischarge func(inv *invoice.Invoice, validUntil time.Time, first bool)
	OnVerify    func(reason string)
}

type Options struct {
	// Location overrides the credential location otherwise derived from
	// the request host.
	Location      string
	AccessSeconds int64
	Hooks         Hooks
	Logger        *zap.Logger
}

func New(svc InvoiceService, builder *credential.Builder, verifier *credential.Verifier, store session.Store, opts Options) *Gate {
	if opts.AccessSeconds <= 0 {
		opts.AccessSeconds = defaultAccessSeconds
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gate{
		svc:      svc,
		builder:  builder,
		verifier: verifier,
		store:    store,
		opts:     opts,
		log:      opts.Logger,
		now:      time.Now,
	}
}

type Gate struct {
	svc      InvoiceService
	builder  *credential.Builder
	verifier *credential.Verifier
	store    session.Store
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// Handler wraps next so it is reached only with a verified credential pair.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vals := g.store.Load(r)

		switch {
		case vals.Root == "":
			g.requirePayment(w, r)
		case vals.Discharge == "":
			g.poll(w, r, vals.Root, next)
		default:
			g.admit(w, r, vals, next)
		}
	})
}

// requirePayment starts the flow: a fresh invoice and a root credential
// bound to it.
func (g *Gate) requirePayment(w http.ResponseWriter, r *http.Request) {
	seconds := g.opts.AccessSeconds
	if v := r.URL.Query().Get("time"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			WriteMessage(w, http.StatusBadRequest, "time must be a positive number of seconds")
			return
		}
		seconds = n
	}

	inv, root, err := g.Issue(r, invoice.Request{
		DurationSeconds: seconds,
		Description:     Describe(seconds, r.URL.Path, ""),
		ClientContext:   Origin(r),
	})
	if err != nil {
		status, msg := Failure(err)
		WriteMessage(w, status, msg)
		return
	}

	if err := g.store.Save(w, session.Values{Root: root}); err != nil {
		g.log.Error("save session failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		WriteMessage(w, http.StatusInternalServerError, "unable to persist credential")
		return
	}

	WriteJSON(w, http.StatusPaymentRequired, map[string]any{
		"invoice":  inv,
		"message":  msgPaymentRequired,
		"macaroon": root,
	})
}

// poll advances a root credential whose invoice has not been discharged yet.
// The invoice id comes from the root, never from the request.
func (g *Gate) poll(w http.ResponseWriter, r *http.Request, root string, next http.Handler) {
	rm, err := credential.Decode(root)
	if err != nil {
		g.reject(w, err)
		return
	}
	id, err := credential.InvoiceID(rm)
	if err != nil {
		g.reject(w, err)
		return
	}

	inv, err := g.svc.GetInvoiceStatus(r.Context(), id)
	if err != nil {
		g.log.Error("poll invoice failed", zap.String("invoice_id", id), zap.Error(err))
		status, msg := Failure(err)
		// A bad id never becomes valid; transient provider errors keep the root.
		if errors.Is(err, invoice.ErrInvalidInvoiceRequest) {
			g.clear(w)
		}
		WriteMessage(w, status, msg)
		return
	}

	switch {
	case inv.Status == invoice.StatusPaid:
	case inv.Status.Pending():
		WriteJSON(w, http.StatusAccepted, map[string]any{
			"status": inv.Status,
			"payreq": inv.PaymentRequest,
		})
		return
	default:
		// Expired or canceled invoices are terminal; drop the root so the
		// next request starts over with a fresh invoice.
		g.log.Warn("unknown invoice status", zap.String("invoice_id", id), zap.String("status", string(inv.Status)))
		g.clear(w)
		WriteMessage(w, http.StatusBadRequest, fmt.Sprintf("%v: %s", invoice.ErrUnknownStatus, inv.Status))
		return
	}

	dm, err := g.discharge(r.Context(), rm.Location(), inv)
	if err != nil {
		WriteMessage(w, http.StatusInternalServerError, "unable to issue discharge")
		return
	}
	discharge, err := credential.Encode(dm)
	if err != nil {
		WriteMessage(w, http.StatusInternalServerError, "unable to issue discharge")
		return
	}

	g.admit(w, r, session.Values{Root: root, Discharge: discharge}, next)
}

// admit verifies the pair and either forwards to next or ends the request.
// The session is written exactly once here.
func (g *Gate) admit(w http.ResponseWriter, r *http.Request, vals session.Values, next http.Handler) {
	err := g.verifier.Verify(vals.Root, vals.Discharge, credential.Context{
		Origin: Origin(r),
		Now:    g.now(),
	})
	g.observeVerify(err)

	switch {
	case err == nil:
		if err := g.store.Save(w, vals); err != nil {
			g.log.Error("save session failed", zap.Error(err))
			WriteMessage(w, http.StatusInternalServerError, "unable to persist credential")
			return
		}
		next.ServeHTTP(w, r)
	case errors.Is(err, credential.ErrExpired):
		g.log.Info("credential expired", zap.Error(err))
		g.clear(w)
		WriteJSON(w, http.StatusPaymentRequired, map[string]any{
			"invoice": nil,
			"message": msgPaymentRequired,
		})
	default:
		g.reject(w, err)
	}
}

// reject ends the flow without saying which check failed. Both credentials
// are dropped so the client's next request starts over.
func (g *Gate) reject(w http.ResponseWriter, err error) {
	g.log.Warn("credential rejected", zap.String("reason", credential.Reason(err)), zap.Error(err))
	g.clear(w)
	WriteMessage(w, http.StatusBadRequest, msgAuthFailed)
}

// clear expires both credential cookies.
func (g *Gate) clear(w http.ResponseWriter) {
	if err := g.store.Save(w, session.Values{}); err != nil {
		g.log.Error("clear session failed", zap.Error(err))
	}
}

// Issue creates an invoice and a root credential bound to it. The caveat key
// is checked first so no invoice is created that could never be discharged.
func (g *Gate) Issue(r *http.Request, req invoice.Request) (*invoice.Invoice, string, error) {
	if err := g.builder.Ready(); err != nil {
		return nil, "", err
	}

	inv, err := g.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		return nil, "", err
	}
	if g.opts.Hooks.OnInvoice != nil {
		g.opts.Hooks.OnInvoice(inv)
	}

	m, err := g.builder.IssueRoot(credential.RootRequest{
		ID:        uuid.NewString(),
		Location:  g.Location(r),
		InvoiceID: inv.ID,
		Origin:    Origin(r),
	})
	if err != nil {
		g.log.Error("issue root failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		return nil, "", err
	}
	root, err := credential.Encode(m)
	if err != nil {
		return nil, "", err
	}

	return inv, root, nil
}

// Discharge issues the encoded discharge for a paid invoice.
func (g *Gate) Discharge(r *http.Request, inv *invoice.Invoice) (string, error) {
	if inv.Status != invoice.StatusPaid {
		return "", fmt.Errorf("invoice %s is %s", inv.ID, inv.Status)
	}
	m, err := g.discharge(r.Context(), g.Location(r), inv)
	if err != nil {
		return "", err
	}
	return credential.Encode(m)
}

func (g *Gate) discharge(ctx context.Context, location string, inv *invoice.Invoice) (*macaroon.Macaroon, error) {
	candidate := credential.ValidUntil(g.now(), inv.AmountUnits)
	validUntil, first, err := g.svc.PaidUntil(ctx, inv.ID, candidate)
	if err != nil {
		validUntil, first = candidate, false
	}

	m, err := g.builder.IssueDischarge(location, inv.ID, validUntil)
	if err != nil {
		g.log.Error("issue discharge failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		return nil, err
	}

	g.log.Info("discharge issued",
		zap.String("invoice_id", inv.ID),
		zap.Time("valid_until", validUntil),
		zap.Bool("first", first))
	if g.opts.Hooks.OnDischarge != nil {
		g.opts.Hooks.OnDischarge(inv, validUntil, first)
	}

	return m, nil
}

func (g *Gate) observeVerify(err error) {
	if g.opts.Hooks.OnVerify != nil {
		g.opts.Hooks.OnVerify(credential.Reason(err))
	}
}

// Location is the credential location for r: the configured override, or
// the scheme and host the request was served on.
func (g *Gate) Location(r *http.Request) string {
	if g.opts.Location != "" {
		return g.opts.Location
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// Origin is the client address a root credential is pinned to.
func Origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Describe renders the invoice description shown in wallets.
func Describe(seconds int64, title, appName string) string {
	if appName == "" {
		appName = defaultAppName
	}
	return fmt.Sprintf("%d seconds in %s for %s", seconds, appName, title)
}

// Failure maps an issuance or polling error to a status and a message safe
// to show the client.
func Failure(err error) (int, string) {
	switch {
	case errors.Is(err, invoice.ErrInvalidInvoiceRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, invoice.ErrProviderUnavailable):
		return http.StatusBadRequest, "no invoice provider configured"
	case errors.Is(err, credential.ErrMissingSigningKey):
		return http.StatusInternalServerError, "caveat key not configured"
	case errors.Is(err, invoice.ErrProvider):
		return http.StatusInternalServerError, "invoice provider error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	jsonb, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonb)
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}
