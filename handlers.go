package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stemstr/paywall/internal/credential"
	"github.com/stemstr/paywall/internal/gate"
	"github.com/stemstr/paywall/internal/invoice"
	"github.com/stemstr/paywall/internal/session"
)

// invoiceService is implemented by *invoice.Service.
type invoiceService interface {
	gate.InvoiceService
	Available() error
	NodeInfo(ctx context.Context) (*invoice.NodeInfo, error)
}

type handlers struct {
	config   Config
	invoices invoiceService
	builder  *credential.Builder
	gate     *gate.Gate
	store    session.Store
	content  http.Handler
	log      *zap.Logger
}

// requireInvoicing refuses invoice routes when no invoice could ever be
// discharged: no backend, or no caveat key.
func (h *handlers) requireInvoicing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.invoices.Available()
		if err == nil {
			err = h.builder.Ready()
		}
		if err != nil {
			status, msg := gate.Failure(err)
			gate.WriteMessage(w, status, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createInvoiceRequest struct {
	Time      int64      `json:"time"`
	Title     string     `json:"title"`
	AppName   string     `json:"appName"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// POST /invoice
func (h *handlers) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var body createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gate.WriteMessage(w, http.StatusBadRequest, "expected JSON payload")
		return
	}
	if body.Time <= 0 {
		gate.WriteMessage(w, http.StatusBadRequest, "time must be a positive number of seconds")
		return
	}

	req := invoice.Request{
		DurationSeconds: body.Time,
		Description:     gate.Describe(body.Time, body.Title, body.AppName),
		ClientContext:   gate.Origin(r),
	}
	if body.ExpiresAt != nil {
		req.Expiry = time.Until(*body.ExpiresAt)
		if req.Expiry <= 0 {
			gate.WriteMessage(w, http.StatusBadRequest, "expiresAt must be in the future")
			return
		}
	}

	inv, root, err := h.gate.Issue(r, req)
	if err != nil {
		status, msg := gate.Failure(err)
		if errors.Is(err, invoice.ErrProvider) {
			status = http.StatusBadRequest
		}
		gate.WriteMessage(w, status, msg)
		return
	}

	if err := h.store.Save(w, session.Values{Root: root}); err != nil {
		h.log.Error("save session failed", zap.String("invoice_id", inv.ID), zap.Error(err))
		gate.WriteMessage(w, http.StatusInternalServerError, "unable to persist credential")
		return
	}

	gate.WriteJSON(w, http.StatusOK, map[string]any{
		"id":          inv.ID,
		"payreq":      inv.PaymentRequest,
		"description": inv.Description,
		"createdAt":   inv.CreatedAt,
		"amount":      inv.AmountUnits,
	})
}

// GET /invoice?id=
func (h *handlers) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		gate.WriteMessage(w, http.StatusBadRequest, "missing invoice id")
		return
	}

	inv, err := h.invoices.GetInvoiceStatus(r.Context(), id)
	if err != nil {
		_, msg := gate.Failure(err)
		gate.WriteMessage(w, http.StatusBadRequest, msg)
		return
	}

	switch {
	case inv.Status == invoice.StatusPaid:
	case inv.Status.Pending():
		gate.WriteJSON(w, http.StatusAccepted, map[string]any{
			"status": inv.Status,
			"payreq": inv.PaymentRequest,
		})
		return
	default:
		h.log.Warn("unknown invoice status", zap.String("invoice_id", id), zap.String("status", string(inv.Status)))
		gate.WriteMessage(w, http.StatusBadRequest, invoice.ErrUnknownStatus.Error())
		return
	}

	discharge, err := h.gate.Discharge(r, inv)
	if err != nil {
		gate.WriteMessage(w, http.StatusInternalServerError, "unable to issue discharge")
		return
	}

	// Keep the pair together when this client's root is bound to the invoice.
	if vals := h.store.Load(r); vals.Root != "" && rootInvoice(vals.Root) == id {
		if err := h.store.Save(w, session.Values{Root: vals.Root, Discharge: discharge}); err != nil {
			h.log.Warn("save discharge failed", zap.String("invoice_id", id), zap.Error(err))
		}
	}

	gate.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    invoice.StatusPaid,
		"discharge": discharge,
	})
}

// GET /node
func (h *handlers) handleGetNode(w http.ResponseWriter, r *http.Request) {
	info, err := h.invoices.NodeInfo(r.Context())
	if errors.Is(err, invoice.ErrProviderUnavailable) {
		gate.WriteMessage(w, http.StatusNotFound, "no lightning node configured")
		return
	}
	if err != nil {
		status, msg := gate.Failure(err)
		gate.WriteMessage(w, status, msg)
		return
	}

	if info.Hosted {
		gate.WriteJSON(w, http.StatusOK, map[string]any{"identityPubkey": info.PubKey})
		return
	}
	gate.WriteJSON(w, http.StatusOK, map[string]any{
		"pubKey": info.PubKey,
		"alias":  info.Alias,
	})
}

func rootInvoice(root string) string {
	m, err := credential.Decode(root)
	if err != nil {
		return ""
	}
	id, err := credential.InvoiceID(m)
	if err != nil {
		return ""
	}
	return id
}
