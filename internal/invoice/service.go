package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

type Options struct {
	// Name labels the backend in logs and records.
	Name    string
	Repo    Repo
	Timeout time.Duration
	Logger  *zap.Logger
}

// New wraps ln. A nil ln yields a Service whose calls fail with
// ErrProviderUnavailable.
func New(ln Provider, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		ln:      ln,
		name:    opts.Name,
		repo:    opts.Repo,
		timeout: opts.Timeout,
		log:     opts.Logger,
		now:     time.Now,
	}
}

// Service is safe for concurrent use; it keeps no mutable state of its own.
// Calls are never retried here, callers decide.
type Service struct {
	ln      Provider
	name    string
	repo    Repo
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func (s *Service) Name() string {
	return s.name
}

func (s *Service) Available() error {
	if s.ln == nil {
		return ErrProviderUnavailable
	}
	return nil
}

func (s *Service) CreateInvoice(ctx context.Context, req Request) (*Invoice, error) {
	if err := s.Available(); err != nil {
		return nil, err
	}
	if req.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: time must be a positive number of seconds", ErrInvalidInvoiceRequest)
	}
	if req.DurationSeconds > MaxDurationSeconds {
		return nil, fmt.Errorf("%w: time must be at most %d seconds", ErrInvalidInvoiceRequest, MaxDurationSeconds)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inv, err := s.ln.CreateInvoice(ctx, req)
	if err != nil {
		s.log.Error("create invoice failed",
			zap.String("provider", s.name),
			zap.Int64("seconds", req.DurationSeconds),
			zap.Error(err))
		return nil, providerErr(err)
	}

	if inv.AmountUnits == 0 {
		inv.AmountUnits = req.DurationSeconds
	}
	if inv.Description == "" {
		inv.Description = req.Description
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	if inv.Status == "" {
		inv.Status = StatusUnpaid
	}
	inv.Status = normalize(inv.Status)

	if s.repo != nil {
		err := s.repo.SaveInvoice(ctx, Record{
			ID:             inv.ID,
			Provider:       s.name,
			AmountUnits:    inv.AmountUnits,
			Description:    inv.Description,
			PaymentRequest: inv.PaymentRequest,
			CreatedAt:      inv.CreatedAt,
		})
		if err != nil {
			s.log.Error("save invoice failed", zap.String("invoice_id", inv.ID), zap.Error(err))
			return nil, fmt.Errorf("save invoice: %w", err)
		}
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("provider", s.name),
		zap.Int64("amount", inv.AmountUnits))

	return inv, nil
}

// GetInvoiceStatus is a read and safe to call redundantly for one id.
func (s *Service) GetInvoiceStatus(ctx context.Context, id string) (*Invoice, error) {
	if err := s.Available(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing invoice id", ErrInvalidInvoiceRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inv, err := s.ln.GetInvoiceStatus(ctx, id)
	if err != nil {
		s.log.Error("get invoice status failed",
			zap.String("invoice_id", id),
			zap.String("provider", s.name),
			zap.Error(err))
		return nil, providerErr(err)
	}
	inv.ID = id
	inv.Status = normalize(inv.Status)

	if s.repo != nil {
		rec, err := s.repo.GetInvoice(ctx, id)
		if err != nil {
			s.log.Warn("get invoice record failed", zap.String("invoice_id", id), zap.Error(err))
		} else if rec != nil {
			fill(inv, rec)
		}
	}

	return inv, nil
}

// PaidUntil settles the access deadline for a paid invoice. With a repo the
// first deadline computed for an invoice wins and later polls reuse it;
// without one candidate is returned as is. first reports whether this call
// fixed the deadline.
func (s *Service) PaidUntil(ctx context.Context, id string, candidate time.Time) (deadline time.Time, first bool, err error) {
	if s.repo == nil {
		return candidate, true, nil
	}

	deadline, first, err = s.repo.SetValidUntil(ctx, id, candidate)
	if err != nil {
		s.log.Warn("store deadline failed", zap.String("invoice_id", id), zap.Error(err))
		return candidate, false, nil
	}
	return deadline, first, nil
}

func (s *Service) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	if err := s.Available(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.ln.NodeInfo(ctx)
	if err != nil {
		s.log.Error("node info failed", zap.String("provider", s.name), zap.Error(err))
		return nil, providerErr(err)
	}
	return info, nil
}

func providerErr(err error) error {
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrInvalidInvoiceRequest) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

func normalize(s Status) Status {
	switch s {
	case StatusUnpaid, StatusProcessing, StatusPaid:
		return s
	}
	return StatusUnknown
}

func fill(inv *Invoice, rec *Record) {
	if inv.AmountUnits == 0 {
		inv.AmountUnits = rec.AmountUnits
	}
	if inv.PaymentRequest == "" {
		inv.PaymentRequest = rec.PaymentRequest
	}
	if inv.Description == "" {
		inv.Description = rec.Description
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = rec.CreatedAt
	}
}
