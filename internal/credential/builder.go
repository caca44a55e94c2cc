// Package credential issues and verifies the macaroon pair that unlocks a
// protected resource: a root credential bound to an invoice through a
// third-party caveat, and a discharge proving that invoice was paid.
package credential

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/macaroon.v2"

	"github.com/stemstr/paywall/internal/caveat"
)

// DischargeBuffer is extra access time granted on top of the paid seconds to
// absorb clock skew and network latency.
const DischargeBuffer = 200 * time.Millisecond

// maxAccessSeconds keeps amountUnits*time.Second+DischargeBuffer within a
// time.Duration.
const maxAccessSeconds = int64((math.MaxInt64 - DischargeBuffer) / time.Second)

// ValidUntil is the deadline for a discharge of an invoice paying for
// amountUnits seconds, evaluated at now. Amounts too large for a
// time.Duration saturate instead of wrapping.
func ValidUntil(now time.Time, amountUnits int64) time.Time {
	if amountUnits < 0 {
		amountUnits = 0
	}
	if amountUnits > maxAccessSeconds {
		amountUnits = maxAccessSeconds
	}
	return now.Add(time.Duration(amountUnits)*time.Second + DischargeBuffer)
}

func NewBuilder(sessionSecret, caveatKey []byte) *Builder {
	return &Builder{
		sessionSecret: sessionSecret,
		caveatKey:     caveatKey,
	}
}

// Builder mints credentials. It performs no I/O and keeps no state beyond
// its keys.
type Builder struct {
	sessionSecret []byte
	caveatKey     []byte
}

// Ready reports whether both signing keys are present. Callers check it
// before creating an invoice so no invoice is issued that could never be
// discharged.
func (b *Builder) Ready() error {
	if len(b.sessionSecret) == 0 {
		return fmt.Errorf("session secret: %w", ErrMissingSigningKey)
	}
	if len(b.caveatKey) == 0 {
		return ErrMissingSigningKey
	}
	return nil
}

type RootRequest struct {
	// ID identifies the credential, typically a fresh uuid per session.
	ID        string
	Location  string
	InvoiceID string
	// Origin is the client attribute the credential is pinned to.
	Origin string
}

// IssueRoot builds a root credential signed with the session secret. It
// carries an origin caveat and a third-party caveat naming the invoice,
// dischargeable only with the caveat key.
func (b *Builder) IssueRoot(req RootRequest) (*macaroon.Macaroon, error) {
	if err := b.Ready(); err != nil {
		return nil, err
	}
	if req.InvoiceID == "" {
		return nil, ErrMissingInvoiceID
	}

	m, err := macaroon.New(b.sessionSecret, []byte(req.ID), req.Location, macaroon.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("macaroon.New: %w", err)
	}

	cond, err := caveat.Equals(caveat.KeyOrigin, req.Origin).Condition()
	if err != nil {
		return nil, err
	}
	if err := m.AddFirstPartyCaveat([]byte(cond)); err != nil {
		return nil, fmt.Errorf("add origin caveat: %w", err)
	}

	if err := m.AddThirdPartyCaveat(b.caveatKey, []byte(req.InvoiceID), req.Location); err != nil {
		return nil, fmt.Errorf("add invoice caveat: %w", err)
	}

	return m, nil
}

// IssueDischarge builds the discharge for invoiceID, valid strictly before
// validUntil. Identical inputs give an identical credential.
func (b *Builder) IssueDischarge(location, invoiceID string, validUntil time.Time) (*macaroon.Macaroon, error) {
	if len(b.caveatKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if invoiceID == "" {
		return nil, ErrMissingInvoiceID
	}

	m, err := macaroon.New(b.caveatKey, []byte(invoiceID), location, macaroon.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("macaroon.New: %w", err)
	}

	cond, err := caveat.ExpiresAt(validUntil).Condition()
	if err != nil {
		return nil, err
	}
	if err := m.AddFirstPartyCaveat([]byte(cond)); err != nil {
		return nil, fmt.Errorf("add time caveat: %w", err)
	}

	return m, nil
}

// InvoiceID returns the invoice a root credential is bound to. It is the
// only invoice id trusted once a root credential exists.
func InvoiceID(root *macaroon.Macaroon) (string, error) {
	cavs, err := caveat.FromMacaroon(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	tp, ok := caveat.Find(cavs, caveat.ThirdParty)
	if !ok || tp.ID == "" {
		return "", fmt.Errorf("%w: no invoice caveat", ErrMalformedCredential)
	}
	return tp.ID, nil
}
