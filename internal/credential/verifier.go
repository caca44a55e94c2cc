package credential

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/macaroon.v2"

	"github.com/stemstr/paywall/internal/caveat"
)

// Context is what a credential pair is checked against for one request.
type Context struct {
	Origin string
	// InvoiceID, when set, must match the root's invoice caveat.
	InvoiceID string
	Now       time.Time
}

func (c Context) value(key string) (string, bool) {
	switch key {
	case caveat.KeyOrigin:
		return c.Origin, true
	case caveat.KeyInvoiceID:
		return c.InvoiceID, true
	}
	return "", false
}

func NewVerifier(sessionSecret []byte) *Verifier {
	return &Verifier{rootKey: sessionSecret}
}

type Verifier struct {
	rootKey []byte
}

// Verify checks an encoded root and discharge pair. The returned error wraps
// exactly one of ErrMalformedCredential, ErrExpired, ErrContextMismatch or
// ErrInvalidSignature.
func (v *Verifier) Verify(root, discharge string, want Context) error {
	rm, err := Decode(root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	dm, err := Decode(discharge)
	if err != nil {
		return fmt.Errorf("discharge: %w", err)
	}
	return v.VerifyMacaroons(rm, dm, want)
}

func (v *Verifier) VerifyMacaroons(root, discharge *macaroon.Macaroon, want Context) error {
	if want.Now.IsZero() {
		want.Now = time.Now()
	}

	rootCavs, err := caveat.FromMacaroon(root)
	if err != nil {
		return fmt.Errorf("%w: root: %v", ErrMalformedCredential, err)
	}

	bound := discharge.Clone()
	bound.Bind(root.Signature())

	boundCavs, err := caveat.FromMacaroon(bound)
	if err != nil {
		return fmt.Errorf("%w: discharge: %v", ErrMalformedCredential, err)
	}

	verr := root.Verify(v.rootKey, checker(want), []*macaroon.Macaroon{bound})
	if verr == nil {
		verr = boundTo(rootCavs, boundCavs, want)
	}
	if verr == nil {
		return nil
	}

	return classify(rootCavs, boundCavs, want, verr)
}

// checker evaluates first-party conditions during signature verification.
func checker(want Context) func(string) error {
	return func(cond string) error {
		c, err := caveat.Parse(cond)
		if err != nil {
			return err
		}
		switch c.Kind {
		case caveat.Time:
			if !c.Satisfied(want.Now) {
				return errors.New("time caveat not satisfied")
			}
			return nil
		case caveat.FirstParty:
			expected, ok := want.value(c.Key)
			if !ok {
				return fmt.Errorf("unknown caveat key %q", c.Key)
			}
			if c.Value != expected {
				return fmt.Errorf("caveat %q not satisfied", c.Key)
			}
			return nil
		}
		return fmt.Errorf("unexpected caveat kind %v", c.Kind)
	}
}

// boundTo enforces what signature checks cannot: the discharge must expire
// and, when the caller names one, the root must be bound to that invoice.
func boundTo(rootCavs, boundCavs []caveat.Caveat, want Context) error {
	if _, ok := caveat.Find(boundCavs, caveat.Time); !ok {
		return errors.New("discharge carries no time caveat")
	}
	if want.InvoiceID != "" {
		tp, _ := caveat.Find(rootCavs, caveat.ThirdParty)
		if tp.ID != want.InvoiceID {
			return errors.New("invoice caveat mismatch")
		}
	}
	return nil
}

// classify turns a verification failure into a reason. An unsatisfied time
// caveat wins over a context mismatch, which wins over everything else.
func classify(rootCavs, boundCavs []caveat.Caveat, want Context, cause error) error {
	for _, c := range boundCavs {
		if c.Kind == caveat.Time && !c.Satisfied(want.Now) {
			return fmt.Errorf("%w: valid until %s", ErrExpired, c.Before.Format(caveat.TimeLayout))
		}
	}

	for _, c := range rootCavs {
		switch c.Kind {
		case caveat.FirstParty:
			if expected, ok := want.value(c.Key); ok && c.Value != expected {
				return fmt.Errorf("%w: %s", ErrContextMismatch, c.Key)
			}
		case caveat.ThirdParty:
			if want.InvoiceID != "" && c.ID != want.InvoiceID {
				return fmt.Errorf("%w: %s", ErrContextMismatch, caveat.KeyInvoiceID)
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrInvalidSignature, cause)
}
