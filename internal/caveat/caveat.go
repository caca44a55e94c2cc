// Package caveat gives macaroon caveats a typed shape so callers match on
// kinds instead of scanning condition text.
package caveat

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/macaroon.v2"
)

type Kind int

const (
	FirstParty Kind = iota + 1
	ThirdParty
	Time
)

func (k Kind) String() string {
	switch k {
	case FirstParty:
		return "first-party"
	case ThirdParty:
		return "third-party"
	case Time:
		return "time"
	default:
		return "unknown"
	}
}

const (
	KeyOrigin    = "origin"
	KeyInvoiceID = "invoiceId"
	KeyTime      = "time"
)

// TimeLayout keeps sub-millisecond precision so a deadline round-trips exactly.
const TimeLayout = time.RFC3339Nano

// Caveat is one condition carried by a credential.
type Caveat struct {
	Kind Kind

	// FirstParty
	Key   string
	Value string

	// Time
	Before time.Time

	// ThirdParty
	ID       string
	Location string
}

func Equals(key, value string) Caveat {
	return Caveat{Kind: FirstParty, Key: key, Value: value}
}

func ExpiresAt(t time.Time) Caveat {
	return Caveat{Kind: Time, Before: t.UTC()}
}

// Condition renders a first-party or time caveat in its wire form.
func (c Caveat) Condition() (string, error) {
	switch c.Kind {
	case FirstParty:
		if c.Key == "" || strings.ContainsAny(c.Key, " =") {
			return "", fmt.Errorf("invalid caveat key %q", c.Key)
		}
		return c.Key + " = " + c.Value, nil
	case Time:
		return KeyTime + " < " + c.Before.UTC().Format(TimeLayout), nil
	default:
		return "", fmt.Errorf("%v caveat has no condition", c.Kind)
	}
}

// Satisfied reports whether a time caveat still holds at now.
func (c Caveat) Satisfied(now time.Time) bool {
	return c.Kind == Time && now.Before(c.Before)
}

func (c Caveat) String() string {
	if c.Kind == ThirdParty {
		return fmt.Sprintf("third-party %s @ %s", c.ID, c.Location)
	}
	cond, err := c.Condition()
	if err != nil {
		return err.Error()
	}
	return cond
}

// Parse reads a first-party condition. "time < <ts>" yields a Time caveat,
// "<key> = <value>" yields a FirstParty caveat.
func Parse(condition string) (Caveat, error) {
	if rest, ok := strings.CutPrefix(condition, KeyTime+" < "); ok {
		t, err := time.Parse(TimeLayout, strings.TrimSpace(rest))
		if err != nil {
			return Caveat{}, fmt.Errorf("parse time caveat: %w", err)
		}
		return ExpiresAt(t), nil
	}

	key, value, ok := strings.Cut(condition, " = ")
	if !ok || key == "" || strings.ContainsAny(key, " =") {
		return Caveat{}, fmt.Errorf("unrecognized caveat %q", condition)
	}
	return Equals(key, value), nil
}

// FromMacaroon lists the caveats of m in order.
func FromMacaroon(m *macaroon.Macaroon) ([]Caveat, error) {
	var out []Caveat
	for _, c := range m.Caveats() {
		if len(c.VerificationId) > 0 {
			out = append(out, Caveat{
				Kind:     ThirdParty,
				ID:       string(c.Id),
				Location: c.Location,
			})
			continue
		}
		parsed, err := Parse(string(c.Id))
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// Find returns the first caveat of the given kind.
func Find(cavs []Caveat, kind Kind) (Caveat, bool) {
	for _, c := range cavs {
		if c.Kind == kind {
			return c, true
		}
	}
	return Caveat{}, false
}
