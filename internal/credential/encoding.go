package credential

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/macaroon.v2"
)

// Encode serializes m as unpadded URL-safe base64 of its binary form, safe
// for cookies and JSON.
func Encode(m *macaroon.Macaroon) (string, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal macaroon: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func Decode(s string) (*macaroon.Macaroon, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedCredential)
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return &m, nil
}
