package caveat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/macaroon.v2"
)

func TestParse(t *testing.T) {
	deadline := time.Date(2026, 10, 19, 12, 0, 0, 123456789, time.UTC)

	var tests = []struct {
		name      string
		condition string
		expected  Caveat
		err       bool
	}{
		{"origin", "origin = 10.0.0.1", Equals(KeyOrigin, "10.0.0.1"), false},
		{"invoice id", "invoiceId = abc-123", Equals(KeyInvoiceID, "abc-123"), false},
		{"empty value", "origin = ", Equals(KeyOrigin, ""), false},
		{"time", "time < " + deadline.Format(TimeLayout), ExpiresAt(deadline), false},
		{"bad time", "time < yesterday", Caveat{}, true},
		{"no operator", "origin", Caveat{}, true},
		{"empty key", " = x", Caveat{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.condition)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.Kind, c.Kind)
			assert.Equal(t, tt.expected.Key, c.Key)
			assert.Equal(t, tt.expected.Value, c.Value)
			assert.True(t, tt.expected.Before.Equal(c.Before))
		})
	}
}

func TestConditionRoundTrip(t *testing.T) {
	deadline := time.Now().Add(time.Minute)

	for _, c := range []Caveat{Equals(KeyOrigin, "::1"), ExpiresAt(deadline)} {
		cond, err := c.Condition()
		require.NoError(t, err)

		parsed, err := Parse(cond)
		require.NoError(t, err)
		assert.Equal(t, c.Kind, parsed.Kind)
		assert.Equal(t, c.Value, parsed.Value)
		assert.True(t, c.Before.Equal(parsed.Before))
	}

	_, err := Caveat{Kind: ThirdParty}.Condition()
	assert.Error(t, err)
}

func TestSatisfied(t *testing.T) {
	deadline := time.Now()
	c := ExpiresAt(deadline)

	assert.True(t, c.Satisfied(deadline.Add(-time.Millisecond)))
	assert.False(t, c.Satisfied(deadline))
	assert.False(t, c.Satisfied(deadline.Add(time.Millisecond)))
	assert.False(t, Equals(KeyOrigin, "x").Satisfied(deadline.Add(-time.Hour)))
}

func TestFromMacaroon(t *testing.T) {
	m, err := macaroon.New([]byte("root-key-root-key-root-key-root-key"), []byte("id"), "https://example.com", macaroon.LatestVersion)
	require.NoError(t, err)
	require.NoError(t, m.AddFirstPartyCaveat([]byte("origin = 127.0.0.1")))
	require.NoError(t, m.AddThirdPartyCaveat([]byte("caveat-key"), []byte("inv-1"), "https://example.com"))

	cavs, err := FromMacaroon(m)
	require.NoError(t, err)
	require.Len(t, cavs, 2)

	assert.Equal(t, FirstParty, cavs[0].Kind)
	assert.Equal(t, "127.0.0.1", cavs[0].Value)

	tp, ok := Find(cavs, ThirdParty)
	require.True(t, ok)
	assert.Equal(t, "inv-1", tp.ID)
	assert.Equal(t, "https://example.com", tp.Location)

	_, ok = Find(cavs, Time)
	assert.False(t, ok)
}
