package notifier

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNsec(t *testing.T) (string, string) {
	sk := nostr.GeneratePrivateKey()
	nsec, err := nip19.EncodePrivateKey(sk)
	require.NoError(t, err)
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	return nsec, pk
}

func TestNew(t *testing.T) {
	nsec, pk := testNsec(t)

	n, err := New(nsec, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultRelays, n.relayURLs)
	assert.Equal(t, pk, n.pubkey)

	npub, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)
	assert.Equal(t, npub, n.Npub())

	n, err = New(nsec, []string{"wss://relay.example"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://relay.example"}, n.relayURLs)
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, pk := testNsec(t)
	npub, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)

	for _, key := range []string{"", "nsec1garbage", npub} {
		_, err := New(key, nil, nil)
		assert.Error(t, err, key)
	}
}

func TestNewEvent(t *testing.T) {
	nsec, pk := testNsec(t)
	n, err := New(nsec, nil, nil)
	require.NoError(t, err)

	event := n.newEvent("invoice paid")
	assert.Equal(t, nostr.KindTextNote, event.Kind)
	assert.Equal(t, pk, event.PubKey)
	assert.Equal(t, "invoice paid", event.Content)

	ok, err := event.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}
