package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

var defaultRelays = []string{"wss://nostr.mutinywallet.com"}

func New(nsec string, relayURLs []string, log *zap.Logger) (*Notifier, error) {
	prefix, sk, err := nip19.Decode(nsec)
	if err != nil {
		return nil, fmt.Errorf("nip19 decode: %w", err)
	}
	privateKey, ok := sk.(string)
	if prefix != "nsec" || !ok {
		return nil, errors.New("notifier key must be an nsec")
	}

	pubkey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("get pubkey: %w", err)
	}

	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		return nil, fmt.Errorf("encode pubkey: %w", err)
	}

	if len(relayURLs) == 0 {
		relayURLs = defaultRelays
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Notifier{
		relayURLs:  relayURLs,
		npub:       npub,
		pubkey:     pubkey,
		privateKey: privateKey,
		log:        log,
	}, nil
}

// Notifier posts operator notes to nostr relays.
type Notifier struct {
	relayURLs                []string
	npub, pubkey, privateKey string
	log                      *zap.Logger
}

func (n *Notifier) Npub() string {
	return n.npub
}

// Paid announces a settled invoice in the background.
func (n *Notifier) Paid(invoiceID string, amount int64, validUntil time.Time) {
	content := fmt.Sprintf("invoice %s paid: %d seconds of access until %s",
		invoiceID, amount, validUntil.UTC().Format(time.RFC3339))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		n.Send(ctx, content)
	}()
}

func (n *Notifier) Send(ctx context.Context, content string) {
	event := n.newEvent(content)
	n.connectAndSend(ctx, event)
}

func (n *Notifier) newEvent(content string) nostr.Event {
	event := nostr.Event{
		PubKey:    n.pubkey,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nil,
		Content:   content,
	}
	event.Sign(n.privateKey)

	return event
}

func (n *Notifier) connectAndSend(ctx context.Context, event nostr.Event) {
	for _, url := range n.relayURLs {
		n.publish(ctx, url, event)
	}
}

func (n *Notifier) publish(ctx context.Context, url string, event nostr.Event) {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		n.log.Warn("relay connect failed", zap.String("relay", url), zap.Error(err))
		return
	}
	defer relay.Close()

	if _, err := relay.Publish(ctx, event); err != nil {
		n.log.Warn("relay publish failed", zap.String("relay", url), zap.Error(err))
	}
}
