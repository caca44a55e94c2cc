package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stemstr/paywall/internal/content"
	"github.com/stemstr/paywall/internal/credential"
	"github.com/stemstr/paywall/internal/gate"
	"github.com/stemstr/paywall/internal/invoice"
	"github.com/stemstr/paywall/internal/session"
)

const (
	testSecret    = "0123456789abcdef0123456789abcdef"
	testCaveatKey = "caveat-key-for-tests"
)

type client struct {
	t      *testing.T
	router http.Handler
	jar    map[string]*http.Cookie
}

func newTestServer(t *testing.T, svc *mockInvoices, caveatKey string) *client {
	return newTestServerWithConfig(t, svc, Config{APIPath: "/api", SessionSecret: testSecret, CaveatKey: caveatKey})
}

func newTestServerWithConfig(t *testing.T, svc *mockInvoices, cfg Config) *client {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.html"), []byte("<p>paid</p>"), 0644))
	files, err := content.NewFile(dir)
	require.NoError(t, err)

	cfg.applyDefaults()

	builder := credential.NewBuilder([]byte(cfg.SessionSecret), []byte(cfg.CaveatKey))
	store := session.NewCookieStore([]byte(cfg.SessionSecret), session.CookieOptions{})
	h := &handlers{
		config:   cfg,
		invoices: svc,
		builder:  builder,
		gate: gate.New(svc, builder, credential.NewVerifier([]byte(cfg.SessionSecret)), store, gate.Options{
			Location:      "https://paywall.test",
			AccessSeconds: cfg.DefaultAccessSeconds,
		}),
		store:   store,
		content: content.Handler(files, nil),
		log:     zap.NewNop(),
	}

	return &client{t: t, router: h.router(), jar: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	return c.doFrom(method, target, body, "192.0.2.1:1234", nil)
}

// doFrom sends the request from remoteAddr with extra headers.
func (c *client) doFrom(method, target string, body any, remoteAddr string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(c.t, json.NewEncoder(&buf).Encode(b))
	}

	r := httptest.NewRequest(method, target, &buf)
	r.RemoteAddr = remoteAddr
	for k, v := range header {
		r.Header[k] = v
	}
	for _, ck := range c.jar {
		r.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, r)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.jar, ck.Name)
			continue
		}
		c.jar[ck.Name] = ck
	}

	var decoded map[string]any
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestCreateInvoice(t *testing.T) {
	svc := &mockInvoices{}
	c := newTestServer(t, svc, testCaveatKey)

	w, body := c.do(http.MethodPost, "/api/invoice", map[string]any{"time": 60, "title": "doc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inv_1", body["id"])
	assert.Equal(t, "lnbcmock60", body["payreq"])
	assert.Equal(t, "60 seconds in the lightning reader for doc", body["description"])
	assert.Equal(t, float64(60), body["amount"])
	assert.Equal(t, "2024-03-01T12:00:00Z", body["createdAt"])
	assert.NotContains(t, body, "status")
	assert.Contains(t, c.jar, session.RootCookie)

	w, body = c.do(http.MethodPost, "/api/invoice", map[string]any{"time": 30, "title": "doc", "appName": "Reader"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30 seconds in Reader for doc", body["description"])

	expiresAt := time.Now().Add(10 * time.Minute)
	w, _ = c.do(http.MethodPost, "/api/invoice", map[string]any{"time": 30, "title": "doc", "expiresAt": expiresAt})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, float64(10*time.Minute), float64(svc.Created[2].Expiry), float64(5*time.Second))
}

func TestCreateInvoiceFailures(t *testing.T) {
	var tests = []struct {
		name      string
		svc       *mockInvoices
		caveatKey string
		body      any
		status    int
	}{
		{"no provider", &mockInvoices{AvailableErr: invoice.ErrProviderUnavailable}, testCaveatKey, map[string]any{"time": 60, "title": "doc"}, http.StatusBadRequest},
		{"no caveat key", &mockInvoices{}, "", map[string]any{"time": 60, "title": "doc"}, http.StatusInternalServerError},
		{"bad json", &mockInvoices{}, testCaveatKey, "{", http.StatusBadRequest},
		{"zero time", &mockInvoices{}, testCaveatKey, map[string]any{"time": 0, "title": "doc"}, http.StatusBadRequest},
		{"expired", &mockInvoices{}, testCaveatKey, map[string]any{"time": 60, "expiresAt": time.Now().Add(-time.Minute)}, http.StatusBadRequest},
		{"provider error", &mockInvoices{CreateErr: errors.Join(invoice.ErrProvider, errors.New("timeout"))}, testCaveatKey, map[string]any{"time": 60, "title": "doc"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.svc, tt.caveatKey)

			w, body := c.do(http.MethodPost, "/api/invoice", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, body["message"])
			assert.Empty(t, tt.svc.Created)
			assert.NotContains(t, c.jar, session.RootCookie)
		})
	}
}

func TestGetInvoice(t *testing.T) {
	svc := &mockInvoices{}
	c := newTestServer(t, svc, testCaveatKey)

	w, body := c.do(http.MethodGet, "/api/invoice?id=X", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "unpaid", body["status"])
	assert.Equal(t, "lnbcmock60", body["payreq"])

	svc.Status = invoice.StatusProcessing
	w, body = c.do(http.MethodGet, "/api/invoice?id=X", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "processing", body["status"])

	svc.Status = invoice.StatusPaid
	w, body = c.do(http.MethodGet, "/api/invoice?id=X", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", body["status"])
	discharge, _ := body["discharge"].(string)
	require.NotEmpty(t, discharge)

	// Polling again after payment is safe and yields the same deadline.
	w, body = c.do(http.MethodGet, "/api/invoice?id=X", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, discharge, body["discharge"])

	// No root bound to X, so nothing was persisted.
	assert.Empty(t, c.jar)
}

func TestGetInvoiceFailures(t *testing.T) {
	var tests = []struct {
		name   string
		svc    *mockInvoices
		target string
		status int
	}{
		{"missing id", &mockInvoices{}, "/api/invoice", http.StatusBadRequest},
		{"unknown status", &mockInvoices{Status: invoice.StatusUnknown}, "/api/invoice?id=X", http.StatusBadRequest},
		{"provider error", &mockInvoices{StatusErr: errors.Join(invoice.ErrProvider, errors.New("eof"))}, "/api/invoice?id=X", http.StatusBadRequest},
		{"no provider", &mockInvoices{AvailableErr: invoice.ErrProviderUnavailable}, "/api/invoice?id=X", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.svc, testCaveatKey)
			w, body := c.do(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestGetNode(t *testing.T) {
	var tests = []struct {
		name   string
		svc    *mockInvoices
		status int
		body   map[string]any
	}{
		{"none", &mockInvoices{InfoErr: invoice.ErrProviderUnavailable}, http.StatusNotFound, nil},
		{"hosted", &mockInvoices{Info: &invoice.NodeInfo{PubKey: "02abc", Hosted: true}}, http.StatusOK, map[string]any{"identityPubkey": "02abc"}},
		{"lnd", &mockInvoices{Info: &invoice.NodeInfo{PubKey: "03def", Alias: "reader-node"}}, http.StatusOK, map[string]any{"pubKey": "03def", "alias": "reader-node"}},
		{"provider error", &mockInvoices{InfoErr: invoice.ErrProvider}, http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.svc, testCaveatKey)
			w, body := c.do(http.MethodGet, "/api/node", nil)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != nil {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestPaywallFlow(t *testing.T) {
	svc := &mockInvoices{}
	c := newTestServer(t, svc, testCaveatKey)

	w, body := c.do(http.MethodGet, "/api/protected/doc.html", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	inv, _ := body["invoice"].(map[string]any)
	require.NotNil(t, inv)
	id, _ := inv["id"].(string)
	require.NotEmpty(t, id)

	w, body = c.do(http.MethodGet, "/api/protected/doc.html", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "unpaid", body["status"])

	// Paying and polling the invoice route stores the discharge next to the root.
	svc.Status = invoice.StatusPaid
	w, _ = c.do(http.MethodGet, "/api/invoice?id="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, c.jar, session.DischargeCookie)

	w, _ = c.do(http.MethodGet, "/api/protected/doc.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>paid</p>", w.Body.String())
	assert.Len(t, svc.Created, 1)
}

func TestRoutesWithoutPrefix(t *testing.T) {
	svc := &mockInvoices{Info: &invoice.NodeInfo{PubKey: "02abc", Hosted: true}}
	c := newTestServerWithConfig(t, svc, Config{SessionSecret: testSecret, CaveatKey: testCaveatKey})

	w, body := c.do(http.MethodGet, "/node", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "02abc", body["identityPubkey"])

	w, _ = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// pay walks the client through invoice, payment and first access from
// remoteAddr with header.
func (c *client) pay(svc *mockInvoices, remoteAddr string, header http.Header) {
	w, body := c.doFrom(http.MethodGet, "/api/protected/doc.html", nil, remoteAddr, header)
	require.Equal(c.t, http.StatusPaymentRequired, w.Code)
	inv, _ := body["invoice"].(map[string]any)
	require.NotNil(c.t, inv)

	svc.Status = invoice.StatusPaid
	w, _ = c.doFrom(http.MethodGet, "/api/protected/doc.html", nil, remoteAddr, header)
	require.Equal(c.t, http.StatusOK, w.Code)
}

func TestForwardedHeadersIgnoredByDefault(t *testing.T) {
	svc := &mockInvoices{}
	c := newTestServer(t, svc, testCaveatKey)
	c.pay(svc, "192.0.2.1:1234", nil)

	stolen := map[string]*http.Cookie{}
	for k, v := range c.jar {
		stolen[k] = v
	}

	spoofed := http.Header{}
	spoofed.Set("X-Real-IP", "192.0.2.1")
	spoofed.Set("X-Forwarded-For", "192.0.2.1")
	w, body := c.doFrom(http.MethodGet, "/api/protected/doc.html", nil, "203.0.113.9:5555", spoofed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "authorization failed", body["message"])

	// The rightful client still gets in with the same pair.
	c.jar = stolen
	w, _ = c.do(http.MethodGet, "/api/protected/doc.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrustProxyUsesForwardedAddress(t *testing.T) {
	svc := &mockInvoices{}
	c := newTestServerWithConfig(t, svc, Config{
		APIPath:       "/api",
		SessionSecret: testSecret,
		CaveatKey:     testCaveatKey,
		TrustProxy:    true,
	})

	client := http.Header{}
	client.Set("X-Real-IP", "198.51.100.20")
	c.pay(svc, "10.0.0.2:40000", client)
	require.Len(t, svc.Created, 1)
	assert.Equal(t, "198.51.100.20", svc.Created[0].ClientContext)

	// Same client through another proxy peer.
	w, _ := c.doFrom(http.MethodGet, "/api/protected/doc.html", nil, "10.0.0.3:40000", client)
	assert.Equal(t, http.StatusOK, w.Code)

	other := http.Header{}
	other.Set("X-Real-IP", "203.0.113.9")
	w, _ = c.doFrom(http.MethodGet, "/api/protected/doc.html", nil, "10.0.0.2:40000", other)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
