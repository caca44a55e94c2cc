package invoice

import (
	"fmt"
	"strings"
)

type Backend string

const (
	BackendNone   Backend = ""
	BackendHosted Backend = "hosted"
	BackendLND    Backend = "lnd"
)

const (
	HostedZBD      = "zbd"
	HostedNodeless = "nodeless"
	HostedMock     = "mock"
)

// Config carries the backend credentials. A processor API key and the lnd
// triple are mutually exclusive.
type Config struct {
	HostedProvider  string
	APIKey          string
	NodelessStoreID string
	HasRepo         bool

	LNDTLSCert  string
	LNDMacaroon string
	LNDSocket   string
}

// Backend resolves which backend is configured. ErrProviderUnavailable is
// not fatal: the server runs and invoice routes refuse requests.
func (c Config) Backend() (Backend, error) {
	lnd := map[string]string{
		"LND_TLS_CERT": c.LNDTLSCert,
		"LND_MACAROON": c.LNDMacaroon,
		"LND_SOCKET":   c.LNDSocket,
	}
	var missing []string
	for _, name := range []string{"LND_TLS_CERT", "LND_MACAROON", "LND_SOCKET"} {
		if strings.TrimSpace(lnd[name]) == "" {
			missing = append(missing, name)
		}
	}
	lndSet := len(missing) < len(lnd)
	hostedSet := c.APIKey != "" || c.HostedProvider == HostedMock

	switch {
	case lndSet && hostedSet:
		return BackendNone, fmt.Errorf("%w: processor api key and lnd credentials are mutually exclusive", ErrProviderMisconfigured)
	case lndSet && len(missing) > 0:
		return BackendNone, fmt.Errorf("%w: missing %s", ErrProviderMisconfigured, strings.Join(missing, ", "))
	case lndSet:
		return BackendLND, nil
	case hostedSet:
		return BackendHosted, c.validateHosted()
	}
	return BackendNone, ErrProviderUnavailable
}

func (c Config) validateHosted() error {
	switch c.HostedProvider {
	case HostedZBD, HostedMock:
		return nil
	case HostedNodeless:
		if c.NodelessStoreID == "" {
			return fmt.Errorf("%w: nodeless requires NODELESS_STOREID", ErrProviderMisconfigured)
		}
		// nodeless reports status only; amounts come from our own records.
		if !c.HasRepo {
			return fmt.Errorf("%w: nodeless requires an invoice database", ErrProviderMisconfigured)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown hosted provider %q. must be 'zbd', 'nodeless' or 'mock'", ErrProviderMisconfigured, c.HostedProvider)
}
