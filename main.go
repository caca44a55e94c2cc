package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/stemstr/paywall/internal/content"
	"github.com/stemstr/paywall/internal/credential"
	"github.com/stemstr/paywall/internal/gate"
	"github.com/stemstr/paywall/internal/invoice"
	"github.com/stemstr/paywall/internal/invoice/ln/lnd"
	"github.com/stemstr/paywall/internal/invoice/ln/mock"
	"github.com/stemstr/paywall/internal/invoice/ln/nodeless"
	"github.com/stemstr/paywall/internal/invoice/ln/zbd"
	"github.com/stemstr/paywall/internal/invoice/repo/pg"
	"github.com/stemstr/paywall/internal/invoice/repo/sqlite"
	"github.com/stemstr/paywall/internal/notifier"
	"github.com/stemstr/paywall/internal/session"
)

var (
	commit    string
	buildDate string
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "", "location of config file. If non is specified config will be loaded from the environment")
	flag.Parse()

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		err = cfg.Load(*configPath)
	} else {
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("build info", zap.String("commit", commit), zap.String("date", buildDate))

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	if cfg.CaveatKey == "" {
		log.Warn("CAVEAT_KEY not set; invoices will not be issued")
	}

	// Invoice records
	var repo invoice.Repo
	switch {
	case cfg.DBFile != "":
		r, err := sqlite.New(cfg.DBFile)
		if err != nil {
			log.Fatal("sqlite repo", zap.Error(err))
		}
		defer r.Close()
		repo = r
	case cfg.InvoiceDB != "":
		r, err := pg.New(cfg.InvoiceDB)
		if err != nil {
			log.Fatal("pg repo", zap.Error(err))
		}
		defer r.Close()
		repo = r
	}

	// Invoice backend
	ln, name, err := newProvider(cfg)
	switch {
	case errors.Is(err, invoice.ErrProviderUnavailable):
		log.Warn("no invoice provider configured; invoice routes will refuse requests")
	case err != nil:
		log.Fatal("invoice provider", zap.Error(err))
	default:
		log.Info("invoice provider", zap.String("provider", name))
	}

	invoices := invoice.New(ln, invoice.Options{
		Name:    name,
		Repo:    repo,
		Timeout: cfg.ProviderTimeout,
		Logger:  log.Named("invoice"),
	})

	// Protected content
	protected, err := newContent(ctx, cfg, log)
	if err != nil {
		log.Fatal("protected content", zap.Error(err))
	}

	// Notifications
	var paid paidNotifier
	if cfg.NotifierNsec != "" {
		n, err := notifier.New(cfg.NotifierNsec, cfg.NotifierRelays, log.Named("notifier"))
		if err != nil {
			log.Fatal("notifier", zap.Error(err))
		}
		log.Info("notifier enabled", zap.String("npub", n.Npub()))
		paid = n
	}

	var (
		builder  = credential.NewBuilder([]byte(cfg.SessionSecret), []byte(cfg.CaveatKey))
		verifier = credential.NewVerifier([]byte(cfg.SessionSecret))
		store    = session.NewCookieStore([]byte(cfg.SessionSecret), session.CookieOptions{
			Secure: cfg.CookieSecure,
			MaxAge: cfg.CookieMaxAge,
		})
	)

	g := gate.New(invoices, builder, verifier, store, gate.Options{
		Location:      cfg.Location,
		AccessSeconds: cfg.DefaultAccessSeconds,
		Hooks:         gateHooks(name, paid),
		Logger:        log.Named("gate"),
	})

	h := handlers{
		config:   cfg,
		invoices: invoices,
		builder:  builder,
		gate:     g,
		store:    store,
		content:  protected,
		log:      log.Named("api"),
	}

	port := fmt.Sprintf(":%d", cfg.Port)

	log.Info("api listening", zap.String("addr", port), zap.String("api_path", cfg.APIPath))

	if err := http.ListenAndServe(port, h.router()); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newProvider builds the single invoice backend the config selects.
func newProvider(cfg Config) (invoice.Provider, string, error) {
	backend, err := cfg.Invoice().Backend()
	if err != nil {
		return nil, "", err
	}

	switch backend {
	case invoice.BackendLND:
		p, err := lnd.New(cfg.LNDTLSCert, cfg.LNDMacaroon, cfg.LNDSocket)
		if err != nil {
			return nil, "", fmt.Errorf("lnd: %w", err)
		}
		return p, "lnd", nil
	case invoice.BackendHosted:
		switch cfg.HostedProvider {
		case invoice.HostedZBD:
			p, err := zbd.New(cfg.ProcessorAPIKey, cfg.ZBDCallbackURL, cfg.ProcessorNodePubkey)
			if err != nil {
				return nil, "", fmt.Errorf("zbd: %w", err)
			}
			return p, invoice.HostedZBD, nil
		case invoice.HostedNodeless:
			p, err := nodeless.New(cfg.ProcessorAPIKey, cfg.NodelessStoreID, cfg.NodelessTestnet, cfg.ProcessorNodePubkey)
			if err != nil {
				return nil, "", fmt.Errorf("nodeless: %w", err)
			}
			return p, invoice.HostedNodeless, nil
		case invoice.HostedMock:
			return mock.New(cfg.MockSettleAfter), invoice.HostedMock, nil
		}
	}
	return nil, "", fmt.Errorf("%w: unsupported backend %q", invoice.ErrProviderMisconfigured, backend)
}

// newContent picks what the gate protects: an upstream, a bucket or a
// local directory, in that order.
func newContent(ctx context.Context, cfg Config, log *zap.Logger) (http.Handler, error) {
	switch {
	case cfg.ProtectedUpstream != "":
		return content.NewProxy(cfg.ProtectedUpstream, session.RootCookie, session.DischargeCookie)
	case cfg.S3Bucket != "":
		s3, err := content.NewS3(ctx, content.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		return content.Handler(s3, log.Named("content")), nil
	default:
		fs, err := content.NewFile(cfg.ContentDir)
		if err != nil {
			return nil, err
		}
		return content.Handler(fs, log.Named("content")), nil
	}
}
