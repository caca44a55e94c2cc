package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/stemstr/paywall/internal/invoice"
)

const (
	defaultPort            = 8080
	defaultAccessSeconds   = 60
	defaultProviderTimeout = 10 * time.Second
	defaultMockSettleAfter = 10 * time.Second
	defaultCookieMaxAge    = 24 * time.Hour
	defaultContentDir      = "./protected"
	minSessionSecretLen    = 32
)

type Config struct {
	// API settings
	Port        int      `yaml:"port" envconfig:"PORT"`
	APIPath     string   `yaml:"api_path" envconfig:"API_PATH"`
	Location    string   `yaml:"location" envconfig:"LOCATION"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy     bool `yaml:"trust_proxy" envconfig:"TRUST_PROXY"`
	LogDevelopment bool `yaml:"log_development" envconfig:"LOG_DEVELOPMENT"`

	// Credentials
	SessionSecret        string        `yaml:"session_secret" envconfig:"SESSION_SECRET"`
	CaveatKey            string        `yaml:"caveat_key" envconfig:"CAVEAT_KEY"`
	CookieSecure         bool          `yaml:"cookie_secure" envconfig:"COOKIE_SECURE"`
	CookieMaxAge         time.Duration `yaml:"cookie_max_age" envconfig:"COOKIE_MAX_AGE"`
	DefaultAccessSeconds int64         `yaml:"default_access_seconds" envconfig:"DEFAULT_ACCESS_SECONDS"`

	// Invoice backends
	ProviderTimeout     time.Duration `yaml:"provider_timeout" envconfig:"PROVIDER_TIMEOUT"`
	HostedProvider      string        `yaml:"hosted_provider" envconfig:"HOSTED_PROVIDER"`
	ProcessorAPIKey     string        `yaml:"processor_apikey" envconfig:"PROCESSOR_APIKEY"`
	ProcessorNodePubkey string        `yaml:"processor_node_pubkey" envconfig:"PROCESSOR_NODE_PUBKEY"`
	NodelessStoreID     string        `yaml:"nodeless_storeid" envconfig:"NODELESS_STOREID"`
	NodelessTestnet     bool          `yaml:"nodeless_testnet" envconfig:"NODELESS_TESTNET"`
	ZBDCallbackURL      string        `yaml:"zbd_callback_url" envconfig:"ZBD_CALLBACK_URL"`
	MockSettleAfter     time.Duration `yaml:"mock_settle_after" envconfig:"MOCK_SETTLE_AFTER"`
	LNDTLSCert          string        `yaml:"lnd_tls_cert" envconfig:"LND_TLS_CERT"`
	LNDMacaroon         string        `yaml:"lnd_macaroon" envconfig:"LND_MACAROON"`
	LNDSocket           string        `yaml:"lnd_socket" envconfig:"LND_SOCKET"`

	// Invoice records
	DBFile    string `yaml:"db_file" envconfig:"DB_FILE"`
	InvoiceDB string `yaml:"invoice_db" envconfig:"INVOICE_DB"`

	// Protected content
	ContentDir        string `yaml:"content_dir" envconfig:"CONTENT_DIR"`
	S3Bucket          string `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Region          string `yaml:"s3_region" envconfig:"S3_REGION"`
	S3Endpoint        string `yaml:"s3_endpoint" envconfig:"S3_ENDPOINT"`
	S3Prefix          string `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
	ProtectedUpstream string `yaml:"protected_upstream" envconfig:"PROTECTED_UPSTREAM"`

	// Notifications
	NotifierNsec   string   `yaml:"notifier_nsec" envconfig:"NOTIFIER_NSEC"`
	NotifierRelays []string `yaml:"notifier_relays" envconfig:"NOTIFIER_RELAYS"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

// Load Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.DefaultAccessSeconds == 0 {
		c.DefaultAccessSeconds = defaultAccessSeconds
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = defaultProviderTimeout
	}
	if c.MockSettleAfter == 0 {
		c.MockSettleAfter = defaultMockSettleAfter
	}
	if c.CookieMaxAge == 0 {
		c.CookieMaxAge = defaultCookieMaxAge
	}
	if c.ContentDir == "" {
		c.ContentDir = defaultContentDir
	}
	if c.HostedProvider == "" && c.ProcessorAPIKey != "" {
		c.HostedProvider = invoice.HostedZBD
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate reports configuration that must stop the server from starting.
// A missing caveat key is allowed; invoice routes refuse to run without it.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.CaveatKey != "" && c.CaveatKey == c.SessionSecret {
		errs = append(errs, errors.New("CAVEAT_KEY must differ from SESSION_SECRET"))
	}
	if c.DBFile != "" && c.InvoiceDB != "" {
		errs = append(errs, errors.New("DB_FILE and INVOICE_DB are mutually exclusive"))
	}
	if c.DefaultAccessSeconds < 0 {
		errs = append(errs, errors.New("DEFAULT_ACCESS_SECONDS must be positive"))
	}
	if _, err := c.Invoice().Backend(); err != nil && !errors.Is(err, invoice.ErrProviderUnavailable) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Invoice() invoice.Config {
	return invoice.Config{
		HostedProvider:  c.HostedProvider,
		APIKey:          c.ProcessorAPIKey,
		NodelessStoreID: c.NodelessStoreID,
		HasRepo:         c.DBFile != "" || c.InvoiceDB != "",
		LNDTLSCert:      c.LNDTLSCert,
		LNDMacaroon:     c.LNDMacaroon,
		LNDSocket:       c.LNDSocket,
	}
}
