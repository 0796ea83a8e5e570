package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TXGUARD_DSN.
const EnvPrefix = "TXGUARD_"

// Load builds a validated Config. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	// First pass only records which flags were given.
	scratch := Default()
	var path string
	fs := newFlagSet(&scratch, &path)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := loadYAML(&cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}

	final := newFlagSet(&cfg, new(string))
	for name, v := range explicit {
		if err := final.Set(name, v); err != nil {
			return nil, fmt.Errorf("config: flag -%s: %w", name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newFlagSet(c *Config, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet("txguard", flag.ContinueOnError)
	fs.StringVar(path, "config", "", "path to YAML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 signing key for access tokens")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token TTL")
	fs.StringVar(&c.EncryptionKey, "encryption-key", c.EncryptionKey, "AES-256 key (64 hex chars)")
	fs.StringVar(&c.HMACKey, "hmac-key", c.HMACKey, "envelope signing key (defaults to encryption key)")
	fs.DurationVar(&c.RequestWindow, "request-window", c.RequestWindow, "accepted request timestamp skew")
	fs.DurationVar(&c.ResponseWindow, "response-window", c.ResponseWindow, "accepted envelope age")
	fs.DurationVar(&c.NonceTTL, "nonce-ttl", c.NonceTTL, "nonce retention")
	fs.DurationVar(&c.NonceSweepInterval, "nonce-sweep-interval", c.NonceSweepInterval, "nonce purge interval")
	fs.BoolVar(&c.Production, "production", c.Production, "enforce secure channel")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "trust X-Forwarded-Proto from the fronting proxy")
	fs.StringVar(&c.TLSCert, "tls-cert", c.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&c.TLSKey, "tls-key", c.TLSKey, "TLS private key (PEM)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.CorruptedCardPolicy, "corrupted-card-policy", c.CorruptedCardPolicy, "delete or deactivate")
	fs.DurationVar(&c.LimiterWindow, "limiter-window", c.LimiterWindow, "failure counting window")
	fs.IntVar(&c.LoginMaxFailures, "login-max-failures", c.LoginMaxFailures, "failed logins before lockout")
	fs.DurationVar(&c.LoginBlock, "login-block", c.LoginBlock, "login lockout duration")
	fs.IntVar(&c.ReauthMaxFailures, "reauth-max-failures", c.ReauthMaxFailures, "failed re-auths before lockout")
	fs.DurationVar(&c.ReauthBlock, "reauth-block", c.ReauthBlock, "re-auth lockout duration")
	return fs
}

func loadYAML(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays TXGUARD_<FLAG_NAME> variables, e.g. TXGUARD_JWT_KEY.
func applyEnv(c *Config, getenv func(string) string) error {
	fs := newFlagSet(c, new(string))
	var errList []error
	fs.VisitAll(func(f *flag.Flag) {
		if f.Name == "config" {
			return
		}
		key := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		v := getenv(key)
		if v == "" {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errList = append(errList, fmt.Errorf("config: %s: %w", key, err))
		}
	})
	return errors.Join(errList...)
}

// String renders c for logs with secrets redacted.
func (c Config) String() string {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	return strings.Join([]string{
		"addr=" + c.Addr,
		"dsn=" + redact(c.DSN),
		"production=" + strconv.FormatBool(c.Production),
		"trust_proxy=" + strconv.FormatBool(c.TrustProxy),
		"jwt_key=" + redact(c.JWTKey),
		"encryption_key=" + redact(c.EncryptionKey),
		"hmac_key=" + redact(c.HMACKey),
		"request_window=" + c.RequestWindow.String(),
		"response_window=" + c.ResponseWindow.String(),
		"nonce_ttl=" + c.NonceTTL.String(),
		"corrupted_card_policy=" + c.CorruptedCardPolicy,
		"log_level=" + c.LogLevel,
	}, " ")
}
