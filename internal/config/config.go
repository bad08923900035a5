// Package config loads and validates the ldapauth configuration from a YAML
// file, with environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/querypath/ldapauth/internal/directory"
)

// Duration accepts YAML values such as "30s" or "2m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = v
	return nil
}

// Directory configures the directory endpoint and the service account used
// for authorization searches.
type Directory struct {
	// URL of the directory server: ldap://host[:port] or ldaps://host[:port].
	URL string `yaml:"url"`
	// ReferralPolicy is "ignore" or "follow".
	ReferralPolicy string `yaml:"referral_policy" default:"ignore"`
	// TrustCertificate is an optional PEM file; when set, TLS trusts exactly
	// the certificates it contains.
	TrustCertificate string `yaml:"trust_certificate"`
	// Timeout for every directory connection.
	Timeout Duration `yaml:"timeout"`

	// BindDN and BindPassword name the service account used for membership
	// checks and DN lookups. The password is usually supplied through the
	// LDAPAUTH_BIND_PASSWORD environment variable instead of the file.
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	// SearchBase is the default subtree root for searches.
	SearchBase string `yaml:"search_base"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `yaml:"level" default:"info"`
}

// Config is the root of the configuration file.
type Config struct {
	Directory Directory `yaml:"directory"`
	Logging   Logging   `yaml:"logging"`
}

// Load reads the configuration file, applies defaults and environment
// overrides, and validates the result. Validation failures are fatal startup
// errors; nothing here is retried.
func Load(path string) (*Config, error) {
	// A .env file next to the process is a convenience for development;
	// its absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets the environment override file-based settings. Secrets in
// particular should come from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("LDAPAUTH_URL"); v != "" {
		c.Directory.URL = v
	}
	if v := os.Getenv("LDAPAUTH_REFERRAL_POLICY"); v != "" {
		c.Directory.ReferralPolicy = v
	}
	if v := os.Getenv("LDAPAUTH_TRUST_CERTIFICATE"); v != "" {
		c.Directory.TrustCertificate = v
	}
	if v := os.Getenv("LDAPAUTH_BIND_DN"); v != "" {
		c.Directory.BindDN = v
	}
	if v := os.Getenv("LDAPAUTH_BIND_PASSWORD"); v != "" {
		c.Directory.BindPassword = v
	}
	if v := os.Getenv("LDAPAUTH_SEARCH_BASE"); v != "" {
		c.Directory.SearchBase = v
	}
}

// Validate checks everything that can be checked without contacting the
// directory.
func (c *Config) Validate() error {
	if c.Directory.URL == "" {
		return fmt.Errorf("directory.url is required")
	}
	if _, err := directory.ParseReferralPolicy(c.Directory.ReferralPolicy); err != nil {
		return fmt.Errorf("directory.referral_policy: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// EndpointConfig translates the file settings into the directory client's
// construction parameters. The trust certificate itself is loaded (and
// further validated) by directory.NewClient.
func (c *Config) EndpointConfig(logger *zap.Logger) (directory.EndpointConfig, error) {
	policy, err := directory.ParseReferralPolicy(c.Directory.ReferralPolicy)
	if err != nil {
		return directory.EndpointConfig{}, err
	}
	return directory.EndpointConfig{
		URL:              c.Directory.URL,
		ReferralPolicy:   policy,
		TrustCertificate: c.Directory.TrustCertificate,
		Timeout:          c.Directory.Timeout.Duration,
		Logger:           logger,
	}, nil
}

// BuildLogger constructs the zap logger described by the logging section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
