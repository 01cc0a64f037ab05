// Package config loads the client configuration: upsd targets, polling,
// snapshot storage and the live feed.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gonut/nut/nutprotocol"
)

// Config is the top-level configuration file.
type Config struct {
	Targets []Target    `yaml:"targets"`
	Poll    PollConfig  `yaml:"poll"`
	Store   StoreConfig `yaml:"store"`
	Feed    FeedConfig  `yaml:"feed"`

	// Logging is the path of the logging configuration file.
	Logging string `yaml:"logging"`
}

// Target is one upsd server.
type Target struct {
	// Name identifies the target in logs, storage and the feed.
	Name string `yaml:"name"`

	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	Encryption string        `yaml:"encryption"` // off, try or force

	// UPS limits polling to these devices. Empty means every device LIST UPS returns.
	UPS []string `yaml:"ups"`

	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig controls peer verification after STARTTLS.
type TLSConfig struct {
	// VerifyPeer checks the server certificate against CAFile or the system pool.
	VerifyPeer bool   `yaml:"verify_peer"`
	ServerName string `yaml:"server_name"`
	CAFile     string `yaml:"ca_file"`
}

// PollConfig holds poller settings.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Variables limits stored readings to these names. Empty keeps all.
	Variables []string `yaml:"variables"`

	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// StoreConfig selects where snapshots are persisted.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite or postgres
	Path    string `yaml:"path"`   // sqlite database file
	DSN     string `yaml:"dsn"`    // postgres connection string

	// Retention is how long snapshots are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// FeedConfig holds WebSocket feed settings.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns a configuration for a single upsd on localhost.
func DefaultConfig() *Config {
	return &Config{
		Targets: []Target{DefaultTarget()},
		Poll: PollConfig{
			Interval:   30 * time.Second,
			MaxBackoff: 5 * time.Minute,
		},
		Store: StoreConfig{
			Enabled: false,
			Driver:  "sqlite",
			Path:    "data/nut.db",
		},
		Feed: FeedConfig{
			Enabled:        false,
			Listen:         "127.0.0.1:8080",
			AllowedOrigins: []string{},
		},
	}
}

// DefaultTarget returns the localhost target.
func DefaultTarget() Target {
	return Target{
		Name:       "localhost",
		Host:       "localhost",
		Port:       nutprotocol.DefaultPort,
		Timeout:    nutprotocol.DefaultTimeout,
		Encryption: "try",
	}
}

// LoadConfig loads the configuration from a YAML file and applies
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			config.Targets = nil
			if err := yaml.Unmarshal(data, config); err != nil {
				return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
			}
			if len(config.Targets) == 0 {
				config.Targets = []Target{DefaultTarget()}
			}
		case !os.IsNotExist(err):
			return config, err
		}
	}

	for i := range config.Targets {
		config.Targets[i].fillDefaults()
	}
	if err := config.applyEnv(); err != nil {
		return config, err
	}
	return config, config.Validate()
}

func (t *Target) fillDefaults() {
	if t.Port == 0 {
		t.Port = nutprotocol.DefaultPort
	}
	if t.Timeout <= 0 {
		t.Timeout = nutprotocol.DefaultTimeout
	}
	if t.Encryption == "" {
		t.Encryption = "try"
	}
	if t.Name == "" {
		t.Name = t.Host
	}
}

// applyEnv overrides the first target with NUT_HOST, NUT_PORT, NUT_TIMEOUT
// and NUT_ENCRYPTION.
func (c *Config) applyEnv() error {
	t := &c.Targets[0]

	if host := os.Getenv("NUT_HOST"); host != "" {
		if t.Name == t.Host {
			t.Name = host
		}
		t.Host = host
	}
	if port := os.Getenv("NUT_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("NUT_PORT: %w", err)
		}
		t.Port = n
	}
	if timeout := os.Getenv("NUT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("NUT_TIMEOUT: %w", err)
		}
		t.Timeout = d
	}
	if enc := os.Getenv("NUT_ENCRYPTION"); enc != "" {
		t.Encryption = enc
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Host == "" {
			return fmt.Errorf("target %q: host is required", t.Name)
		}
		if t.Port <= 0 || t.Port > 65535 {
			return fmt.Errorf("target %q: invalid port %d", t.Name, t.Port)
		}
		if _, err := nutprotocol.ParseEncryptionMode(t.Encryption); err != nil {
			return fmt.Errorf("target %q: %w", t.Name, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Retention < 0 {
		return fmt.Errorf("store retention must not be negative")
	}
	if c.Store.Enabled && c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("postgres store requires a dsn")
	}
	return nil
}

// Target returns the target with the given name.
func (c *Config) Target(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Options converts the target into connection options.
func (t Target) Options() (nutprotocol.Options, error) {
	mode, err := nutprotocol.ParseEncryptionMode(t.Encryption)
	if err != nil {
		return nutprotocol.Options{}, err
	}
	opts := nutprotocol.Options{
		Port:       t.Port,
		Timeout:    t.Timeout,
		Encryption: mode,
	}

	if t.TLS.VerifyPeer {
		cfg := &tls.Config{ServerName: t.TLS.ServerName}
		if t.TLS.CAFile != "" {
			pem, err := os.ReadFile(t.TLS.CAFile)
			if err != nil {
				return nutprotocol.Options{}, fmt.Errorf("read CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nutprotocol.Options{}, fmt.Errorf("no certificates in %s", t.TLS.CAFile)
			}
			cfg.RootCAs = pool
		}
		opts.TLSConfig = cfg
	}
	return opts, nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
func (c *FeedConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
