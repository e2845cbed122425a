// Package config loads the nethead configuration file.
//
// Config file locations (priority order):
//  1. $NETHEAD_CONFIG
//  2. ./nethead.yaml
//  3. $XDG_CONFIG_HOME/nethead/config.yaml
//  4. ~/.config/nethead/config.yaml
//  5. /etc/nethead/config.yaml
//
// A missing file is not an error: the defaults run an in-memory directory
// on the standard CoAP port and only log check results.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nethead/internal/relay/nsca"
)

// Defaults
const (
	DefaultListen        = ":5683"
	DefaultDatabasePath  = "./nethead.db"
	DefaultNSCATimeout   = 5 * time.Second
	DefaultRateBurst     = 10
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultConfigVersion = 1
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// WriteYAML encodes cfg to w
func WriteYAML(cfg *Config, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return nil
}

// Redacted returns a copy with passwords and keys masked
func (c *Config) Redacted() *Config {
	out := *c
	if c.CoAP.DTLS != nil {
		d := *c.CoAP.DTLS
		d.Key = redact(d.Key)
		out.CoAP.DTLS = &d
	}
	if c.Relay.NSCA != nil {
		n := *c.Relay.NSCA
		n.Password = redact(n.Password)
		out.Relay.NSCA = &n
	}
	if c.Relay.Redis != nil {
		r := *c.Relay.Redis
		if u, err := url.Parse(r.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "xxxxx")
				r.URL = u.String()
			}
		}
		out.Relay.Redis = &r
	}
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:   DefaultConfigVersion,
		CoAP:      CoAPConfig{Listen: DefaultListen},
		Directory: DirectoryConfig{Backend: BackendMemory, Path: DefaultDatabasePath},
		Relay:     RelayConfig{Log: true},
		Log:       LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = DefaultConfigVersion
	}
	if c.CoAP.Listen == "" {
		c.CoAP.Listen = DefaultListen
	}
	if c.Directory.Backend == "" {
		c.Directory.Backend = BackendMemory
	}
	if c.Directory.Path == "" {
		c.Directory.Path = DefaultDatabasePath
	}
	if n := c.Relay.NSCA; n != nil {
		if n.Encryption == "" {
			n.Encryption = nsca.EncryptNone.String()
		}
		if n.DialTimeout == 0 {
			n.DialTimeout = Duration(DefaultNSCATimeout)
		}
		if n.IOTimeout == 0 {
			n.IOTimeout = Duration(DefaultNSCATimeout)
		}
		if n.OutputLength == 0 {
			n.OutputLength = nsca.DefaultOutputLength
		}
	}
	if r := c.Relay.Rate; r != nil && r.Burst == 0 {
		r.Burst = DefaultRateBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate reports every problem in the config at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Directory.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Directory.Path == "" {
			errs = append(errs, errors.New("directory.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("directory.backend %q is not one of memory, sqlite", c.Directory.Backend))
	}

	if c.Inventory.Watch && c.Inventory.Path == "" {
		errs = append(errs, errors.New("inventory.watch requires inventory.path"))
	}

	if d := c.CoAP.DTLS; d != nil {
		if d.Listen == "" {
			errs = append(errs, errors.New("coap.dtls.listen is required"))
		}
		if d.Key == "" {
			errs = append(errs, errors.New("coap.dtls.key is required"))
		}
	}

	if n := c.Relay.NSCA; n != nil {
		if n.Address == "" {
			errs = append(errs, errors.New("relay.nsca.address is required"))
		}
		if _, err := nsca.ParseEncryption(n.Encryption); err != nil {
			errs = append(errs, fmt.Errorf("relay.nsca.encryption: %w", err))
		}
		if n.OutputLength < 0 {
			errs = append(errs, errors.New("relay.nsca.output_length must be positive"))
		}
	}

	if r := c.Relay.Redis; r != nil && r.URL == "" {
		errs = append(errs, errors.New("relay.redis.url is required"))
	}

	if r := c.Relay.Rate; r != nil {
		if r.PerSecond <= 0 {
			errs = append(errs, errors.New("relay.rate.per_second must be positive"))
		}
		if r.Burst < 1 {
			errs = append(errs, errors.New("relay.rate.burst must be at least 1"))
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// HasSinks reports whether any relay backend besides logging is configured
func (r RelayConfig) HasSinks() bool {
	return r.NSCA != nil || r.Redis != nil
}

// Summary returns a one-line, human-readable config summary
func (c *Config) Summary() string {
	var sinks []string
	if c.Relay.NSCA != nil {
		sinks = append(sinks, "nsca("+c.Relay.NSCA.Address+")")
	}
	if c.Relay.Redis != nil {
		sinks = append(sinks, "redis")
	}
	if c.Relay.Log || len(sinks) == 0 {
		sinks = append(sinks, "log")
	}

	listen := c.CoAP.Listen
	if c.CoAP.DTLS != nil {
		listen += ", dtls " + c.CoAP.DTLS.Listen
	}

	return fmt.Sprintf("CoAP: %s, Directory: %s, Relay: %s", listen, c.Directory.Backend, strings.Join(sinks, "+"))
}
