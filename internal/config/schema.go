package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	CoAP      CoAPConfig      `yaml:"coap"`
	Directory DirectoryConfig `yaml:"directory"`
	Inventory InventoryConfig `yaml:"inventory"`
	Relay     RelayConfig     `yaml:"relay"`
	Log       LogConfig       `yaml:"log"`
}

// CoAPConfig holds listener settings
type CoAPConfig struct {
	Listen string      `yaml:"listen"`
	DTLS   *DTLSConfig `yaml:"dtls,omitempty"` // nil = plain UDP only
}

// DTLSConfig enables CoAP over DTLS with a pre-shared key
type DTLSConfig struct {
	Listen   string `yaml:"listen"`
	Identity string `yaml:"identity"`
	Key      string `yaml:"key"`
}

// Directory backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DirectoryConfig selects where hosts and services are stored
type DirectoryConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	Path    string `yaml:"path"`    // sqlite database file
}

// InventoryConfig names a mote inventory imported at startup
type InventoryConfig struct {
	Path  string `yaml:"path,omitempty"`
	Watch bool   `yaml:"watch,omitempty"` // re-import when the file changes
}

// RelayConfig lists the sinks check results go to. With no sink configured,
// results are only logged.
type RelayConfig struct {
	NSCA  *NSCAConfig  `yaml:"nsca,omitempty"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
	Rate  *RateConfig  `yaml:"rate,omitempty"`
	Log   bool         `yaml:"log"` // also log every result
}

// NSCAConfig holds the NSCA daemon settings
type NSCAConfig struct {
	Address      string   `yaml:"address"`
	Password     string   `yaml:"password,omitempty"`
	Encryption   string   `yaml:"encryption"` // none, xor, blowfish
	DialTimeout  Duration `yaml:"dial_timeout,omitempty"`
	IOTimeout    Duration `yaml:"io_timeout,omitempty"`
	OutputLength int      `yaml:"output_length,omitempty"` // 512 for NSCA 2.7, 4096 for 2.9
}

// RedisConfig holds the Redis stream sink settings
type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream,omitempty"`
	MaxLen int64  `yaml:"max_len,omitempty"`
}

// RateConfig throttles relay submissions
type RateConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
