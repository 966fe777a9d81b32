package fitting

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes how to reach the durable edge store.
type Config struct {
	// Dialect is one of the dialect package constants: "postgres",
	// "mysql" or "sqlite".
	Dialect string `yaml:"dialect"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`

	// Namespace overrides DefaultNamespace for operations that are not
	// given an explicit one. Zero means DefaultNamespace.
	Namespace Namespace `yaml:"namespace"`
}

// DefaultOr returns the configured default namespace, falling back to
// DefaultNamespace when unset.
func (c Config) DefaultOr() Namespace {
	if c.Namespace != 0 {
		return c.Namespace
	}
	return DefaultNamespace
}

// Validate checks the configuration for missing or malformed fields.
func (c Config) Validate() error {
	switch c.Dialect {
	case "postgres", "mysql", "sqlite":
	case "":
		return &ValidationError{Field: "dialect", Err: errors.New("missing")}
	default:
		return &ValidationError{Field: "dialect", Err: fmt.Errorf("unsupported dialect %q", c.Dialect)}
	}
	if c.DSN == "" {
		return &ValidationError{Field: "dsn", Err: errors.New("missing")}
	}
	if c.Namespace < 0 {
		return &ValidationError{Field: "namespace", Err: fmt.Errorf("must be positive, got %d", c.Namespace)}
	}
	return nil
}

// ReadConfig decodes a Config from YAML.
func ReadConfig(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("fitting: decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and decodes a Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("fitting: open config: %w", err)
	}
	defer f.Close()
	return ReadConfig(f)
}
