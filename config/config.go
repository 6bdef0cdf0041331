// Package config ties together the configuration of every component.
// Values come from the defaults, then clob.toml in the root directory,
// then command-line flags.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"clob/api/grpcserver"
	"clob/config/encoding"
	"clob/infra/logging"
	"clob/infra/metrics"
	"clob/infra/store"
	"clob/infra/wal/entry"
	"clob/infra/wal/exit"
	"clob/jobs/cranker"
	"clob/jobs/reporter"
	"clob/service"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const configFileName = "clob.toml"

type Config struct {
	Logging  logging.Config    `group:"Logging" namespace:"logging"`
	LogLevel encoding.LogLevel `long:"log-level" description:"debug, info, warn or error"`

	Store   store.Config   `group:"Store" namespace:"store"`
	Journal entry.Config   `group:"Journal" namespace:"journal"`
	Outbox  exit.Config    `group:"Outbox" namespace:"outbox"`
	Service service.Config `group:"Service" namespace:"service"`

	Reporter reporter.Config   `group:"Reporter" namespace:"reporter"`
	Cranker  cranker.Config    `group:"Cranker" namespace:"cranker"`
	API      grpcserver.Config `group:"API" namespace:"api"`
	Metrics  metrics.Config    `group:"Metrics" namespace:"metrics"`
}

// NewDefaultConfig returns the defaults of every component, with data
// directories under root.
func NewDefaultConfig(root string) Config {
	return Config{
		Logging:  logging.NewDefaultConfig(),
		LogLevel: encoding.LogLevel{Level: logging.InfoLevel},
		Store:    store.NewDefaultConfig(root),
		Journal:  entry.NewDefaultConfig(root),
		Outbox:   exit.NewDefaultConfig(root),
		Service:  service.NewDefaultConfig(root),
		Reporter: reporter.NewDefaultConfig(),
		Cranker:  cranker.NewDefaultConfig(),
		API:      grpcserver.NewDefaultConfig(),
		Metrics:  metrics.NewDefaultConfig(),
	}
}

// Path returns the location of the configuration file under root.
func Path(root string) string {
	return filepath.Join(root, configFileName)
}

// Read decodes the configuration file under root over the defaults.
func Read(root string) (*Config, error) {
	cfg := NewDefaultConfig(root)
	if err := decodeFile(Path(root), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := toml.Decode(string(buf), cfg); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

// Write stores cfg as the configuration file under root. An existing
// file is only replaced when overwrite is set.
func Write(root string, cfg Config, overwrite bool) (string, error) {
	path := Path(root)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return "", errors.Errorf("configuration file %s already exists", path)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", errors.Wrap(err, "encoding configuration")
	}
	return path, os.WriteFile(path, buf.Bytes(), 0o644)
}
