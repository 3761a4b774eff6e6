package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the compiler configuration, read from miniml.yaml or miniml.toml.
type Config struct {
	// Module names modules that do not carry their own name.
	Module string `yaml:"module" toml:"module"`

	Log   LogConfig   `yaml:"log" toml:"log"`
	Host  HostConfig  `yaml:"host" toml:"host"`
	Store StoreConfig `yaml:"store" toml:"store"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Color is auto, always or never.
	Color string `yaml:"color" toml:"color"`
}

type HostConfig struct {
	// PackagesDir is the directory go/packages loads host packages from.
	PackagesDir string `yaml:"packages_dir" toml:"packages_dir"`

	// Reflective enables resolving host members missing from the static
	// table by loading their Go package.
	Reflective bool `yaml:"reflective" toml:"reflective"`

	// Bindings declare extra host member signatures.
	Bindings []Binding `yaml:"bindings" toml:"bindings"`
}

// Binding declares the miniml signature of one host member.
//
//   - owner: strings
//     member: Title
//     signature: string -> string
type Binding struct {
	Owner     string `yaml:"owner" toml:"owner"`
	Member    string `yaml:"member" toml:"member"`
	Signature string `yaml:"signature" toml:"signature"`
	// Kind is func (default), method, field or new.
	Kind string `yaml:"kind,omitempty" toml:"kind"`
}

type StoreConfig struct {
	// DSN is the SQLite data source of the module store. Empty disables it.
	DSN string `yaml:"dsn" toml:"dsn"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads a YAML or TOML file, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data, path)
}

// ParseConfig decodes data; path selects the format and prefixes errors.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for a config file starting from dir and walking up to
// the filesystem root. It returns "" if none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolving directory")
	}
	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("%s: log.level: unknown level %q", path, c.Log.Level)
	}
	switch c.Log.Color {
	case "", "auto", "always", "never":
	default:
		return errors.Errorf("%s: log.color: must be auto, always or never, got %q", path, c.Log.Color)
	}
	for i, b := range c.Host.Bindings {
		if b.Owner == "" || b.Member == "" {
			return errors.Errorf("%s: host.bindings[%d]: owner and member are required", path, i)
		}
		if b.Signature == "" && b.Kind != "new" {
			return errors.Errorf("%s: host.bindings[%d] (%s.%s): signature is required", path, i, b.Owner, b.Member)
		}
		switch b.Kind {
		case "", "func", "method", "field", "new":
		default:
			return errors.Errorf("%s: host.bindings[%d] (%s.%s): unknown kind %q", path, i, b.Owner, b.Member, b.Kind)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Module == "" {
		c.Module = DefaultModuleName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Color == "" {
		c.Log.Color = "auto"
	}
	if c.Host.PackagesDir == "" {
		c.Host.PackagesDir = "."
	}
	for i := range c.Host.Bindings {
		if c.Host.Bindings[i].Kind == "" {
			c.Host.Bindings[i].Kind = "func"
		}
	}
}
