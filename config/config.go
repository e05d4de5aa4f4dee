// Package config resolves the server settings from, in increasing order of
// precedence: built-in defaults, an optional YAML or TOML file, a .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transports accepted by Validate.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the docmcp settings.
type Config struct {
	TemplateDir   string `yaml:"template_dir" toml:"template_dir"`
	OutputDir     string `yaml:"output_dir" toml:"output_dir"`
	SchemaFile    string `yaml:"schema_file" toml:"schema_file"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" toml:"max_file_size_mb"`
	LogLevel      string `yaml:"log_level" toml:"log_level"`
	Transport     string `yaml:"transport" toml:"transport"`
	HTTPAddr      string `yaml:"http_addr" toml:"http_addr"`

	// AuditDB enables the SQLite audit trail when set.
	AuditDB string `yaml:"audit_db" toml:"audit_db"`

	// OperationTimeout bounds a single operation; zero means no bound.
	OperationTimeout Duration `yaml:"operation_timeout" toml:"operation_timeout"`
}

// Duration accepts "30s"-style strings in YAML and TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (c *Config) defaults() {
	if c.TemplateDir == "" {
		c.TemplateDir = "templates"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.SchemaFile == "" {
		c.SchemaFile = "templates_metadata.json"
	}
	if c.MaxFileSizeMB == 0 {
		c.MaxFileSizeMB = 50
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8086"
	}
}

// MaxFileSize is the size ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("max_file_size_mb must be positive, got %d", c.MaxFileSizeMB))
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want stdio or http)", c.Transport))
	}
	if c.OperationTimeout.Duration < 0 {
		errs = append(errs, errors.New("operation_timeout must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load starts from the defaults and layers the optional file at path, then
// the dotenv file (skipped when absent), then the environment, and validates
// the result. A value set explicitly, zero included, is never replaced by a
// default.
func Load(path, dotenv string) (*Config, error) {
	return load(path, dotenv, os.LookupEnv)
}

func load(path, dotenv string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.defaults()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	fileEnv := map[string]string{}
	if dotenv != "" {
		m, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			fileEnv = m
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config: read %s: %w", dotenv, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config: %s: unsupported config format (want .yaml, .yml or .toml)", path)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"TEMPLATE_DIR", &c.TemplateDir},
		{"OUTPUT_DIR", &c.OutputDir},
		{"SCHEMA_FILE", &c.SchemaFile},
		{"LOG_LEVEL", &c.LogLevel},
		{"MCP_TRANSPORT", &c.Transport},
		{"HTTP_ADDR", &c.HTTPAddr},
		{"AUDIT_DB", &c.AuditDB},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}
	if v, ok := lookup("MAX_FILE_SIZE_MB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MAX_FILE_SIZE_MB: %w", err)
		}
		c.MaxFileSizeMB = n
	}
	if v, ok := lookup("OPERATION_TIMEOUT"); ok && v != "" {
		if err := c.OperationTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: OPERATION_TIMEOUT: %w", err)
		}
	}
	return nil
}
