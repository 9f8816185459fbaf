// Package config loads jobsdashboard settings from a YAML file and applies
// JOBSDASHBOARD_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOBSDASHBOARD_"

// Config is the root configuration document.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Client  Client  `yaml:"client"`
	Log     Log     `yaml:"log"`
}

// Server configures the REST backend.
type Server struct {
	Addr        string        `yaml:"addr"`
	Latency     time.Duration `yaml:"latency"`
	FailureRate float64       `yaml:"failure_rate"`
	FailureCode int           `yaml:"failure_code"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects the blob backend used for cache archives.
type Blob struct {
	Driver    string `yaml:"driver"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Client configures the dashboard synchronization layer.
type Client struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Rollback string        `yaml:"rollback"`
}

// Log configures structured logging.
type Log struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080", FailureCode: 500},
		Storage: Storage{Driver: "sqlite", SQLitePath: "jobsdashboard.db"},
		Blob:    Blob{Driver: "fs", Root: "blobdata", Region: "us-east-1"},
		Client:  Client{BaseURL: "http://localhost:8080", Timeout: 10 * time.Second, Rollback: "snapshot"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values no component can honour.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want memory, sqlite or postgres", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "memory", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("blob.driver %q: want memory, fs or s3", c.Blob.Driver))
	}
	if c.Blob.Driver == "s3" && c.Blob.Bucket == "" {
		errs = append(errs, errors.New("blob.bucket is required for the s3 driver"))
	}
	switch c.Client.Rollback {
	case "snapshot", "inverse":
	default:
		errs = append(errs, fmt.Errorf("client.rollback %q: want snapshot or inverse", c.Client.Rollback))
	}
	if c.Server.FailureRate < 0 || c.Server.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("server.failure_rate %v out of range [0,1]", c.Server.FailureRate))
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_ADDR", &cfg.Server.Addr)
	duration("SERVER_LATENCY", &cfg.Server.Latency)
	if v, ok := lookup(EnvPrefix + "SERVER_FAILURES"); ok && v != "" {
		rate, code, err := ParseFailureSpec(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSERVER_FAILURES: %w", EnvPrefix, err))
		} else {
			cfg.Server.FailureRate, cfg.Server.FailureCode = rate, code
		}
	}
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("BLOB_DRIVER", &cfg.Blob.Driver)
	str("BLOB_ROOT", &cfg.Blob.Root)
	str("BLOB_S3_BUCKET", &cfg.Blob.Bucket)
	str("BLOB_S3_REGION", &cfg.Blob.Region)
	str("BLOB_S3_ENDPOINT", &cfg.Blob.Endpoint)
	boolean("BLOB_S3_PATH_STYLE", &cfg.Blob.PathStyle)
	str("BLOB_S3_ACCESS_KEY", &cfg.Blob.AccessKey)
	str("BLOB_S3_SECRET_KEY", &cfg.Blob.SecretKey)
	str("CLIENT_BASE_URL", &cfg.Client.BaseURL)
	duration("CLIENT_TIMEOUT", &cfg.Client.Timeout)
	str("CLIENT_ROLLBACK", &cfg.Client.Rollback)
	boolean("LOG_VERBOSE", &cfg.Log.Verbose)
	return errors.Join(errs...)
}

// ParseFailureSpec parses "rate=<float>,code=<status>". The code defaults to 500.
func ParseFailureSpec(spec string) (float64, int, error) {
	rate, code := 0.0, 500
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return 0, 0, fmt.Errorf("malformed failure spec segment %q", part)
		}
		switch strings.TrimSpace(key) {
		case "rate":
			r, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || r < 0 || r > 1 {
				return 0, 0, fmt.Errorf("failure rate %q must be within [0,1]", value)
			}
			rate = r
		case "code":
			c, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || c < 400 || c > 599 {
				return 0, 0, fmt.Errorf("failure code %q must be an HTTP error status", value)
			}
			code = c
		default:
			return 0, 0, fmt.Errorf("unknown failure spec key %q", key)
		}
	}
	return rate, code, nil
}
