// Package config provides configuration parsing and management for loadcast.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains the runtime
// configuration of the command:
//   - Run mode (naive, regressors, weather, serve)
//   - Data source (adapter kind and ADAPTER_* settings)
//   - Snapshot storage (memory or redis)
//   - Output directory, loop interval and worker count
//   - TLS of the HTTP API server and of upstream HTTPS requests
//   - Logging configuration (level, format)
//
// Stage parameters (date ranges, cutoff windows, renamer, weather stations)
// come from an optional YAML file given by -config-file, see LoadStages.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HatiCode/loadcast/pkg/tls"
)

// Run modes.
const (
	ModeNaive      = "naive"
	ModeRegressors = "regressors"
	ModeWeather    = "weather"
	ModeServe      = "serve"
)

// DefaultCountries are the OPSD countries of the load study.
const DefaultCountries = "BE,CH,CZ,DE,FR,ES,HR,IT,NL,PL,AT,DK,SK,GB_GBN,RO"

// Config holds all loadcast configuration.
type Config struct {
	Mode      string
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	ConfigFile    string
	Adapter       string
	AdapterConfig map[string]string
	Countries     string
	OutputDir     string
	Interval      time.Duration
	HTTPTimeout   time.Duration
	Workers       int

	TLS         tls.Config
	UpstreamTLS tls.Config
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", getEnv("MODE", ModeNaive), "Run mode: naive, regressors, weather or serve")
	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8081"), "HTTP listen address (serve mode)")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Snapshot storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", getEnvDuration("SNAPSHOT_TTL", 24*time.Hour), "Snapshot TTL")

	flag.StringVar(&cfg.ConfigFile, "config-file", getEnv("CONFIG_FILE", ""), "YAML stage parameter file")
	flag.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", "opsd"), "Load source adapter: opsd, file or http")
	flag.StringVar(&cfg.Countries, "countries", getEnv("COUNTRIES", DefaultCountries), "Comma-separated country codes")
	flag.StringVar(&cfg.OutputDir, "output-dir", getEnv("OUTPUT_DIR", "out"), "Directory for forecast, score and regressor files")
	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", time.Hour), "Benchmark interval (serve mode)")
	flag.DurationVar(&cfg.HTTPTimeout, "http-timeout", getEnvDuration("HTTP_TIMEOUT", 2*time.Minute), "Timeout of adapter HTTP requests")
	flag.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 0), "Parallel weather downloads (0 = number of CPUs)")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Serve the HTTP API over TLS")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "CA file for client certificate verification (enables mTLS)")

	flag.BoolVar(&cfg.UpstreamTLS.Enabled, "upstream-tls-enabled", getEnvBool("UPSTREAM_TLS_ENABLED", false), "Use custom TLS settings for data source requests")
	flag.StringVar(&cfg.UpstreamTLS.CertFile, "upstream-tls-cert-file", getEnv("UPSTREAM_TLS_CERT_FILE", ""), "Client certificate presented to data sources")
	flag.StringVar(&cfg.UpstreamTLS.KeyFile, "upstream-tls-key-file", getEnv("UPSTREAM_TLS_KEY_FILE", ""), "Client private key for data sources")
	flag.StringVar(&cfg.UpstreamTLS.CAFile, "upstream-tls-ca-file", getEnv("UPSTREAM_TLS_CA_FILE", ""), "CA file for verifying data sources")

	flag.Parse()

	cfg.AdapterConfig = parseAdapterConfig()
	if _, ok := cfg.AdapterConfig["countries"]; !ok && cfg.Countries != "" {
		cfg.AdapterConfig["countries"] = cfg.Countries
	}

	return cfg
}

// Validate checks the values that ParseFlags cannot reject on its own.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeNaive, ModeRegressors, ModeWeather, ModeServe:
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (must be naive, regressors, weather or serve)", c.Mode))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat))
	}

	switch c.Storage {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis address required when storage=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage))
	}

	if c.Mode == ModeServe && c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be > 0 in serve mode, got %v", c.Interval))
	}
	if c.SnapshotTTL <= 0 {
		errs = append(errs, fmt.Errorf("snapshot TTL must be > 0, got %v", c.SnapshotTTL))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Adapter == "" {
		errs = append(errs, errors.New("adapter cannot be empty"))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls: %w", err))
	}
	if err := c.UpstreamTLS.ValidateClient(); err != nil {
		errs = append(errs, fmt.Errorf("upstream tls: %w", err))
	}

	return errors.Join(errs...)
}

// StaleAfter is the age after which a served snapshot is flagged stale.
func (c *Config) StaleAfter() time.Duration {
	return 2 * c.Interval
}

// parseAdapterConfig parses ADAPTER_* environment variables into a generic configuration map.
// Environment variable names are converted to camelCase for the map keys
// (ADAPTER_URL → url, ADAPTER_TIMESTAMP_PATH → timestampPath).
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "ADAPTER_") || len(key) == len("ADAPTER_") {
			continue
		}
		config[toLowerCamelCase(key[len("ADAPTER_"):])] = value
	}

	return config
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
