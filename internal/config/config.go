// Package config loads votehub settings.
//
// Every setting has an environment variable. A YAML file (CONFIG_FILE or the
// --config flag) may provide the same keys as a flat mapping; environment
// variables override the file and the file overrides built-in defaults.
//
//	DB_DRIVER: postgres
//	DATABASE_URL: postgres://votehub@db:5432/votehub
//	CORS_ALLOWED_ORIGINS: [https://app.example.com]
//	VOTE_RATE_BURST: 5
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

// CORSConfig lists origins allowed to call the API; empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig controls tracing export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT
}

// Config holds all settings of the votehub process.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging and docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string
	GzipEnabled    bool

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // sqlite file
	DatabaseURL string // postgres DSN

	// Global limiter, per voter or IP
	RateRPS   float64
	RateBurst int

	// Vote casting limiter, per voter and topic
	VoteRateRPS   float64
	VoteRateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// How long an Idempotency-Key replays its vote.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load that panics on error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, layered over CONFIG_FILE when it is set.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads the environment layered over the YAML file at path ("" for
// none), normalizes the result and validates it. All validation problems
// are reported together.
func LoadFile(path string) (Config, error) {
	src := source{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if src.file, err = parseFile(data); err != nil {
			return Config{}, err
		}
	}
	cfg := src.config()
	cfg.normalize()
	return cfg, cfg.validate()
}

func (s source) config() Config {
	return Config{
		Port:              s.str("PORT", "8080"),
		ReadTimeout:       s.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: s.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      s.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       s.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    s.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           s.str("GIN_MODE", "release"),

		LogLevel:       s.str("LOG_LEVEL", "info"),
		LogPretty:      s.flag("LOG_PRETTY", false),
		SwaggerEnabled: s.flag("SWAGGER_ENABLED", false),
		APIBasePath:    s.str("API_BASE_PATH", "/api/v1"),
		GzipEnabled:    s.flag("GZIP_ENABLED", true),

		DBDriver:    s.str("DB_DRIVER", "sqlite"),
		DBPath:      s.str("DB_PATH", "votehub.db"),
		DatabaseURL: s.str("DATABASE_URL", ""),

		RateRPS:       s.number("RATE_RPS", 5.0),
		RateBurst:     s.integer("RATE_BURST", 10),
		VoteRateRPS:   s.number("VOTE_RATE_RPS", 0.5),
		VoteRateBurst: s.integer("VOTE_RATE_BURST", 3),

		CORS: CORSConfig{AllowedOrigins: splitCSV(s.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: s.flag("ENABLE_HSTS", false),
			HSTSMaxAge: s.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: s.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     s.flag("OTEL_ENABLED", false),
			Endpoint:    s.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    s.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: s.str("OTEL_SERVICE_NAME", "votehub"),
			SampleRatio: s.number("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: s.str("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
		},
	}
}

func (c *Config) normalize() {
	c.GinMode = strings.ToLower(c.GinMode)
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
}

func (c Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.VoteRateRPS >= 0, "VOTE_RATE_RPS must be >= 0")
	check(c.VoteRateBurst >= 1, "VOTE_RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// DSN returns the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// source resolves a key from the environment, then the config file.
type source struct {
	file map[string]string
}

// parseFile flattens a YAML mapping into upper-cased keys. Sequences are
// joined with commas so list settings read like their env form.
func parseFile(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("parsing config file: %s must be a scalar or a list", key)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func (s source) lookup(k string) (string, bool) {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v, true
	}
	v, ok := s.file[k]
	return v, ok && v != ""
}

func (s source) str(k, def string) string {
	if v, ok := s.lookup(k); ok {
		return v
	}
	return def
}

func (s source) number(k string, def float64) float64 {
	if v, ok := s.lookup(k); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) integer(k string, def int) int {
	if v, ok := s.lookup(k); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (s source) flag(k string, def bool) bool {
	if v, ok := s.lookup(k); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) dur(k string, def time.Duration) time.Duration {
	if v, ok := s.lookup(k); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones (except root).
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
