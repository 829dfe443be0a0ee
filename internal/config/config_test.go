package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every key Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
		"API_BASE_PATH", "GZIP_ENABLED", "DB_DRIVER", "DB_PATH", "DATABASE_URL",
		"RATE_RPS", "RATE_BURST", "VOTE_RATE_RPS", "VOTE_RATE_BURST",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG", "OTEL_DEPLOYMENT_ENVIRONMENT",
		"CONFIG_FILE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "votehub.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.DBDriver != "sqlite" || cfg.DSN() != "votehub.db" {
		t.Fatalf("db defaults: driver=%q dsn=%q", cfg.DBDriver, cfg.DSN())
	}
	if cfg.APIBasePath != "/api/v1" || !cfg.GzipEnabled || cfg.SwaggerEnabled {
		t.Fatalf("http defaults: %+v", cfg)
	}
	if cfg.VoteRateRPS != 0.5 || cfg.VoteRateBurst != 3 || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("vote defaults: %+v", cfg)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("expected no CORS allowlist, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.OTEL.ServiceName != "votehub" || cfg.OTEL.SampleRatio != 1 || cfg.OTEL.Enabled {
		t.Fatalf("otel defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_EnvOverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", " Warning ")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("GZIP_ENABLED", "off")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("RATE_RPS", "x")
	t.Setenv("VOTE_RATE_BURST", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("HSTS_MAX_AGE", "24h")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second {
		t.Fatalf("server: %+v", cfg)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("normalization: gin=%q level=%q pretty=%v", cfg.GinMode, cfg.LogLevel, cfg.LogPretty)
	}
	if cfg.APIBasePath != "/api/v2" || cfg.GzipEnabled {
		t.Fatalf("http: base=%q gzip=%v", cfg.APIBasePath, cfg.GzipEnabled)
	}
	if cfg.DBDriver != "sqlite" || cfg.DSN() != "db.sqlite" {
		t.Fatalf("db: %q %q", cfg.DBDriver, cfg.DSN())
	}
	if cfg.RateRPS != 5 {
		t.Fatalf("unparseable RATE_RPS should keep default, got %v", cfg.RateRPS)
	}
	if cfg.VoteRateBurst != 4 {
		t.Fatalf("VOTE_RATE_BURST = %d", cfg.VoteRateBurst)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
	if cfg.Security.HSTSMaxAge != 24*time.Hour || cfg.OTEL.SampleRatio != 0.25 {
		t.Fatalf("hsts=%v ratio=%v", cfg.Security.HSTSMaxAge, cfg.OTEL.SampleRatio)
	}
}

func TestLoadFile_LayersUnderEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
db_driver: postgres
DATABASE_URL: postgres://votehub@db:5432/votehub
VOTE_RATE_BURST: 7
ENABLE_HSTS: true
CORS_ALLOWED_ORIGINS:
  - https://app.example.com
  - https://admin.example.com
PORT: "9000"
OTEL_SERVICE_NAME:
`)
	t.Setenv("PORT", "9100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.DSN() != "postgres://votehub@db:5432/votehub" {
		t.Fatalf("db from file: %q %q", cfg.DBDriver, cfg.DSN())
	}
	if cfg.VoteRateBurst != 7 || !cfg.Security.EnableHSTS {
		t.Fatalf("scalars from file: burst=%d hsts=%v", cfg.VoteRateBurst, cfg.Security.EnableHSTS)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env should win over file, got PORT %q", cfg.Port)
	}
	if cfg.OTEL.ServiceName != "votehub" {
		t.Fatalf("null value should keep default, got %q", cfg.OTEL.ServiceName)
	}
}

func TestLoad_UsesConfigFileEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", writeFile(t, "LOG_LEVEL: debug\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil ||
		!errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
	if _, err := LoadFile(writeFile(t, "PORT: [unterminated\n")); err == nil ||
		!strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("bad yaml: %v", err)
	}
	if _, err := LoadFile(writeFile(t, "OTEL:\n  ENABLED: true\n")); err == nil ||
		!strings.Contains(err.Error(), "OTEL must be a scalar or a list") {
		t.Fatalf("nested mapping: %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("RATE_BURST", "0")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
	t.Setenv("READ_TIMEOUT", "-1s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"LOG_LEVEL must be one of",
		"DATABASE_URL is required",
		"RATE_BURST must be >= 1",
		"OTEL_TRACES_SAMPLER_ARG must be in [0,1]",
		"timeouts must be positive",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mysql")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DB_DRIVER must be one of") {
		t.Fatalf("got %v", err)
	}
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic")
		}
	}()
	_ = MustLoad()
}

func Test_normalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/":         "/",
		"api":       "/api",
		" /api/v1/": "/api/v1",
		"//x//":     "/x",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
