package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// inTempProject switches to a fresh directory for the duration of the test
// and clears the env vars Load reads.
func inTempProject(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"ENV_NAME", "FETCH_ENGINE", "BBC_WEATHER_BASE_URL", "SNAPSHOT_DIR", "OUTPUT_DIR",
		"STORAGE_FORMAT", "CACHE_BACKEND", "MEMCACHED_ADDRS", "REDIS_ADDR", "SERVER_PORT",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, name+".yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	inTempProject(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"EnvName", cfg.EnvName, "dev"},
		{"FetchEngine", cfg.FetchEngine, "http"},
		{"BaseURL", cfg.BaseURL, "https://www.bbc.com/weather"},
		{"FetchTimeout", cfg.FetchTimeout, 45 * time.Second},
		{"Locale", cfg.Locale, "en-GB"},
		{"RetryAttempts", cfg.RetryAttempts, 3},
		{"RetryBaseDelay", cfg.RetryBaseDelay, time.Second},
		{"RetryMaxDelay", cfg.RetryMaxDelay, 60 * time.Second},
		{"RequestsPerMinute", cfg.RequestsPerMinute, 10},
		{"CircuitBreakerEnabled", cfg.CircuitBreakerEnabled, true},
		{"StorageFormat", cfg.StorageFormat, "json"},
		{"OutputDir", cfg.OutputDir, "data"},
		{"CacheBackend", cfg.CacheBackend, "none"},
		{"CacheTTL", cfg.CacheTTL, 10 * time.Minute},
		{"ServerPort", cfg.ServerPort, "8080"},
		{"RequestTimeout", cfg.RequestTimeout, 50 * time.Second},
		{"DrainDelay", cfg.DrainDelay, 5 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_ExplicitEnvMissingFile(t *testing.T) {
	inTempProject(t)
	t.Setenv("ENV_NAME", "nonexistent")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "nonexistent.yaml") {
		t.Errorf("error = %v, want mention of nonexistent.yaml", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := inTempProject(t)
	writeEnvFile(t, dir, "dev", `
fetch:
  engine: file
  snapshot_dir: pages
  timeout: 10s
reliability:
  retry_max_attempts: 5
  requests_per_minute: 30
  circuit_breaker:
    enabled: false
storage:
  format: CSV
  output_dir: out
cache:
  backend: redis
  ttl: 2m
  redis:
    addr: "cache:6379"
server:
  port: "9090"
  request_timeout: 30s
  drain_delay: 0s
metrics:
  tracked_locations: [london, leeds]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchEngine != "file" || cfg.SnapshotDir != "pages" {
		t.Errorf("fetch = %q %q, want file pages", cfg.FetchEngine, cfg.SnapshotDir)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.FetchTimeout)
	}
	if cfg.RetryAttempts != 5 || cfg.RequestsPerMinute != 30 {
		t.Errorf("reliability = %d/%d, want 5/30", cfg.RetryAttempts, cfg.RequestsPerMinute)
	}
	if cfg.CircuitBreakerEnabled {
		t.Error("CircuitBreakerEnabled = true, want false")
	}
	if cfg.StorageFormat != "csv" || cfg.OutputDir != "out" {
		t.Errorf("storage = %q %q, want csv out", cfg.StorageFormat, cfg.OutputDir)
	}
	if cfg.CacheBackend != "redis" || cfg.RedisAddr != "cache:6379" || cfg.CacheTTL != 2*time.Minute {
		t.Errorf("cache = %q %q %v", cfg.CacheBackend, cfg.RedisAddr, cfg.CacheTTL)
	}
	if cfg.ServerPort != "9090" || cfg.RequestTimeout != 30*time.Second || cfg.DrainDelay != 0 {
		t.Errorf("server = %q %v %v, want 9090 30s 0s", cfg.ServerPort, cfg.RequestTimeout, cfg.DrainDelay)
	}
	if len(cfg.TrackedLocations) != 2 {
		t.Errorf("TrackedLocations = %v, want 2 entries", cfg.TrackedLocations)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := inTempProject(t)
	writeEnvFile(t, dir, "dev", "storage:\n  format: json\ncache:\n  backend: none\n")
	t.Setenv("FETCH_ENGINE", "FILE")
	t.Setenv("SNAPSHOT_DIR", "/snapshots")
	t.Setenv("STORAGE_FORMAT", "csv")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	t.Setenv("BBC_WEATHER_BASE_URL", "http://localhost:9999/weather")
	t.Setenv("SERVER_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchEngine != "file" || cfg.SnapshotDir != "/snapshots" {
		t.Errorf("fetch = %q %q", cfg.FetchEngine, cfg.SnapshotDir)
	}
	if cfg.StorageFormat != "csv" || cfg.OutputDir != "/tmp/out" {
		t.Errorf("storage = %q %q", cfg.StorageFormat, cfg.OutputDir)
	}
	if cfg.CacheBackend != "memcached" || cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("cache = %q %q", cfg.CacheBackend, cfg.MemcachedAddrs)
	}
	if cfg.BaseURL != "http://localhost:9999/weather" || cfg.ServerPort != "7000" {
		t.Errorf("base url / port = %q %q", cfg.BaseURL, cfg.ServerPort)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := inTempProject(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STORAGE_FORMAT=csv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("STORAGE_FORMAT") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageFormat != "csv" {
		t.Errorf("StorageFormat = %q, want csv from .env", cfg.StorageFormat)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	dir := inTempProject(t)
	writeEnvFile(t, dir, "dev", "fetch:\n  timeout: \"not-a-duration\"\ncache:\n  ttl: \"\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchTimeout != 45*time.Second {
		t.Errorf("FetchTimeout = %v, want 45s", cfg.FetchTimeout)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown engine", "fetch:\n  engine: chrome\n", "fetch.engine"},
		{"unknown format", "storage:\n  format: xml\n", "storage.format"},
		{"unknown backend", "cache:\n  backend: dynamo\n", "cache.backend"},
		{"zero fetch timeout", "fetch:\n  timeout: 0s\n", "fetch.timeout"},
		{"negative shutdown timeout", "server:\n  shutdown_timeout: -1s\n", "server.shutdown_timeout"},
		{"negative drain delay", "server:\n  drain_delay: -1s\n", "server.drain_delay"},
		{"degraded pct over 100", "server:\n  degraded_error_pct: 150\n", "server.degraded_error_pct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := inTempProject(t)
			writeEnvFile(t, dir, "dev", tt.yaml)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	dir := inTempProject(t)
	writeEnvFile(t, dir, "dev", "fetch: [unclosed\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env file") {
		t.Errorf("Load() error = %v, want parse env file error", err)
	}
}

func TestLoad_RequestTimeoutRaisedAboveFetchTimeout(t *testing.T) {
	dir := inTempProject(t)
	writeEnvFile(t, dir, "dev", "fetch:\n  timeout: 20s\nserver:\n  request_timeout: 10s\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
}
