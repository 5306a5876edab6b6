package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration loaded from YAML and env.
type Config struct {
	EnvName string

	FetchEngine  string // "http" or "file"
	BaseURL      string
	FetchTimeout time.Duration
	UserAgent    string
	Locale       string
	SnapshotDir  string

	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerMinute int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	StorageFormat string // "json" or "csv"
	OutputDir     string

	CacheBackend          string // "none", "in_memory", "memcached" or "redis"
	CacheTTL              time.Duration
	CoalesceTimeout       time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string

	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	DrainDelay      time.Duration
	RateLimitRPS    int
	RateLimitBurst  int

	TrafficWindow    time.Duration
	DegradedErrorPct int

	TrackedLocations []string
}

type fileConfig struct {
	Fetch struct {
		Engine      string `yaml:"engine"`
		BaseURL     string `yaml:"base_url"`
		Timeout     string `yaml:"timeout"`
		UserAgent   string `yaml:"user_agent"`
		Locale      string `yaml:"locale"`
		SnapshotDir string `yaml:"snapshot_dir"`
	} `yaml:"fetch"`

	Reliability struct {
		RetryMaxAttempts  int    `yaml:"retry_max_attempts"`
		RetryBaseDelay    string `yaml:"retry_base_delay"`
		RetryMaxDelay     string `yaml:"retry_max_delay"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		CircuitBreaker    struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Storage struct {
		Format    string `yaml:"format"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"storage"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Server struct {
		Port             string `yaml:"port"`
		RequestTimeout   string `yaml:"request_timeout"`
		ShutdownTimeout  string `yaml:"shutdown_timeout"`
		DrainDelay       string `yaml:"drain_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		TrafficWindow    string `yaml:"traffic_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"server"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev),
// then env overrides. With ENV_NAME unset a missing file means built-in
// defaults; an explicit ENV_NAME requires its file. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env, explicit := os.LookupEnv("ENV_NAME")
	env = strings.TrimSpace(env)
	if env == "" {
		env, explicit = "dev", false
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}

	var fc fileConfig
	envPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(envPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse env file %s: %w", envPath, err)
		}
	case os.IsNotExist(err) && !explicit:
		// built-in defaults
	default:
		return nil, fmt.Errorf("read env file %s: %w", envPath, err)
	}

	cfg := fromFile(fc)
	cfg.EnvName = env
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.FetchEngine = orDefault(strings.ToLower(fc.Fetch.Engine), "http")
	cfg.BaseURL = orDefault(fc.Fetch.BaseURL, "https://www.bbc.com/weather")
	cfg.FetchTimeout = parseDurationOrZero(fc.Fetch.Timeout, 45*time.Second)
	cfg.UserAgent = strings.TrimSpace(fc.Fetch.UserAgent)
	cfg.Locale = orDefault(fc.Fetch.Locale, "en-GB")
	cfg.SnapshotDir = orDefault(fc.Fetch.SnapshotDir, "testdata/pages")

	cfg.RetryAttempts = intOrDefault(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, time.Second)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 60*time.Second)
	cfg.RequestsPerMinute = intOrDefault(fc.Reliability.RequestsPerMinute, 10)

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.CircuitBreakerFailureThreshold = intOrDefault(cb.FailureThreshold, 5)
	cfg.CircuitBreakerSuccessThreshold = intOrDefault(cb.SuccessThreshold, 2)
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.StorageFormat = orDefault(strings.ToLower(fc.Storage.Format), "json")
	cfg.OutputDir = orDefault(fc.Storage.OutputDir, "data")

	cfg.CacheBackend = orDefault(strings.ToLower(fc.Cache.Backend), "none")
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.CoalesceTimeout = parseDurationOrZero(fc.Cache.CoalesceTimeout, 60*time.Second)
	cfg.MemcachedAddrs = orDefault(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOrDefault(fc.Cache.Memcached.MaxIdleConns, 2)
	cfg.RedisAddr = orDefault(fc.Cache.Redis.Addr, "localhost:6379")

	cfg.ServerPort = orDefault(fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDurationOrZero(fc.Server.RequestTimeout, 0)
	cfg.ShutdownTimeout = parseDurationOrZero(fc.Server.ShutdownTimeout, 30*time.Second)
	cfg.DrainDelay = parseDurationOrZero(fc.Server.DrainDelay, 5*time.Second)
	cfg.RateLimitRPS = fc.Server.RateLimitRPS
	cfg.RateLimitBurst = fc.Server.RateLimitBurst
	cfg.TrafficWindow = parseDuration(fc.Server.TrafficWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Server.DegradedErrorPct

	cfg.TrackedLocations = fc.Metrics.TrackedLocations
	return cfg
}

// applyEnv lets the environment override file settings.
func applyEnv(cfg *Config) {
	overrides := []struct {
		name  string
		dst   *string
		lower bool
	}{
		{"FETCH_ENGINE", &cfg.FetchEngine, true},
		{"BBC_WEATHER_BASE_URL", &cfg.BaseURL, false},
		{"SNAPSHOT_DIR", &cfg.SnapshotDir, false},
		{"OUTPUT_DIR", &cfg.OutputDir, false},
		{"STORAGE_FORMAT", &cfg.StorageFormat, true},
		{"CACHE_BACKEND", &cfg.CacheBackend, true},
		{"MEMCACHED_ADDRS", &cfg.MemcachedAddrs, false},
		{"REDIS_ADDR", &cfg.RedisAddr, false},
		{"SERVER_PORT", &cfg.ServerPort, false},
	}
	for _, o := range overrides {
		v := strings.TrimSpace(os.Getenv(o.name))
		if v == "" {
			continue
		}
		if o.lower {
			v = strings.ToLower(v)
		}
		*o.dst = v
	}
}

func orDefault(s, defaultVal string) string {
	if s = strings.TrimSpace(s); s == "" {
		return defaultVal
	}
	return s
}

func intOrDefault(n, defaultVal int) int {
	if n <= 0 {
		return defaultVal
	}
	return n
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unknown engines, formats and cache backends and
// non-positive timeouts. A request timeout at or below the fetch timeout is
// raised to leave room for one full fetch.
func validate(cfg *Config) error {
	switch cfg.FetchEngine {
	case "http", "file":
	default:
		return fmt.Errorf("fetch.engine must be http or file, got %q", cfg.FetchEngine)
	}
	switch cfg.StorageFormat {
	case "json", "csv":
	default:
		return fmt.Errorf("storage.format must be json or csv, got %q", cfg.StorageFormat)
	}
	switch cfg.CacheBackend {
	case "none", "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if cfg.DrainDelay < 0 {
		return fmt.Errorf("server.drain_delay must not be negative")
	}
	if cfg.DegradedErrorPct < 0 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("server.degraded_error_pct must be between 0 and 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.CoalesceTimeout < 0 {
		return fmt.Errorf("cache.coalesce_timeout must not be negative")
	}
	if cfg.RequestTimeout <= cfg.FetchTimeout {
		cfg.RequestTimeout = cfg.FetchTimeout + 5*time.Second
	}
	return nil
}
