package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ProviderAuto      = "auto"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOffline   = "offline"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Duration reads "30m"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all roi-copilot configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	AI        AIConfig        `toml:"ai"`
	Cache     CacheConfig     `toml:"cache"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Report    ReportConfig    `toml:"report"`
}

type ServerConfig struct {
	Addr          string   `toml:"addr"`
	WebDir        string   `toml:"web_dir"`
	SubmitDelay   Duration `toml:"submit_delay"`
	SessionTTL    Duration `toml:"session_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
	// RateLimit is the number of submit/search calls allowed per client per
	// RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow Duration `toml:"rate_window"`
}

type AIConfig struct {
	Provider        string   `toml:"provider"`
	GeminiAPIKey    string   `toml:"gemini_api_key,omitempty"`
	GeminiModel     string   `toml:"gemini_model"`
	AnthropicAPIKey string   `toml:"anthropic_api_key,omitempty"`
	AnthropicModel  string   `toml:"anthropic_model"`
	CatalogPath     string   `toml:"catalog_path,omitempty"`
	CatalogLatency  Duration `toml:"catalog_latency"`
	SearchTimeout   Duration `toml:"search_timeout"`
}

type CacheConfig struct {
	Backend       string   `toml:"backend"`
	TTL           Duration `toml:"ttl"`
	RedisAddr     string   `toml:"redis_addr,omitempty"`
	RedisPassword string   `toml:"redis_password,omitempty"`
	RedisDB       int      `toml:"redis_db"`
	// MaxEntries bounds the memory backend.
	MaxEntries int `toml:"max_entries"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint,omitempty"`
	Insecure     bool   `toml:"insecure"`
	ServiceName  string `toml:"service_name"`
}

type ReportConfig struct {
	ChromePath string `toml:"chrome_path,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8080",
			SubmitDelay:   Duration{1500 * time.Millisecond},
			SessionTTL:    Duration{30 * time.Minute},
			SweepInterval: Duration{time.Minute},
			RateLimit:     20,
			RateWindow:    Duration{time.Minute},
		},
		AI: AIConfig{
			Provider:      ProviderAuto,
			SearchTimeout: Duration{60 * time.Second},
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			TTL:        Duration{15 * time.Minute},
			MaxEntries: 1024,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName: "roi-copilot",
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}
	ApplyEnv(&cfg, os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv overlays secrets and deployment settings from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Server.Addr, "ROI_COPILOT_ADDR")
	set(&cfg.Server.WebDir, "ROI_COPILOT_WEB_DIR")
	set(&cfg.AI.Provider, "ROI_COPILOT_AI_PROVIDER")
	set(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	set(&cfg.AI.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	set(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	set(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	set(&cfg.Log.Level, "ROI_COPILOT_LOG_LEVEL")
	set(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	set(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	if cfg.Cache.RedisAddr != "" && getenv("REDIS_ADDR") != "" {
		cfg.Cache.Backend = CacheRedis
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.AI.Provider {
	case ProviderAuto, ProviderGemini, ProviderAnthropic, ProviderOffline:
	default:
		errs = append(errs, fmt.Errorf("ai.provider: unknown provider %q", c.AI.Provider))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr: required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Server.SubmitDelay.Duration < 0 {
		errs = append(errs, errors.New("server.submit_delay: must not be negative"))
	}
	if c.Server.SessionTTL.Duration <= 0 {
		errs = append(errs, errors.New("server.session_ttl: must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit: must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, errors.New("server.rate_window: must be positive when rate_limit is set"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries: must not be negative"))
	}
	return errors.Join(errs...)
}

// SearchProvider resolves "auto" against the configured credentials.
func (c Config) SearchProvider() string {
	if c.AI.Provider != ProviderAuto {
		return c.AI.Provider
	}
	switch {
	case c.AI.GeminiAPIKey != "":
		return ProviderGemini
	case c.AI.AnthropicAPIKey != "":
		return ProviderAnthropic
	default:
		return ProviderOffline
	}
}
