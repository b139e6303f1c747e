package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ROI_COPILOT_ADDR", "ROI_COPILOT_WEB_DIR", "ROI_COPILOT_AI_PROVIDER", "ROI_COPILOT_LOG_LEVEL",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY", "REDIS_ADDR", "REDIS_PASSWORD",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1500*time.Millisecond, cfg.Server.SubmitDelay.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL.Duration)
	assert.Equal(t, ProviderOffline, cfg.SearchProvider())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "roi.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"
submit_delay = "0s"
session_ttl = "10m"

[ai]
provider = "anthropic"
anthropic_model = "claude-test"

[cache]
backend = "none"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, time.Duration(0), cfg.Server.SubmitDelay.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Server.SessionTTL.Duration)
	assert.Equal(t, "claude-test", cfg.AI.AnthropicModel)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Server.RateWindow.Duration, "unset keys keep defaults")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "roi.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nsession_ttl = \"soon\"\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyEnvPrefersGeminiThenGoogleKey(t *testing.T) {
	cfg := DefaultConfig()
	ApplyEnv(&cfg, env(map[string]string{"GOOGLE_API_KEY": "g-key"}))
	assert.Equal(t, "g-key", cfg.AI.GeminiAPIKey)
	assert.Equal(t, ProviderGemini, cfg.SearchProvider())

	cfg = DefaultConfig()
	ApplyEnv(&cfg, env(map[string]string{"GEMINI_API_KEY": "gem", "GOOGLE_API_KEY": "goo"}))
	assert.Equal(t, "gem", cfg.AI.GeminiAPIKey)
}

func TestApplyEnvRedisSwitchesBackend(t *testing.T) {
	cfg := DefaultConfig()
	ApplyEnv(&cfg, env(map[string]string{"REDIS_ADDR": "localhost:6379"}))
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestSearchProviderFallsBackToAnthropic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.AnthropicAPIKey = "a-key"
	assert.Equal(t, ProviderAnthropic, cfg.SearchProvider())
	cfg.AI.Provider = ProviderOffline
	assert.Equal(t, ProviderOffline, cfg.SearchProvider())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Provider = "magic"
	cfg.Cache.Backend = CacheRedis
	cfg.Server.SessionTTL = Duration{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.provider")
	assert.Contains(t, err.Error(), "cache.redis_addr")
	assert.Contains(t, err.Error(), "server.session_ttl")
}

func TestRateLimitZeroDisablesWithoutWindow(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)

	cfg.Server.RateLimit = 0
	cfg.Server.RateWindow = Duration{}
	require.NoError(t, cfg.Validate())

	cfg.Server.RateLimit = 5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.rate_window")
}
