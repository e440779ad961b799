// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Extraction.MaxAttempts)
	assert.Equal(t, "tools", cfg.Extraction.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "extractflow.yaml")

	yamlContent := `
extraction:
  max_attempts: 3
  mode: json
  stream: true

provider:
  base_url: "http://localhost:11434"
  model: "llama3"
  timeout: 30s
  rate_limit_rps: 2.5

cache:
  enabled: true
  local_ttl: 1m
  redis:
    enabled: true
    addr: "redis.example.com:6379"
    password: "secret"
    db: 1

log:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Extraction.MaxAttempts)
	assert.Equal(t, "json", cfg.Extraction.Mode)
	assert.True(t, cfg.Extraction.Stream)
	// 未出现的键保留默认值
	assert.Equal(t, "extract_data", cfg.Extraction.ToolName)

	assert.Equal(t, "http://localhost:11434", cfg.Provider.BaseURL)
	assert.Equal(t, "llama3", cfg.Provider.Model)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.InDelta(t, 2.5, cfg.Provider.RateLimitRPS, 0.001)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.LocalTTL)
	assert.Equal(t, "redis.example.com:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "secret", cfg.Cache.Redis.Password)
	assert.Equal(t, 1, cfg.Cache.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("extraction: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "extractflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("extraction:\n  max_attempts: 2\n"), 0o644))

	env := map[string]string{
		"EXTRACTFLOW_EXTRACTION_MAX_ATTEMPTS": "5",
		"EXTRACTFLOW_PROVIDER_API_KEY":        "sk-test",
		"EXTRACTFLOW_PROVIDER_TIMEOUT":        "90s",
		"EXTRACTFLOW_CACHE_REDIS_TLS":         "true",
		"EXTRACTFLOW_LOG_OUTPUT_PATHS":        "stdout, /tmp/extractflow.log",
	}
	l := NewLoader().WithConfigPath(configPath)
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Extraction.MaxAttempts)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout)
	assert.True(t, cfg.Cache.Redis.TLS)
	assert.Equal(t, []string{"stdout", "/tmp/extractflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvPrefixAndSetenv(t *testing.T) {
	t.Setenv("MYAPP_EXTRACTION_MODE", "markdown_json")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "markdown_json", cfg.Extraction.Mode)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	l := NewLoader()
	l.lookupEnv = func(k string) (string, bool) {
		if k == "EXTRACTFLOW_EXTRACTION_MAX_ATTEMPTS" {
			return "many", true
		}
		return "", false
	}
	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTFLOW_EXTRACTION_MAX_ATTEMPTS")
}

func TestLoader_Validators(t *testing.T) {
	cfg, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extraction.MaxAttempts = 0
	cfg.Extraction.Mode = "xml"
	cfg.Provider.BaseURL = ""
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Addr = ""
	cfg.Log.Format = "text"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"max_attempts", "extraction.mode", "base_url", "redis.addr", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(":\n\t- ["), 0o644))
	assert.Panics(t, func() { MustLoad(configPath) })
}
