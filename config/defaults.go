// =============================================================================
// 📦 ExtractFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Extraction: DefaultExtractionConfig(),
		Provider:   DefaultProviderConfig(),
		Cache:      DefaultCacheConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultExtractionConfig 返回默认抽取配置
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MaxAttempts:      1,
		Mode:             "tools",
		RetryPrompt:      "JSON generated incorrectly, fix following errors:",
		ToolName:         "extract_data",
		BatchConcurrency: 4,
	}
}

// DefaultProviderConfig 返回默认 Provider 配置
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:           "openai",
		BaseURL:        "https://api.openai.com",
		Model:          "gpt-4o-mini",
		Temperature:    0,
		MaxTokens:      1024,
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		RateLimitRPS:   0,
		RateLimitBurst: 1,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      false,
		LocalMaxSize: 1000,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     time.Hour,
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "extractflow",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "extractflow",
	}
}
