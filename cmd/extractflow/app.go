package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/config"
	"github.com/BaSui01/extractflow/events"
	"github.com/BaSui01/extractflow/extract"
	"github.com/BaSui01/extractflow/internal/metrics"
	"github.com/BaSui01/extractflow/internal/telemetry"
	"github.com/BaSui01/extractflow/internal/tlsutil"
	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/llm/cache"
	"github.com/BaSui01/extractflow/llm/providers/openaicompat"
	"github.com/BaSui01/extractflow/llm/retry"
	"github.com/BaSui01/extractflow/llm/tokenizer"
	"github.com/BaSui01/extractflow/schema"
)

// app 持有一次命令执行所需的全部组件。
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	factory   *schema.Factory
	extractor *extract.Extractor
	collector *metrics.Collector
	bus       *events.Bus
	otel      *telemetry.Providers
	cache     *cache.MultiLevelCache
	rdb       *redis.Client
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	otelProviders, err := telemetry.Init(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.otel = otelProviders

	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	a.factory = schema.NewFactory(
		schema.WithObjectReferences(cfg.Extraction.UseObjectReferences),
		schema.WithLogger(logger),
	)

	provider, err := a.buildProvider()
	if err != nil {
		return nil, err
	}

	mode, err := extract.ParseMode(cfg.Extraction.Mode)
	if err != nil {
		return nil, err
	}

	adapter := extract.NewProviderAdapter(provider,
		extract.WithModel(cfg.Provider.Model),
		extract.WithToolName(cfg.Extraction.ToolName),
		extract.WithMaxTokens(cfg.Provider.MaxTokens),
		extract.WithTemperature(float32(cfg.Provider.Temperature)),
		extract.WithAdapterLogger(logger),
	)

	sinks := events.Multi{events.NewLogSink(logger)}
	if a.collector != nil {
		// 指标在 Bus 的投递协程上记录
		a.bus = events.NewBus(events.DefaultBufferSize, logger)
		a.bus.SubscribeAll(a.collector.Sink(provider.Name()).Emit)
		sinks = append(sinks, a.bus)
	}

	a.extractor = extract.New(adapter,
		extract.WithLogger(logger),
		extract.WithSink(sinks),
		extract.WithFactory(a.factory),
		extract.WithMaxAttempts(cfg.Extraction.MaxAttempts),
		extract.WithMode(mode),
		extract.WithRetryPrompt(cfg.Extraction.RetryPrompt),
		extract.WithTracer(a.otel.Tracer()),
		extract.WithTokenizer(tokenizer.ForModel(cfg.Provider.Model)),
	)
	return a, nil
}

// buildProvider 组装 Provider：缓存 → 重试 → 限流 → HTTP。
func (a *app) buildProvider() (llm.Provider, error) {
	pc := a.cfg.Provider
	base := openaicompat.New(openaicompat.Config{
		ProviderName: pc.Name,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		DefaultModel: pc.Model,
		Timeout:      pc.Timeout,
	}, a.logger)

	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = pc.MaxRetries
	var provider llm.Provider = llm.Wrap(base,
		llm.WithRetry(policy, a.logger),
		llm.WithRateLimit(pc.RateLimitRPS, pc.RateLimitBurst),
	)

	cc := a.cfg.Cache
	if !cc.Enabled {
		return provider, nil
	}
	if cc.Redis.Enabled {
		rdb, err := openRedis(cc.Redis)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
	}
	a.cache = cache.NewMultiLevelCache(a.rdb, &cache.Config{
		LocalMaxSize: cc.LocalMaxSize,
		LocalTTL:     cc.LocalTTL,
		RedisTTL:     cc.RedisTTL,
		EnableLocal:  cc.LocalMaxSize > 0,
		EnableRedis:  a.rdb != nil,
	}, a.logger)
	return cache.NewProvider(provider, a.cache, a.logger), nil
}

func openRedis(rc config.RedisConfig) (*redis.Client, error) {
	host, _, err := net.SplitHostPort(rc.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid redis addr %q: %w", rc.Addr, err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		PoolSize:  rc.PoolSize,
		TLSConfig: tlsutil.Redis(rc.TLS, host),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// Close 导出指标并释放连接。
func (a *app) Close() {
	if a.bus != nil {
		a.bus.Stop()
		if n := a.bus.Dropped(); n > 0 {
			a.logger.Warn("metric events dropped", zap.Int64("dropped", n))
		}
	}
	if a.cache != nil && a.collector != nil {
		stats := a.cache.Stats()
		a.collector.RecordCacheHits("local", stats.LocalHits)
		a.collector.RecordCacheHits("redis", stats.RedisHits)
		a.collector.RecordCacheMisses("all", stats.Misses)
	}
	if a.collector != nil && a.cfg.Metrics.OutputPath != "" {
		if err := a.collector.WriteToTextfile(a.cfg.Metrics.OutputPath); err != nil {
			a.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}
