// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	registry *prometheus.Registry

	// 抽取指标
	extractionsTotal   *prometheus.CounterVec
	extractionAttempts *prometheus.HistogramVec
	extractionDuration *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	partialsTotal      *prometheus.CounterVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到独立的 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 抽取指标
	c.extractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extraction calls",
		},
		[]string{"mode", "status"},
	)

	c.extractionAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_attempts",
			Help:      "Attempts used per extraction call",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
		[]string{"mode"},
	)

	c.extractionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_retries_total",
			Help:      "Total number of self-correction retries",
		},
		[]string{"mode"},
	)

	c.partialsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_partials_total",
			Help:      "Total number of partial values surfaced while streaming",
		},
		[]string{"mode"},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of completion cache hits",
		},
		[]string{"level"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of completion cache misses",
		},
		[]string{"level"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回指标注册表
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WriteToTextfile 以 Prometheus 文本格式导出全部指标
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// =============================================================================
// 🧩 抽取指标记录
// =============================================================================

// RecordExtraction 记录一次抽取调用的终态
func (c *Collector) RecordExtraction(mode, status string, attempts int, duration time.Duration) {
	c.extractionsTotal.WithLabelValues(mode, status).Inc()
	c.extractionAttempts.WithLabelValues(mode).Observe(float64(attempts))
	c.extractionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRetry 记录一次纠错重试
func (c *Collector) RecordRetry(mode string) {
	c.retriesTotal.WithLabelValues(mode).Inc()
}

// RecordPartial 记录一次流式部分结果
func (c *Collector) RecordPartial(mode string) {
	c.partialsTotal.WithLabelValues(mode).Inc()
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHits 累加缓存命中数
func (c *Collector) RecordCacheHits(level string, n int64) {
	if n > 0 {
		c.cacheHits.WithLabelValues(level).Add(float64(n))
	}
}

// RecordCacheMisses 累加缓存未命中数
func (c *Collector) RecordCacheMisses(level string, n int64) {
	if n > 0 {
		c.cacheMisses.WithLabelValues(level).Add(float64(n))
	}
}
