package extract

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/events"
	"github.com/BaSui01/extractflow/llm/tokenizer"
	"github.com/BaSui01/extractflow/schema"
)

// DefaultRetryPrompt 是纠错消息的前缀，后接逐条错误。
const DefaultRetryPrompt = "JSON generated incorrectly, fix following errors:"

// Option 配置 Extractor。
type Option func(*Extractor)

// WithLogger 设置日志。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithSink 设置生命周期事件的接收方。
func WithSink(sink events.Sink) Option {
	return func(e *Extractor) { e.sink = sink }
}

// WithFactory 使用指定的 Schema 工厂（及其缓存）。
func WithFactory(f *schema.Factory) Option {
	return func(e *Extractor) { e.factory = f }
}

// WithMaxAttempts 设置默认最大尝试次数，小于 1 时按 1 处理。
func WithMaxAttempts(n int) Option {
	return func(e *Extractor) { e.maxAttempts = n }
}

// WithMode 设置默认模式。
func WithMode(m Mode) Option {
	return func(e *Extractor) { e.mode = m }
}

// WithRetryPrompt 覆盖纠错消息前缀。
func WithRetryPrompt(prompt string) Option {
	return func(e *Extractor) {
		if prompt != "" {
			e.retryPrompt = prompt
		}
	}
}

// WithTracer 设置 OpenTelemetry tracer。
func WithTracer(t trace.Tracer) Option {
	return func(e *Extractor) { e.tracer = t }
}

// WithTokenizer 设置用于估算 prompt token 的分词器。
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(e *Extractor) { e.tokenizer = t }
}

// CallOption 覆盖单次调用的设置。
type CallOption func(*callConfig)

type callConfig struct {
	mode        Mode
	maxAttempts int
	model       string
	stream      bool
	onPartial   func(Partial)
}

// WithCallMode 覆盖本次调用的模式。
func WithCallMode(m Mode) CallOption {
	return func(c *callConfig) { c.mode = m }
}

// WithCallMaxAttempts 覆盖本次调用的最大尝试次数。
func WithCallMaxAttempts(n int) CallOption {
	return func(c *callConfig) { c.maxAttempts = n }
}

// WithCallModel 覆盖本次调用的模型名，优先于 Adapter 的 WithModel。
func WithCallModel(model string) CallOption {
	return func(c *callConfig) { c.model = model }
}

// WithStreaming 以流式方式请求；onPartial 可为 nil。
func WithStreaming(onPartial func(Partial)) CallOption {
	return func(c *callConfig) {
		c.stream = true
		c.onPartial = onPartial
	}
}
