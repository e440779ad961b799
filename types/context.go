package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID  contextKey = "trace_id"
	keyCallID   contextKey = "call_id"
	keyLLMModel contextKey = "llm_model"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithCallID adds the extraction call ID to context.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, keyCallID, callID)
}

// CallID extracts the extraction call ID from context.
func CallID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCallID).(string)
	return v, ok && v != ""
}

// WithLLMModel adds the model name to context.
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, keyLLMModel, model)
}

// LLMModel extracts the model name from context.
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyLLMModel).(string)
	return v, ok && v != ""
}
