package events

import (
	"sync"

	"go.uber.org/zap"
)

// Sink consumes events. Implementations must not block the caller for long.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Emit delivers e to every non-nil sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "extraction_events"))}
}

// Emit logs e at a level matching its severity.
func (s *LogSink) Emit(e Event) {
	fields := []zap.Field{zap.String("event", string(e.Type())), zap.String("call_id", e.Call())}
	switch ev := e.(type) {
	case *RequestSent:
		s.logger.Debug("request sent", append(fields,
			zap.Int("attempt", ev.Attempt),
			zap.String("mode", ev.Mode),
			zap.Int("messages", ev.Messages),
			zap.Int("prompt_tokens", ev.PromptTokens))...)
	case *ResponseReceived:
		s.logger.Debug("response received", append(fields,
			zap.Int("attempt", ev.Attempt),
			zap.Bool("streamed", ev.Streamed),
			zap.Int("bytes", len(ev.Raw)),
			zap.Duration("latency", ev.Latency))...)
	case *PartialReceived:
		s.logger.Debug("partial received", append(fields, zap.Int("attempt", ev.Attempt))...)
	case *AttemptValidated:
		s.logger.Debug("attempt validated", append(fields,
			zap.Int("attempt", ev.Attempt),
			zap.Bool("valid", ev.Result.IsValid()),
			zap.Strings("errors", ev.Result.Messages()))...)
	case *Retrying:
		s.logger.Info("retrying extraction", append(fields,
			zap.Int("next_attempt", ev.NextAttempt),
			zap.String("reason", ev.Reason),
			zap.Strings("errors", ev.Messages))...)
	case *Succeeded:
		s.logger.Info("extraction succeeded", append(fields, zap.Int("attempts", ev.Attempts))...)
	case *Failed:
		s.logger.Warn("extraction failed", append(fields, zap.Int("attempts", ev.Attempts), zap.Error(ev.Err))...)
	default:
		s.logger.Debug("event", fields...)
	}
}

// Recorder keeps every event in memory. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a snapshot of recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
