package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/events"
	"github.com/BaSui01/extractflow/jsonx"
	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/llm/tokenizer"
	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/structure"
	"github.com/BaSui01/extractflow/types"
	"github.com/BaSui01/extractflow/validation"
)

// Attempt 记录一次请求往返，仅在调用期间保留，用于诊断与事件。
type Attempt struct {
	Index     int
	Mode      Mode
	Request   *Request
	Raw       string
	Candidate string
	// Value 为反序列化结果，解析失败时为 nil
	Value  any
	Result validation.Result
	Err    error
	Usage  llm.ChatUsage
}

// Partial 是流式过程中的部分结果。
type Partial struct {
	Attempt int
	Value   any
	Raw     string
}

// Result 是成功抽取的结果。
type Result struct {
	CallID string
	// Value 对对象形状是 *structure.Structure；标量与枚举为值本身；数组为 []any
	Value    any
	Attempts []Attempt
	States   []State
	Usage    llm.ChatUsage
}

// Structure 在结果为对象时返回它。
func (r *Result) Structure() (*structure.Structure, bool) {
	st, ok := r.Value.(*structure.Structure)
	return st, ok
}

// Decode 把结果按 encoding/json 规则写入 target。
func (r *Result) Decode(target any) error {
	return structure.DecodeValue(r.Value, target)
}

// Extractor 是抽取控制器。并发调用安全；单次调用内的尝试严格串行。
type Extractor struct {
	adapter     Adapter
	factory     *schema.Factory
	logger      *zap.Logger
	sink        events.Sink
	tracer      trace.Tracer
	tokenizer   tokenizer.Tokenizer
	maxAttempts int
	mode        Mode
	retryPrompt string
}

// New 创建 Extractor。默认只尝试一次、使用工具模式与进程级 Schema 工厂。
func New(adapter Adapter, opts ...Option) *Extractor {
	e := &Extractor{
		adapter:     adapter,
		maxAttempts: 1,
		mode:        ModeTools,
		retryPrompt: DefaultRetryPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "extractor"))
	if e.factory == nil {
		e.factory = schema.Default()
	}
	if e.sink == nil {
		e.sink = events.Discard
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}
	return e
}

// Factory 返回使用的 Schema 工厂。
func (e *Extractor) Factory() *schema.Factory { return e.factory }

// Extract 按形状描述抽取。
func (e *Extractor) Extract(ctx context.Context, shape *schema.TypeDescriptor, messages []types.Message, opts ...CallOption) (*Result, error) {
	return e.run(ctx, func() (schema.Schema, error) { return e.factory.Schema(shape) }, messages, opts)
}

// ExtractSchema 使用已经派生好的 Schema 抽取。
func (e *Extractor) ExtractSchema(ctx context.Context, s schema.Schema, messages []types.Message, opts ...CallOption) (*Result, error) {
	return e.run(ctx, func() (schema.Schema, error) {
		if s == nil {
			return nil, &schema.SchemaError{Reason: "nil schema"}
		}
		return s, nil
	}, messages, opts)
}

// ExtractStream 以流式方式抽取，每当部分结果变化时调用 onPartial。
func (e *Extractor) ExtractStream(ctx context.Context, shape *schema.TypeDescriptor, messages []types.Message, onPartial func(Partial), opts ...CallOption) (*Result, error) {
	opts = append(opts, WithStreaming(onPartial))
	return e.Extract(ctx, shape, messages, opts...)
}

func (e *Extractor) callConfig(opts []CallOption) callConfig {
	cfg := callConfig{mode: e.mode, maxAttempts: e.maxAttempts}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts < 1 {
		cfg.maxAttempts = 1
	}
	if cfg.mode == "" {
		cfg.mode = ModeTools
	}
	return cfg
}

// call 保存单次调用的状态。
type call struct {
	e        *Extractor
	cfg      callConfig
	id       string
	logger   *zap.Logger
	span     trace.Span
	state    State
	states   []State
	attempts []Attempt
	usage    llm.ChatUsage
}

func (e *Extractor) run(ctx context.Context, derive func() (schema.Schema, error), messages []types.Message, opts []CallOption) (*Result, error) {
	cfg := e.callConfig(opts)
	id := uuid.NewString()
	ctx = types.WithCallID(ctx, id)
	if cfg.model != "" {
		ctx = types.WithLLMModel(ctx, cfg.model)
	}
	if _, ok := types.TraceID(ctx); !ok {
		ctx = types.WithTraceID(ctx, id)
	}

	ctx, span := e.tracer.Start(ctx, "extractflow.extract", trace.WithAttributes(
		attribute.String("extract.call_id", id),
		attribute.String("extract.mode", string(cfg.mode)),
		attribute.Int("extract.max_attempts", cfg.maxAttempts),
		attribute.Bool("extract.stream", cfg.stream),
	))
	defer span.End()

	c := &call{
		e:      e,
		cfg:    cfg,
		id:     id,
		logger: e.logger.With(zap.String("call_id", id)),
		span:   span,
	}
	return c.run(ctx, derive, messages)
}

func (c *call) enter(s State) {
	c.logger.Debug("state transition", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.states = append(c.states, s)
}

func (c *call) emit(ev events.Event) { c.e.sink.Emit(ev) }

func (c *call) run(ctx context.Context, derive func() (schema.Schema, error), messages []types.Message) (*Result, error) {
	c.enter(StateBuilding)
	s, err := derive()
	if err != nil {
		return nil, c.fail(err)
	}
	wrapped, wrapping := schema.Wrap(s)
	c.span.SetAttributes(attribute.String("extract.shape", s.SchemaName()))

	conv := NewConversation(messages...)
	des := structure.NewDeserializer(c.e.factory)

	for n := 1; n <= c.cfg.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, c.fail(fmt.Errorf("extraction cancelled before attempt %d: %w", n, err))
		}
		at, err := c.attempt(ctx, n, conv, wrapped, wrapping, des)
		if err != nil {
			return nil, c.fail(err)
		}
		c.attempts = append(c.attempts, *at)
		c.addUsage(at.Usage)

		if at.Err == nil {
			c.enter(StateSucceeded)
			c.emit(&events.Succeeded{CallID: c.id, Attempts: n, Value: at.Value, Timestamp_: time.Now()})
			c.span.SetAttributes(attribute.Int("extract.attempts", n))
			c.span.SetStatus(codes.Ok, "")
			c.logger.Debug("extraction succeeded", zap.Int("attempts", n))
			return &Result{
				CallID:   c.id,
				Value:    at.Value,
				Attempts: c.attempts,
				States:   c.states,
				Usage:    c.usage,
			}, nil
		}
		if n == c.cfg.maxAttempts {
			break
		}

		c.enter(StateRetrying)
		msgs := feedback(at.Err)
		c.emit(&events.Retrying{
			CallID:      c.id,
			Attempt:     n,
			NextAttempt: n + 1,
			Reason:      at.Err.Error(),
			Messages:    msgs,
			Timestamp_:  time.Now(),
		})
		c.logger.Info("retrying extraction",
			zap.Int("attempt", n),
			zap.Int("max_attempts", c.cfg.maxAttempts),
			zap.Strings("errors", msgs))
		conv = conv.Append(c.correction(at.Raw, msgs)...)
	}

	last := c.attempts[len(c.attempts)-1]
	return nil, c.fail(&RetriesExhaustedError{
		Attempts: len(c.attempts),
		Last:     last.Err,
		Messages: feedback(last.Err),
		History:  c.attempts,
	})
}

func (c *call) fail(err error) error {
	c.enter(StateFailed)
	c.emit(&events.Failed{CallID: c.id, Attempts: len(c.attempts), Err: err, Timestamp_: time.Now()})
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("extraction failed",
		zap.Int("attempts", len(c.attempts)),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err))
	return err
}

func (c *call) addUsage(u llm.ChatUsage) {
	c.usage.PromptTokens += u.PromptTokens
	c.usage.CompletionTokens += u.CompletionTokens
	c.usage.TotalTokens += u.TotalTokens
}

// correction 构造纠错回合：assistant 复述原始输出，user 列出错误。
func (c *call) correction(raw string, msgs []string) []types.Message {
	var sb strings.Builder
	sb.WriteString(c.e.retryPrompt)
	for _, m := range msgs {
		sb.WriteString("\n- ")
		sb.WriteString(m)
	}
	return []types.Message{types.NewAssistantMessage(raw), types.NewUserMessage(sb.String())}
}

// attempt 执行一次往返。返回的 error 只表示不可纠正的失败（Schema 渲染、传输）；
// 可纠正的失败记录在 Attempt.Err 中。
func (c *call) attempt(ctx context.Context, n int, conv Conversation, wrapped schema.Schema, wrapping schema.Wrapping, des *structure.Deserializer) (*Attempt, error) {
	ctx, span := c.e.tracer.Start(ctx, "extractflow.attempt", trace.WithAttributes(
		attribute.Int("extract.attempt", n),
	))
	defer span.End()

	c.enter(StateRequesting)
	req, err := c.e.adapter.BuildRequest(wrapped, c.e.factory, conv.Messages(), c.cfg.mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Chat.TraceID = c.id
	if model, ok := types.LLMModel(ctx); ok {
		req.Chat.Model = model
	}
	span.SetAttributes(attribute.String("extract.request_mode", string(req.Mode)))

	c.emit(&events.RequestSent{
		CallID:       c.id,
		Attempt:      n,
		Mode:         string(req.Mode),
		Model:        req.Chat.Model,
		Messages:     len(req.Chat.Messages),
		PromptTokens: c.promptTokens(req),
		Timestamp_:   time.Now(),
	})

	start := time.Now()
	var (
		raw   string
		usage llm.ChatUsage
	)
	if c.cfg.stream {
		raw, usage, err = c.stream(ctx, n, req, wrapped, wrapping, des)
	} else {
		var resp *Response
		resp, err = c.e.adapter.Send(ctx, req)
		if resp != nil {
			raw, usage = resp.Raw, resp.Usage
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("attempt %d: %w", n, err)
	}
	c.emit(&events.ResponseReceived{
		CallID:           c.id,
		Attempt:          n,
		Raw:              raw,
		Streamed:         c.cfg.stream,
		Latency:          time.Since(start),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Timestamp_:       time.Now(),
	})

	at := &Attempt{Index: n, Mode: req.Mode, Request: req, Raw: raw, Usage: usage}
	c.evaluate(at, wrapped, wrapping, des)
	c.emit(&events.AttemptValidated{CallID: c.id, Attempt: n, Result: at.Result, Timestamp_: time.Now()})
	if at.Err != nil {
		span.SetStatus(codes.Error, at.Err.Error())
		c.logger.Debug("attempt rejected", zap.Int("attempt", n), zap.Error(at.Err))
	}
	return at, nil
}

// evaluate 完成 Parsing → Deserializing → Validating。
func (c *call) evaluate(at *Attempt, wrapped schema.Schema, wrapping schema.Wrapping, des *structure.Deserializer) {
	reject := func(err error) {
		at.Err = err
		at.Result = validation.Invalid(feedback(err)...)
	}

	c.enter(StateParsing)
	at.Candidate = jsonx.Extract(at.Raw)
	if at.Candidate == "" {
		reject(&ExtractionEmptyError{Raw: at.Raw})
		return
	}

	c.enter(StateDeserializing)
	parsed, err := jsonx.Parse(at.Candidate)
	if err != nil {
		reject(&structure.DeserializationError{Issues: []structure.Issue{{Message: err.Error()}}, Err: err})
		return
	}
	v, err := des.Deserialize(wrapping.Normalize(parsed), wrapped)
	if err != nil {
		reject(err)
		return
	}

	c.enter(StateValidating)
	at.Value = unwrap(v, wrapping)
	at.Result = structure.Validate(v, wrapped, c.e.factory)
	if !at.Result.IsValid() {
		at.Err = &ValidationError{Result: at.Result}
	}
}

// stream 消费流式响应，每个快照都做一次部分抽取；返回最终累积文本。
func (c *call) stream(ctx context.Context, n int, req *Request, wrapped schema.Schema, wrapping schema.Wrapping, des *structure.Deserializer) (string, llm.ChatUsage, error) {
	var usage llm.ChatUsage
	ch, err := c.e.adapter.Stream(ctx, req)
	if err != nil {
		return "", usage, err
	}

	var (
		raw  string
		last string
		done bool
	)
	for chunk := range ch {
		if chunk.Err != nil {
			return "", usage, chunk.Err
		}
		raw = chunk.Raw
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.Done {
			done = true
			continue
		}
		candidate := jsonx.ExtractPartial(raw)
		if candidate == "" {
			continue
		}
		parsed, _ := jsonx.ParsePartial(candidate)
		value := unwrap(des.DeserializePartial(wrapping.Normalize(parsed), wrapped), wrapping)
		if value == nil {
			continue
		}
		key, err := structure.MarshalValue(value)
		if err != nil || key == last {
			continue
		}
		last = key
		c.emit(&events.PartialReceived{CallID: c.id, Attempt: n, Value: value, Timestamp_: time.Now()})
		if c.cfg.onPartial != nil {
			c.cfg.onPartial(Partial{Attempt: n, Value: value, Raw: raw})
		}
	}
	if !done {
		if err := ctx.Err(); err != nil {
			return "", usage, err
		}
		return "", usage, types.NewError(types.ErrUpstreamError, "stream closed before completion")
	}
	return raw, usage, nil
}

func (c *call) promptTokens(req *Request) int {
	if c.e.tokenizer == nil {
		return 0
	}
	n, err := tokenizer.CountPrompt(c.e.tokenizer, req.Chat.Messages, req.Chat.Tools)
	if err != nil {
		c.logger.Debug("prompt token count failed", zap.Error(err))
		return 0
	}
	return n
}

func unwrap(v any, w schema.Wrapping) any {
	if w == schema.WrapNone {
		return v
	}
	st, ok := v.(*structure.Structure)
	if !ok {
		return nil
	}
	return w.Unwrap(st.Get)
}
