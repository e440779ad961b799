package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/types"
)

// DefaultToolName 是工具模式下注册的函数名。
const DefaultToolName = "extract_data"

// Request 是 Adapter 构建的、已嵌入 Schema 的请求。
type Request struct {
	// Mode 是实际使用的模式（可能已从 tools 降级为 json）
	Mode     Mode
	ToolName string
	Chat     *llm.ChatRequest
}

// Response 是一次完整响应。
type Response struct {
	// Raw 是承载 JSON 的原始文本：工具模式下为函数参数，其余模式为消息内容
	Raw     string
	Usage   llm.ChatUsage
	Latency time.Duration
}

// Chunk 是流式响应的累积快照，Raw 随生成单调增长。
type Chunk struct {
	Raw   string
	Done  bool
	Usage *llm.ChatUsage
	Err   error
}

// Adapter 负责把 Schema 以模式对应的方式传达给模型，并取回原始输出。
// 新增厂商或模式只需实现该接口。
type Adapter interface {
	BuildRequest(s schema.Schema, r schema.Resolver, messages []types.Message, mode Mode) (*Request, error)
	Send(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// ProviderAdapter 是基于 llm.Provider 的 Adapter 实现。
type ProviderAdapter struct {
	provider    llm.Provider
	model       string
	toolName    string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// AdapterOption 配置 ProviderAdapter。
type AdapterOption func(*ProviderAdapter)

// WithModel 设置请求的模型名。
func WithModel(model string) AdapterOption {
	return func(a *ProviderAdapter) { a.model = model }
}

// WithToolName 覆盖工具模式下的函数名。
func WithToolName(name string) AdapterOption {
	return func(a *ProviderAdapter) {
		if name != "" {
			a.toolName = name
		}
	}
}

// WithMaxTokens 设置 max_tokens。
func WithMaxTokens(n int) AdapterOption {
	return func(a *ProviderAdapter) { a.maxTokens = n }
}

// WithTemperature 设置采样温度。
func WithTemperature(t float32) AdapterOption {
	return func(a *ProviderAdapter) { a.temperature = t }
}

// WithAdapterLogger 设置日志。
func WithAdapterLogger(logger *zap.Logger) AdapterOption {
	return func(a *ProviderAdapter) { a.logger = logger }
}

// NewProviderAdapter 创建基于 provider 的 Adapter。
func NewProviderAdapter(provider llm.Provider, opts ...AdapterOption) *ProviderAdapter {
	a := &ProviderAdapter{
		provider: provider,
		toolName: DefaultToolName,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.With(zap.String("component", "extract_adapter"), zap.String("provider", provider.Name()))
	return a
}

// Provider 返回底层 Provider。
func (a *ProviderAdapter) Provider() llm.Provider { return a.provider }

// BuildRequest 按模式嵌入 Schema。
func (a *ProviderAdapter) BuildRequest(s schema.Schema, r schema.Resolver, messages []types.Message, mode Mode) (*Request, error) {
	if mode == ModeTools && !a.provider.SupportsNativeFunctionCalling() {
		a.logger.Debug("provider lacks native function calling, falling back to json mode")
		mode = ModeJSON
	}

	chat := &llm.ChatRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}
	req := &Request{Mode: mode, Chat: chat}

	switch mode {
	case ModeTools:
		tool, err := schema.ToToolSchema(a.toolName, "", s, r)
		if err != nil {
			return nil, err
		}
		chat.Tools = []types.ToolSchema{tool}
		chat.ToolChoice = a.toolName
		chat.Messages = types.CloneMessages(messages)
		req.ToolName = a.toolName
	case ModeJSON, ModeMarkdownJSON:
		js, err := schema.Render(s, r)
		if err != nil {
			return nil, err
		}
		raw, err := js.ToJSONIndent()
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		prompt := jsonPrompt(string(raw))
		if mode == ModeJSON {
			chat.ResponseFormat = &llm.ResponseFormat{Type: llm.ResponseFormatJSONObject}
		} else {
			prompt = markdownPrompt(string(raw))
		}
		chat.Messages = append([]types.Message{types.NewSystemMessage(prompt)}, types.CloneMessages(messages)...)
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", mode)
	}
	return req, nil
}

func jsonPrompt(schemaJSON string) string {
	var sb strings.Builder
	sb.WriteString("Respond correctly with a JSON object. Response must follow this JSON Schema:\n")
	sb.WriteString(schemaJSON)
	sb.WriteString("\nRespond only with the JSON object, no additional text.")
	return sb.String()
}

func markdownPrompt(schemaJSON string) string {
	var sb strings.Builder
	sb.WriteString("Response must be a JSON object following this JSON Schema:\n")
	sb.WriteString("```json\n")
	sb.WriteString(schemaJSON)
	sb.WriteString("\n```\n")
	sb.WriteString("Respond correctly with a strict JSON object containing the extracted data within a ```json {} ``` code block.")
	return sb.String()
}

// Send 发起同步请求。
func (a *ProviderAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := a.provider.Completion(ctx, req.Chat)
	if err != nil {
		return nil, err
	}
	choice, err := llm.FirstChoice(resp)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "empty completion").
			WithCause(err).
			WithProvider(a.provider.Name())
	}
	return &Response{
		Raw:     rawOutput(choice.Message, req),
		Usage:   resp.Usage,
		Latency: time.Since(start),
	}, nil
}

// rawOutput 在工具模式下优先取匹配函数的参数；模型没有调用函数时退回到文本内容。
func rawOutput(msg types.Message, req *Request) string {
	if req.Mode == ModeTools {
		for _, tc := range msg.ToolCalls {
			if tc.Name == req.ToolName || tc.Name == "" {
				return string(tc.Arguments)
			}
		}
		if len(msg.ToolCalls) > 0 {
			return string(msg.ToolCalls[0].Arguments)
		}
	}
	return msg.Content
}

// Stream 发起流式请求。每个 Chunk 携带到目前为止的累积输出。
func (a *ProviderAdapter) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	in, err := a.provider.Stream(ctx, req.Chat)
	if err != nil {
		return nil, err
	}
	out := make(chan Chunk)
	go func() {
		defer close(out)
		var acc llm.StreamAccumulator
		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for chunk := range in {
			if chunk.Err != nil {
				send(Chunk{Err: chunk.Err})
				return
			}
			before := a.snapshot(&acc, req)
			acc.Add(chunk)
			if now := a.snapshot(&acc, req); now != before {
				if !send(Chunk{Raw: now}) {
					return
				}
			}
		}
		if err := ctx.Err(); err != nil {
			send(Chunk{Err: err})
			return
		}
		send(Chunk{Raw: a.snapshot(&acc, req), Done: true, Usage: acc.Usage()})
	}()
	return out, nil
}

func (a *ProviderAdapter) snapshot(acc *llm.StreamAccumulator, req *Request) string {
	if req.Mode == ModeTools && acc.ToolCallCount() > 0 {
		return acc.Arguments(0)
	}
	return acc.Content()
}
