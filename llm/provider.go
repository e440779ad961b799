package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/extractflow/types"
)

// ResponseFormatType 控制模型输出格式（仅 JSON 模式使用）。
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// ResponseFormat 对应 OpenAI 兼容接口的 response_format 字段。
type ResponseFormat struct {
	Type   ResponseFormatType `json:"type"`
	Name   string             `json:"name,omitempty"`   // 仅 json_schema
	Schema json.RawMessage    `json:"schema,omitempty"` // 仅 json_schema
}

// ChatRequest 是发往 Provider 的统一请求。
type ChatRequest struct {
	TraceID        string             `json:"trace_id"`
	Model          string             `json:"model"`
	Messages       []types.Message    `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    float32            `json:"temperature,omitempty"`
	Tools          []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice     string             `json:"tool_choice,omitempty"` // auto/none/<tool name>
	ResponseFormat *ResponseFormat    `json:"response_format,omitempty"`
	Timeout        time.Duration      `json:"timeout,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Message      types.Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// StreamChunk 是流式响应的一个增量。Delta.Content 与 Delta.ToolCalls[i].Arguments
// 均为增量片段，由调用方负责拼接。
type StreamChunk struct {
	ID           string        `json:"id,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Index        int           `json:"index,omitempty"`
	Delta        types.Message `json:"delta"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        *ChatUsage    `json:"usage,omitempty"` // 最终 chunk 可带 usage
	Err          *types.Error  `json:"error,omitempty"`
}

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider 定义了统一的 LLM 适配接口。
// 抽取流程只依赖 Completion 与 Stream；厂商差异（鉴权、协议、流格式）留在实现内部。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream 发起流式聊天请求，返回增量响应通道；通道在结束或出错后关闭
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck 执行轻量级健康检查
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回 Provider 的唯一标识
	Name() string

	// SupportsNativeFunctionCalling 返回是否支持原生 Function Calling。
	// 返回 false 时工具模式的请求应改用 JSON 模式。
	SupportsNativeFunctionCalling() bool
}

// CloneRequest 返回 req 的浅拷贝，Messages/Tools/Metadata 不与原请求共享。
func CloneRequest(req *ChatRequest) *ChatRequest {
	if req == nil {
		return nil
	}
	out := *req
	out.Messages = types.CloneMessages(req.Messages)
	if req.Tools != nil {
		out.Tools = append([]types.ToolSchema(nil), req.Tools...)
	}
	if req.Metadata != nil {
		out.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			out.Metadata[k] = v
		}
	}
	if req.ResponseFormat != nil {
		rf := *req.ResponseFormat
		out.ResponseFormat = &rf
	}
	return &out
}
