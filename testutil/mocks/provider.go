// Package mocks 提供 LLM Provider 的测试模拟实现。
//
// MockProvider 按脚本依次应答：第 N 次调用使用第 N 个 Reply，脚本用完后重复最后一个。
// 支持文本内容、工具调用参数、流式分块与错误注入。
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/types"
)

// Reply 描述一次脚本化应答。
type Reply struct {
	// Content 是 assistant 文本内容
	Content string
	// ToolArguments 非空时以工具调用形式返回，工具名取请求的 ToolChoice
	ToolArguments string
	// Chunks 为流式分块；为空时 Stream 把 Content/ToolArguments 作为单个 chunk 发送
	Chunks []string
	// ToolChunks 表示 Chunks 是工具调用参数的增量
	ToolChunks bool
	// Err 非空时调用直接返回该错误
	Err error
}

// Call 记录单次调用
type Call struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Stream   bool
	Error    error
}

// MockProvider 是 llm.Provider 的脚本化模拟实现。
type MockProvider struct {
	mu sync.Mutex

	replies          []Reply
	nativeTools      bool
	delay            time.Duration
	promptTokens     int
	completionTokens int

	calls []Call
}

// NewMockProvider 创建新的 MockProvider，默认支持原生工具调用。
func NewMockProvider() *MockProvider {
	return &MockProvider{
		nativeTools:      true,
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithReplies 追加脚本应答
func (m *MockProvider) WithReplies(replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
	return m
}

// WithContent 追加若干文本应答
func (m *MockProvider) WithContent(contents ...string) *MockProvider {
	for _, c := range contents {
		m.WithReplies(Reply{Content: c})
	}
	return m
}

// WithToolArguments 追加若干工具调用应答
func (m *MockProvider) WithToolArguments(args ...string) *MockProvider {
	for _, a := range args {
		m.WithReplies(Reply{ToolArguments: a})
	}
	return m
}

// WithStreamChunks 追加一个流式文本应答
func (m *MockProvider) WithStreamChunks(chunks ...string) *MockProvider {
	return m.WithReplies(Reply{Chunks: chunks})
}

// WithToolStreamChunks 追加一个流式工具调用应答
func (m *MockProvider) WithToolStreamChunks(chunks ...string) *MockProvider {
	return m.WithReplies(Reply{Chunks: chunks, ToolChunks: true})
}

// WithError 追加一个错误应答
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.WithReplies(Reply{Err: err})
}

// WithNativeFunctionCalling 设置 SupportsNativeFunctionCalling 的返回值
func (m *MockProvider) WithNativeFunctionCalling(ok bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeTools = ok
	return m
}

// WithDelay 设置每次调用的响应延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// --- Provider 接口实现 ---

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) SupportsNativeFunctionCalling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nativeTools
}

func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// next 取出本次调用的应答并记录请求；调用方需持有锁。
func (m *MockProvider) next(req *llm.ChatRequest, stream bool) (Reply, int) {
	reply := Reply{Content: "Mock response"}
	if n := len(m.replies); n > 0 {
		reply = m.replies[min(len(m.calls), n-1)]
	}
	m.calls = append(m.calls, Call{Request: llm.CloneRequest(req), Stream: stream, Error: reply.Err})
	return reply, len(m.calls) - 1
}

func (m *MockProvider) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Completion 返回下一个脚本应答
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	reply, idx := m.next(req, false)
	delay := m.delay
	usage := llm.ChatUsage{
		PromptTokens:     m.promptTokens,
		CompletionTokens: m.completionTokens,
		TotalTokens:      m.promptTokens + m.completionTokens,
	}
	m.mu.Unlock()

	if err := m.sleep(ctx, delay); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	msg := types.Message{Role: types.RoleAssistant, Content: reply.Content}
	finish := "stop"
	if reply.ToolArguments != "" {
		msg.ToolCalls = []types.ToolCall{{
			ID:        fmt.Sprintf("call_%d", idx+1),
			Name:      req.ToolChoice,
			Arguments: json.RawMessage(reply.ToolArguments),
		}}
		finish = "tool_calls"
	}

	resp := &llm.ChatResponse{
		ID:       fmt.Sprintf("mock-%d", idx+1),
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: finish,
			Message:      msg,
		}},
		Usage:     usage,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.calls[idx].Response = resp
	m.mu.Unlock()
	return resp, nil
}

// Stream 以 chunk 形式返回下一个脚本应答
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	reply, idx := m.next(req, true)
	delay := m.delay
	m.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}

	tool := reply.ToolArguments != "" || reply.ToolChunks
	parts := reply.Chunks
	if len(parts) == 0 {
		if tool {
			parts = []string{reply.ToolArguments}
		} else {
			parts = []string{reply.Content}
		}
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, part := range parts {
			if err := m.sleep(ctx, delay); err != nil {
				return
			}
			chunk := llm.StreamChunk{
				ID:       fmt.Sprintf("mock-%d", idx+1),
				Provider: "mock",
				Model:    req.Model,
				Index:    i,
				Delta:    types.Message{Role: types.RoleAssistant},
			}
			if tool {
				tc := types.ToolCall{Arguments: json.RawMessage(part)}
				if i == 0 {
					tc.ID = fmt.Sprintf("call_%d", idx+1)
					tc.Name = req.ToolChoice
				}
				chunk.Delta.ToolCalls = []types.ToolCall{tc}
			} else {
				chunk.Delta.Content = part
			}
			if i == len(parts)-1 {
				chunk.FinishReason = "stop"
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}()
	return ch, nil
}

// --- 查询方法 ---

// Calls 返回全部调用记录
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次调用的请求副本
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录与脚本
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.replies = nil
}
