package llm

import (
	"fmt"
	"strings"

	"github.com/BaSui01/extractflow/types"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// StreamAccumulator 把流式增量拼成完整的 assistant 消息。
// 工具调用按出现顺序合并：带 ID 或 Name 的片段开启新调用，其余片段追加到最后一个调用。
type StreamAccumulator struct {
	content strings.Builder
	calls   []types.ToolCall
	args    []*strings.Builder
	usage   *ChatUsage
	finish  string
}

// Add 合并一个 chunk。
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	a.content.WriteString(chunk.Delta.Content)
	for _, tc := range chunk.Delta.ToolCalls {
		if tc.ID != "" || tc.Name != "" || len(a.calls) == 0 {
			a.calls = append(a.calls, types.ToolCall{ID: tc.ID, Name: tc.Name})
			a.args = append(a.args, &strings.Builder{})
		}
		last := len(a.calls) - 1
		if a.calls[last].Name == "" {
			a.calls[last].Name = tc.Name
		}
		a.args[last].Write(tc.Arguments)
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
	if chunk.FinishReason != "" {
		a.finish = chunk.FinishReason
	}
}

// Content 返回目前已拼接的文本内容。
func (a *StreamAccumulator) Content() string { return a.content.String() }

// Arguments 返回第 i 个工具调用目前已拼接的参数文本。
func (a *StreamAccumulator) Arguments(i int) string {
	if i < 0 || i >= len(a.args) {
		return ""
	}
	return a.args[i].String()
}

// ToolCallCount 返回已出现的工具调用数。
func (a *StreamAccumulator) ToolCallCount() int { return len(a.calls) }

// Message 返回拼接完成的 assistant 消息。
func (a *StreamAccumulator) Message() types.Message {
	msg := types.NewAssistantMessage(a.content.String())
	if len(a.calls) > 0 {
		calls := make([]types.ToolCall, len(a.calls))
		for i, c := range a.calls {
			c.Arguments = []byte(a.args[i].String())
			calls[i] = c
		}
		msg = msg.WithToolCalls(calls)
	}
	return msg
}

// Usage 返回最终 chunk 携带的 usage（可能为 nil）。
func (a *StreamAccumulator) Usage() *ChatUsage { return a.usage }

// FinishReason 返回最后一个非空 finish_reason。
func (a *StreamAccumulator) FinishReason() string { return a.finish }
