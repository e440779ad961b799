// Package fixtures 提供抽取测试使用的预置 LLM 响应数据。
package fixtures

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/types"
)

// 常用的抽取输出样例
const (
	JasonJSON        = `{"name":"Jason","age":28}`
	NegativeAgeJSON  = `{"name":"JX","age":-28}`
	MissingAgeJSON   = `{"name":"Jason"}`
	JasonInProse     = "Sure! Here is the data: " + JasonJSON + " Let me know if you need more."
	JasonMarkdown    = "```json\n" + JasonJSON + "\n```"
	NoJSONInResponse = "I could not find any person in the text."
)

// SimpleResponse 返回文本内容响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o-mini",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message:      types.Message{Role: types.RoleAssistant, Content: content},
			},
		},
		Usage:     SmallUsage(),
		CreatedAt: time.Now(),
	}
}

// ToolCallResponse 返回一次工具调用，arguments 为原始 JSON 文本。
func ToolCallResponse(toolName, arguments string) *llm.ChatResponse {
	resp := SimpleResponse("")
	resp.Choices[0].FinishReason = "tool_calls"
	resp.Choices[0].Message.ToolCalls = []types.ToolCall{{
		ID:        "call_001",
		Name:      toolName,
		Arguments: json.RawMessage(arguments),
	}}
	return resp
}

// TextChunk 创建文本增量 chunk
func TextChunk(content, finishReason string) llm.StreamChunk {
	return llm.StreamChunk{
		ID:           "chunk-001",
		Provider:     "mock",
		Model:        "gpt-4o-mini",
		Delta:        types.Message{Role: types.RoleAssistant, Content: content},
		FinishReason: finishReason,
	}
}

// SplitChunks 把 content 按 size 个字节切分为文本 chunk，最后一个带 finish_reason。
func SplitChunks(content string, size int) []llm.StreamChunk {
	if size < 1 {
		size = 1
	}
	var chunks []llm.StreamChunk
	for start := 0; start < len(content); start += size {
		end := min(start+size, len(content))
		finish := ""
		if end == len(content) {
			finish = "stop"
		}
		chunks = append(chunks, TextChunk(content[start:end], finish))
	}
	return chunks
}

// SmallUsage 返回小量 token 使用
func SmallUsage() llm.ChatUsage {
	return llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
}
