package tokenizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/extractflow/types"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator("any", 0)

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short ascii rounds up to one", "hi", 1},
		{"ascii", "Jason is 28 years old", 5},
		{"cjk", "杰森二十八岁", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountTokens(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 4096, e.MaxTokens())
	assert.Equal(t, "estimator", e.Name())
}

func TestEstimator_CountMessagesIncludesToolCalls(t *testing.T) {
	e := NewEstimator("any", 0)
	plain := []types.Message{types.NewUserMessage("Jason is 28 years old")}
	withCall := append(plain, types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{{
		Name: "extract_data", Arguments: json.RawMessage(`{"name":"Jason","age":28}`),
	}}))

	a, err := e.CountMessages(plain)
	require.NoError(t, err)
	b, err := e.CountMessages(withCall)
	require.NoError(t, err)

	assert.Equal(t, 5+messageOverhead+conversationOverhead, a)
	assert.Greater(t, b, a+messageOverhead)
}

func TestCountPrompt_AddsTools(t *testing.T) {
	e := NewEstimator("any", 0)
	msgs := []types.Message{types.NewUserMessage("Jason is 28 years old")}
	tools := []types.ToolSchema{{Name: "extract_data", Parameters: json.RawMessage(`{"type":"object"}`)}}

	base, err := CountPrompt(e, msgs, nil)
	require.NoError(t, err)
	withTools, err := CountPrompt(e, msgs, tools)
	require.NoError(t, err)
	assert.Greater(t, withTools, base)
}

func TestRegistry_LongestPrefix(t *testing.T) {
	short := NewEstimator("acme", 1000)
	long := NewEstimator("acme-large", 2000)
	Register("acme", short)
	Register("acme-large", long)

	got, err := Get("acme-large-2025")
	require.NoError(t, err)
	assert.Same(t, long, got)

	got, err = Get("acme-small")
	require.NoError(t, err)
	assert.Same(t, short, got)

	_, err = Get("unregistered-model")
	assert.Error(t, err)
	assert.Equal(t, "estimator", ForModel("unregistered-model").Name())
}

func TestNewTiktoken_ResolvesEncoding(t *testing.T) {
	// 只检查配置解析，不触发编码数据加载
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktoken("gpt-4o-mini-2024-07-18").Name())
	assert.Equal(t, 8192, NewTiktoken("gpt-4").MaxTokens())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktoken("some-local-model").Name())
}
