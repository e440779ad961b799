package llm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/testutil"
	"github.com/BaSui01/extractflow/testutil/fixtures"
	"github.com/BaSui01/extractflow/types"
)

func TestStreamAccumulator_TextChunks(t *testing.T) {
	chunks := fixtures.SplitChunks(fixtures.JasonJSON, 4)
	require.Greater(t, len(chunks), 1)

	var acc llm.StreamAccumulator
	for chunk := range testutil.SendChunksToChannel(chunks) {
		acc.Add(chunk)
	}
	assert.Equal(t, fixtures.JasonJSON, acc.Content())
	assert.Equal(t, "stop", acc.FinishReason())
	assert.Zero(t, acc.ToolCallCount())
	assert.Nil(t, acc.Usage())
}

func TestStreamAccumulator_ToolCallFragments(t *testing.T) {
	first := fixtures.TextChunk("", "")
	first.Delta.ToolCalls = []types.ToolCall{{ID: "call_1", Name: "extract_data", Arguments: json.RawMessage(`{"name":`)}}
	second := fixtures.TextChunk("", "tool_calls")
	second.Delta.ToolCalls = []types.ToolCall{{Arguments: json.RawMessage(`"Jason"}`)}}
	usage := fixtures.SmallUsage()
	second.Usage = &usage

	var acc llm.StreamAccumulator
	acc.Add(first)
	// 中途快照只包含已到达的片段
	assert.Equal(t, `{"name":`, acc.Arguments(0))
	acc.Add(second)

	msg := acc.Message()
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "extract_data", msg.ToolCalls[0].Name)
	assert.Equal(t, `{"name":"Jason"}`, string(msg.ToolCalls[0].Arguments))
	assert.Equal(t, "tool_calls", acc.FinishReason())
	assert.Equal(t, 30, acc.Usage().TotalTokens)
	assert.Empty(t, acc.Arguments(5))
}
