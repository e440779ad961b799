package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/types"
)

func request() *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:      "mock-model",
		Messages:   []types.Message{types.NewUserMessage("hi")},
		ToolChoice: "extract_data",
	}
}

func TestMockProvider_ScriptedReplies(t *testing.T) {
	m := NewMockProvider().WithContent("first").WithToolArguments(`{"a":1}`)
	ctx := context.Background()

	resp, err := m.Completion(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Choices[0].Message.Content)

	resp, err = m.Completion(ctx, request())
	require.NoError(t, err)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "extract_data", resp.Choices[0].Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"a":1}`, string(resp.Choices[0].Message.ToolCalls[0].Arguments))

	// 脚本用完后重复最后一个
	resp, err = m.Completion(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockProvider_Error(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockProvider().WithError(boom)

	_, err := m.Completion(context.Background(), request())
	assert.ErrorIs(t, err, boom)
	_, err = m.Stream(context.Background(), request())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, boom, m.Calls()[0].Error)
}

func TestMockProvider_StreamToolChunks(t *testing.T) {
	m := NewMockProvider().WithToolStreamChunks(`{"name":`, `"Jason"}`)

	ch, err := m.Stream(context.Background(), request())
	require.NoError(t, err)

	var acc llm.StreamAccumulator
	for chunk := range ch {
		acc.Add(chunk)
	}
	require.Equal(t, 1, acc.ToolCallCount())
	assert.Equal(t, `{"name":"Jason"}`, acc.Arguments(0))
	assert.Equal(t, "extract_data", acc.Message().ToolCalls[0].Name)
	assert.Equal(t, "stop", acc.FinishReason())
}

func TestMockProvider_RecordsRequestCopies(t *testing.T) {
	m := NewMockProvider()
	req := request()
	_, err := m.Completion(context.Background(), req)
	require.NoError(t, err)

	req.Messages[0].Content = "mutated"
	assert.Equal(t, "hi", m.LastRequest().Messages[0].Content)

	m.Reset()
	assert.Nil(t, m.LastRequest())
}
