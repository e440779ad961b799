package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/testutil"
	"github.com/BaSui01/extractflow/types"
)

func boolPtr(b bool) *bool { return &b }

func extractionRequest() *llm.ChatRequest {
	return &llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []types.Message{
			types.NewSystemMessage("Extract the person."),
			types.NewUserMessage("Jason is 28 years old"),
		},
		Tools: []types.ToolSchema{{
			Name:        "extract_data",
			Description: "Correctly extracted `Person` with all the required parameters with correct types",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`),
		}},
		ToolChoice: "extract_data",
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{ProviderName: "test", APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop()).
		WithHTTPClient(srv.Client())
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, nil)
	cfg := p.Config()
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "/v1/chat/completions", cfg.EndpointPath)
	assert.Equal(t, "/v1/models", cfg.ModelsEndpoint)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.True(t, p.SupportsNativeFunctionCalling())

	p = New(Config{SupportsTools: boolPtr(false)}, nil)
	assert.False(t, p.SupportsNativeFunctionCalling())
}

func TestCompletion_ToolCall(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id":"chatcmpl-1","model":"gpt-4o-mini","created":1700000000,
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"extract_data","arguments":"{\"name\":\"Jason\",\"age\":28}"}}]}}],
			"usage":{"prompt_tokens":50,"completion_tokens":10,"total_tokens":60}}`)
	})

	resp, err := p.Completion(context.Background(), extractionRequest())
	require.NoError(t, err)

	// 请求：工具定义使用 parameters，强制 tool_choice 为对象形式
	tools := got["tools"].([]any)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "extract_data", fn["name"])
	assert.Contains(t, fn, "parameters")
	assert.Equal(t, map[string]any{"type": "function", "function": map[string]any{"name": "extract_data"}}, got["tool_choice"])

	// 响应：参数字符串还原为原始 JSON
	choice, err := llm.FirstChoice(resp)
	require.NoError(t, err)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.JSONEq(t, `{"name":"Jason","age":28}`, string(choice.Message.ToolCalls[0].Arguments))
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, 60, resp.Usage.TotalTokens)
	assert.Equal(t, int64(1700000000), resp.CreatedAt.Unix())
}

func TestCompletion_JSONMode(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"id":"x","model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"name\":\"Jason\"}"}}]}`)
	})

	req := extractionRequest()
	req.Tools, req.ToolChoice = nil, "extract_data"
	req.ResponseFormat = &llm.ResponseFormat{Type: llm.ResponseFormatJSONObject}

	resp, err := p.Completion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jason"}`, resp.Choices[0].Message.Content)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	assert.NotContains(t, got, "tool_choice", "tool_choice without tools is dropped")
}

func TestCompletion_HTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, types.ErrUpstreamTimeout, true},
		{http.StatusServiceUnavailable, types.ErrUpstreamError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"test_error"}}`)
			})

			_, err := p.Completion(context.Background(), extractionRequest())
			require.Error(t, err)
			var e *types.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, "nope (type: test_error)", e.Message)
			assert.Equal(t, tt.status, e.HTTPStatus)
		})
	}
}

func TestStream_ToolCallDeltas(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"extract_data","arguments":""}}]}}]}`,
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"name\":\"Ja"}}]}}]}`,
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"son\"}"}}]}}]}`,
			`{"id":"s1","model":"m","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
			`{"id":"s1","model":"m","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.Stream(context.Background(), extractionRequest())
	require.NoError(t, err)

	var acc llm.StreamAccumulator
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		acc.Add(chunk)
	}
	msg := acc.Message()
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "extract_data", msg.ToolCalls[0].Name)
	assert.Equal(t, `{"name":"Jason"}`, string(msg.ToolCalls[0].Arguments))
	assert.Equal(t, "tool_calls", acc.FinishReason())
	require.NotNil(t, acc.Usage())
	assert.Equal(t, 8, acc.Usage().TotalTokens)
}

func TestStreamSSE_MalformedChunk(t *testing.T) {
	body := io.NopCloser(strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"a\\\"\"}}]}\n\ndata: {broken\n\n"))
	ch := StreamSSE(context.Background(), body, "test")

	chunks := testutil.CollectStreamChunks(ch)
	require.Len(t, chunks, 2)
	assert.Equal(t, `{"a"`, chunks[0].Delta.Content)
	require.NotNil(t, chunks[1].Err)
	assert.True(t, chunks[1].Err.Retryable)
}

func TestHealthCheck(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[]}`)
	})
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
