package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personShape = `name: Person
description: A person mentioned in the text
fields:
  - name: name
    type: string
  - name: age
    type: int
    minimum: 0
`

// fakeLLM 是 OpenAI 兼容接口的测试替身，按顺序返回工具调用参数，最后一个重复使用。
type fakeLLM struct {
	t       *testing.T
	args    []string
	calls   atomic.Int32
	mu      sync.Mutex
	bodies  []map[string]any
	failure int
}

func (f *fakeLLM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.calls.Add(1))
	var body map[string]any
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body)) {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	if f.failure != 0 {
		http.Error(w, `{"error":{"message":"upstream broken"}}`, f.failure)
		return
	}

	idx := n - 1
	if idx >= len(f.args) {
		idx = len(f.args) - 1
	}
	resp := map[string]any{
		"id":    fmt.Sprintf("chatcmpl-%d", n),
		"model": "mock-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":   fmt.Sprintf("call_%d", n),
					"type": "function",
					"function": map[string]any{
						"name":      "extract_data",
						"arguments": f.args[idx],
					},
				}},
			},
		}},
		"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func (f *fakeLLM) body(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[i]
}

type fixture struct {
	dir     string
	config  string
	shape   string
	metrics string
}

func newFixture(t *testing.T, baseURL string, extra string) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		dir:     dir,
		config:  filepath.Join(dir, "extractflow.yaml"),
		shape:   filepath.Join(dir, "person.yaml"),
		metrics: filepath.Join(dir, "metrics.prom"),
	}
	cfg := fmt.Sprintf(`extraction:
  max_attempts: 1
  mode: tools
provider:
  name: fake
  base_url: %s
  model: mock-model
  max_retries: 0
log:
  level: error
  format: json
  output_paths: [stderr]
metrics:
  enabled: true
  namespace: cli_test
  output_path: %s
%s`, baseURL, fx.metrics, extra)
	require.NoError(t, os.WriteFile(fx.config, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(fx.shape, []byte(personShape), 0o600))
	return fx
}

func (fx fixture) input(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(fx.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

// =============================================================================
// 🧪 命令测试
// =============================================================================

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"version"}, nil, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "ExtractFlow dev")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"serve"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: serve")
	assert.Equal(t, 2, run(nil, nil, &stdout, &stderr))
}

func TestRun_Schema(t *testing.T) {
	fx := newFixture(t, "http://unused", "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"schema", "--shape", fx.shape}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var js map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &js))
	props, ok := js["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "age")

	stdout.Reset()
	code = run([]string{"schema", "--shape", fx.shape, "--tool", "--tool-name", "person"}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"person"`)
}

func TestRun_SchemaRequiresShape(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"schema"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--shape is required")
}

func TestRun_Extract(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{`{"name":"Jason","age":25}`}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape},
		strings.NewReader("Jason is 25 years old"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "Jason", out["name"])
	assert.EqualValues(t, 25, out["age"])
	assert.EqualValues(t, 1, llm.calls.Load())

	// 工具模式请求强制调用 extract_data
	body := llm.body(0)
	assert.Equal(t, "mock-model", body["model"])
	assert.NotEmpty(t, body["tools"])

	data, err := os.ReadFile(fx.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cli_test_extractions_total{mode="tools",status="succeeded"} 1`)
}

func TestRun_ExtractSelfCorrects(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{
		`{"name":"Jason","age":-5}`,
		`{"name":"Jason","age":25}`,
	}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")
	input := fx.input(t, "bio.txt", "Jason is 25 years old")

	var stdout, stderr bytes.Buffer
	code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape, "--input", input, "--max-attempts", "2"},
		nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.EqualValues(t, 2, llm.calls.Load())

	msgs, ok := llm.body(1)["messages"].([]any)
	require.True(t, ok)
	last, ok := msgs[len(msgs)-1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user", last["role"])
	assert.Contains(t, last["content"], "JSON generated incorrectly, fix following errors:")
	assert.Contains(t, last["content"], "less than minimum")
}

func TestRun_ExtractExhausted(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{`{"name":"Jason","age":-5}`}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape, "--max-attempts", "2"},
		strings.NewReader("Jason is 25"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "extraction failed after 2 attempt(s)")
	assert.Contains(t, stderr.String(), "age: value -5 is less than minimum 0")
	assert.EqualValues(t, 2, llm.calls.Load())
}

func TestRun_ExtractUpstreamError(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{`{}`}, failure: http.StatusInternalServerError}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape, "--max-attempts", "3"},
		strings.NewReader("Jason is 25"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	// 传输层错误不触发自我纠正
	assert.EqualValues(t, 1, llm.calls.Load())
}

func TestRun_ExtractEmptyInput(t *testing.T) {
	fx := newFixture(t, "http://unused", "")
	var stdout, stderr bytes.Buffer
	code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape}, strings.NewReader("   "), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "input is empty")
}

func TestRun_ExtractRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	llm := &fakeLLM{t: t, args: []string{`{"name":"Jason","age":25}`}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, fmt.Sprintf(`cache:
  enabled: true
  local_max_size: 10
  redis:
    enabled: true
    addr: %s
`, mr.Addr()))

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		code := run([]string{"extract", "--config", fx.config, "--shape", fx.shape},
			strings.NewReader("Jason is 25 years old"), &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		assert.Contains(t, stdout.String(), "Jason")
	}

	// 第二次运行由 Redis 命中，不再请求上游
	assert.EqualValues(t, 1, llm.calls.Load())
	assert.NotEmpty(t, mr.Keys())

	data, err := os.ReadFile(fx.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cli_test_cache_hits_total{level="redis"} 1`)
}

func TestRun_Batch(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{`{"name":"Jason","age":25}`}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")
	a := fx.input(t, "a.txt", "Jason is 25")
	b := fx.input(t, "b.txt", "Jason turned 25")

	var stdout, stderr bytes.Buffer
	code := run([]string{"batch", "--config", fx.config, "--shape", fx.shape, "--concurrency", "2", a, b},
		nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	for i, want := range []string{a, b} {
		var line batchLine
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &line))
		assert.Equal(t, want, line.Input)
		assert.Empty(t, line.Error)
		assert.Equal(t, 1, line.Attempts)
		assert.JSONEq(t, `{"name":"Jason","age":25}`, string(line.Value))
	}
}

func TestRun_BatchReportsFailures(t *testing.T) {
	llm := &fakeLLM{t: t, args: []string{`{"name":"Jason"}`}}
	srv := httptest.NewServer(llm)
	defer srv.Close()
	fx := newFixture(t, srv.URL, "")
	a := fx.input(t, "a.txt", "Jason")

	var stdout, stderr bytes.Buffer
	code := run([]string{"batch", "--config", fx.config, "--shape", fx.shape, a}, nil, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var line batchLine
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &line))
	assert.Equal(t, "RETRIES_EXHAUSTED", line.Code)
	assert.Contains(t, stderr.String(), "1 of 1 extractions failed")
}
