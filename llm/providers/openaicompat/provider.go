package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/internal/tlsutil"
	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/types"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "deepseek").
	ProviderName string

	// APIKey is sent as a bearer token. Empty means no Authorization header (local servers).
	APIKey string

	// BaseURL is the base URL for the provider's API (e.g., "https://api.openai.com").
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is used by HealthCheck. Defaults to "/v1/models".
	ModelsEndpoint string

	// SupportsTools indicates whether this provider supports native function calling.
	// Defaults to true if not set.
	SupportsTools *bool

	// Headers are added to every request.
	Headers map[string]string
}

// Provider talks to an OpenAI Chat Completions compatible endpoint.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", cfg.ProviderName)),
	}
}

// WithHTTPClient replaces the HTTP client (tests, custom transports).
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	p.client = c
	return p
}

// Config returns the effective configuration.
func (p *Provider) Config() Config { return p.cfg }

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

// SupportsNativeFunctionCalling returns whether this provider supports tool calling.
func (p *Provider) SupportsNativeFunctionCalling() bool {
	if p.cfg.SupportsTools != nil {
		return *p.cfg.SupportsTools
	}
	return true
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) setHeaders(req *http.Request) {
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
}

func (p *Provider) transportError(err error) *types.Error {
	return types.NewError(types.ErrUpstreamError, "request failed").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(p.Name())
}

// HealthCheck verifies the provider is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, p.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, mapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *Provider) buildBody(req *llm.ChatRequest, stream bool) wireRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	body := wireRequest{
		Model:          model,
		Messages:       toWireMessages(req.Messages),
		Tools:          toWireTools(req.Tools),
		ToolChoice:     toWireToolChoice(req.ToolChoice),
		ResponseFormat: toWireResponseFormat(req.ResponseFormat),
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		Stream:         stream,
	}
	if len(body.Tools) == 0 {
		body.ToolChoice = nil
	}
	if stream {
		body.StreamOptions = &wireStreamOptions{IncludeUsage: true}
	}
	return body
}

func (p *Provider) post(ctx context.Context, req *llm.ChatRequest, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(p.buildBody(req, stream))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to marshal request").WithCause(err).WithProvider(p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(httpReq)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	p.logger.Debug("sending chat request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", stream),
		zap.String("trace_id", req.TraceID),
	)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrUpstreamTimeout, "request cancelled").
				WithCause(err).WithRetryable(false).WithProvider(p.Name())
		}
		return nil, p.transportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.Name())
	}
	return resp, nil
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var w wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, p.transportError(fmt.Errorf("decode response: %w", err))
	}

	result := fromWireResponse(w, p.Name())
	if w.Created != 0 {
		result.CreatedAt = time.Unix(w.Created, 0)
	}
	return result, nil
}

// Stream performs a streaming chat completion via SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return StreamSSE(ctx, resp.Body, p.Name()), nil
}

// StreamSSE parses an SSE stream from an OpenAI-compatible API and returns a channel of StreamChunks.
// The channel is closed after "[DONE]", EOF, or the first error chunk.
func StreamSSE(ctx context.Context, body io.ReadCloser, providerName string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		send := func(chunk llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}
		fail := func(err error) {
			send(llm.StreamChunk{Provider: providerName, Err: types.NewError(types.ErrUpstreamError, "stream interrupted").
				WithCause(err).WithRetryable(true).WithProvider(providerName)})
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var w wireResponse
			if err := json.Unmarshal([]byte(data), &w); err != nil {
				fail(fmt.Errorf("decode chunk: %w", err))
				return
			}

			if len(w.Choices) == 0 && w.Usage != nil {
				if !send(llm.StreamChunk{ID: w.ID, Provider: providerName, Model: w.Model, Usage: &llm.ChatUsage{
					PromptTokens:     w.Usage.PromptTokens,
					CompletionTokens: w.Usage.CompletionTokens,
					TotalTokens:      w.Usage.TotalTokens,
				}}) {
					return
				}
				continue
			}

			for _, choice := range w.Choices {
				chunk := llm.StreamChunk{
					ID:           w.ID,
					Provider:     providerName,
					Model:        w.Model,
					Index:        choice.Index,
					FinishReason: choice.FinishReason,
					Delta:        types.Message{Role: types.RoleAssistant},
				}
				if choice.Delta != nil {
					delta := fromWireMessage(*choice.Delta)
					chunk.Delta.Content = delta.Content
					chunk.Delta.ToolCalls = delta.ToolCalls
				}
				if !send(chunk) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			fail(err)
		}
	}()
	return ch
}
