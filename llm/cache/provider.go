package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/llm"
)

// Provider 为 llm.Provider 增加补全缓存。
type Provider struct {
	llm.Provider
	cache  *MultiLevelCache
	logger *zap.Logger
}

// NewProvider 包装 inner，使其 Completion 结果经过 c 缓存。
func NewProvider(inner llm.Provider, c *MultiLevelCache, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Provider: inner,
		cache:    c,
		logger:   logger.With(zap.String("component", "caching_provider")),
	}
}

// Completion 命中时直接返回缓存响应，否则调用下游并写回缓存。
// 缓存读写失败只记录日志，不影响调用结果。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if !p.cache.IsCacheable(req) {
		return p.Provider.Completion(ctx, req)
	}

	key := Key(req)
	entry, err := p.cache.Get(ctx, key)
	if err == nil && entry.Response != nil {
		return cloneResponse(entry.Response), nil
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		p.logger.Warn("cache lookup failed", zap.Error(err))
	}

	resp, err := p.Provider.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, &Entry{
		Response:    cloneResponse(resp),
		TokensSaved: resp.Usage.TotalTokens,
	}); err != nil {
		p.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

func cloneResponse(resp *llm.ChatResponse) *llm.ChatResponse {
	out := *resp
	out.Choices = make([]llm.ChatChoice, len(resp.Choices))
	for i, c := range resp.Choices {
		if len(c.Message.ToolCalls) > 0 {
			c.Message.ToolCalls = append(c.Message.ToolCalls[:0:0], c.Message.ToolCalls...)
		}
		out.Choices[i] = c
	}
	return &out
}
