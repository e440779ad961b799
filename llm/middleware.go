package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/extractflow/llm/retry"
	"github.com/BaSui01/extractflow/types"
)

// ProviderMiddleware 包装一个 Provider 并返回增强后的 Provider。
type ProviderMiddleware func(Provider) Provider

// Wrap 按顺序应用中间件，第一个中间件位于最外层。
func Wrap(p Provider, mws ...ProviderMiddleware) Provider {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}

// =============================================================================
// 限流
// =============================================================================

// RateLimitedProvider 在每次请求前等待令牌桶。
type RateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider 创建限流 Provider；rps <= 0 表示不限流。
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{Provider: inner, limiter: rate.NewLimiter(limit, burst)}
}

// WithRateLimit 返回限流中间件。
func WithRateLimit(rps float64, burst int) ProviderMiddleware {
	return func(p Provider) Provider { return NewRateLimitedProvider(p, rps, burst) }
}

func (p *RateLimitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return types.NewError(types.ErrRateLimited, "rate limiter wait failed").
			WithCause(err).
			WithProvider(p.Name())
	}
	return nil
}

func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Completion(ctx, req)
}

func (p *RateLimitedProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Stream(ctx, req)
}

// =============================================================================
// 传输层重试
// =============================================================================

// RetryingProvider 对可重试的传输错误做指数退避重试。
// 流式请求只重试建立连接阶段，已开始输出的流不会重放。
type RetryingProvider struct {
	Provider
	retryer *retry.Backoff
	logger  *zap.Logger
}

// NewRetryingProvider 创建重试 Provider。
func NewRetryingProvider(inner Provider, policy *retry.RetryPolicy, logger *zap.Logger) *RetryingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "retrying_provider"), zap.String("provider", inner.Name()))
	return &RetryingProvider{
		Provider: inner,
		retryer:  retry.NewBackoff(policy, logger),
		logger:   logger,
	}
}

// WithRetry 返回重试中间件。
func WithRetry(policy *retry.RetryPolicy, logger *zap.Logger) ProviderMiddleware {
	return func(p Provider) Provider { return NewRetryingProvider(p, policy, logger) }
}

func (p *RetryingProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := retry.Do(ctx, p.retryer, func(ctx context.Context) (*ChatResponse, error) {
		return p.Provider.Completion(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", p.Name(), err)
	}
	return resp, nil
}

func (p *RetryingProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	ch, err := retry.Do(ctx, p.retryer, func(ctx context.Context) (<-chan StreamChunk, error) {
		return p.Provider.Stream(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", p.Name(), err)
	}
	return ch, nil
}
