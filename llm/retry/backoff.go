package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/types"
)

// RetryPolicy 定义传输层重试策略。
// 只处理网络/上游的瞬时失败；模型输出不合法的自我纠正由 extract 包负责。
type RetryPolicy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟倍增因子（指数退避）
	Jitter       bool          // 是否添加 ±25% 随机抖动

	// ShouldRetry 判断错误是否可重试；为 nil 时使用 IsRetryableError
	ShouldRetry func(err error) bool
	// OnRetry 在每次等待前调用
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy 返回适用于大部分 LLM API 调用的默认策略。
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 提供统一的重试能力。
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error
}

// Backoff 基于指数退避的重试器。
type Backoff struct {
	policy RetryPolicy
	logger *zap.Logger
}

// NewBackoff 创建指数退避重试器，policy 为 nil 时使用默认策略。
func NewBackoff(policy *RetryPolicy, logger *zap.Logger) *Backoff {
	p := DefaultRetryPolicy()
	if policy != nil {
		p = policy
	}
	cp := *p
	if cp.MaxRetries < 0 {
		cp.MaxRetries = 0
	}
	if cp.InitialDelay <= 0 {
		cp.InitialDelay = 500 * time.Millisecond
	}
	if cp.MaxDelay <= 0 {
		cp.MaxDelay = 10 * time.Second
	}
	if cp.MaxDelay < cp.InitialDelay {
		cp.MaxDelay = cp.InitialDelay
	}
	if cp.Multiplier < 1.0 {
		cp.Multiplier = 2.0
	}
	if cp.ShouldRetry == nil {
		cp.ShouldRetry = IsRetryableError
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backoff{policy: cp, logger: logger.With(zap.String("component", "retry"))}
}

// Policy 返回生效的策略副本。
func (r *Backoff) Policy() RetryPolicy { return r.policy }

// Do 实现 Retryer。
func (r *Backoff) Do(ctx context.Context, fn func() error) error {
	_, err := Do(ctx, r, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do 按 r 的策略执行 fn 并返回结果。
// 不可重试的错误原样返回；次数耗尽时返回 *ExhaustedError。
func Do[T any](ctx context.Context, r *Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("重试成功", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.policy.ShouldRetry(err) {
			r.logger.Debug("错误不可重试", zap.Error(err))
			return zero, err
		}
	}

	r.logger.Warn("重试次数耗尽",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return zero, &ExhaustedError{Attempts: r.policy.MaxRetries + 1, Err: lastErr}
}

// delay = initial * multiplier^(attempt-1)，上限 MaxDelay，可选抖动。
func (r *Backoff) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d < float64(r.policy.InitialDelay) {
		d = float64(r.policy.InitialDelay)
	}
	return time.Duration(d)
}

// ExhaustedError 表示传输层重试次数耗尽。
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// RetryableError 把任意错误标记为可重试。
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// WrapRetryable 将错误包装为可重试错误。
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryableError 检查错误是否被 WrapRetryable 包装，或是可重试的 *types.Error。
func IsRetryableError(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	return types.IsRetryable(err)
}
