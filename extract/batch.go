package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/extractflow/schema"
	"github.com/BaSui01/extractflow/types"
)

// BatchItem 是批量抽取中的一项。
type BatchItem struct {
	Shape    *schema.TypeDescriptor
	Messages []types.Message
	Options  []CallOption
}

// BatchResult 与输入项一一对应。
type BatchResult struct {
	Result *Result
	Err    error
}

// ExtractBatch 并发执行相互独立的抽取，最多 limit 个同时进行（limit <= 0 不限制）。
// 单项失败不会取消其它项；只有 ctx 被取消时剩余项才会以 ctx 错误结束。
func (e *Extractor) ExtractBatch(ctx context.Context, items []BatchItem, limit int) []BatchResult {
	out := make([]BatchResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			res, err := e.Extract(gctx, item.Shape, item.Messages, item.Options...)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
