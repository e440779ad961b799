package extract

import (
	"context"
	"fmt"
	"reflect"

	"github.com/BaSui01/extractflow/types"
)

// Into 从 T 的结构体定义派生 Schema，抽取后解码为 T。
// T 的字段按 json 标签命名，约束取自 jsonschema 标签。
func Into[T any](ctx context.Context, e *Extractor, messages []types.Message, opts ...CallOption) (T, *Result, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	shape, err := e.factory.Describe(t)
	if err != nil {
		return zero, nil, err
	}
	res, err := e.Extract(ctx, shape, messages, opts...)
	if err != nil {
		return zero, nil, err
	}
	var out T
	if err := res.Decode(&out); err != nil {
		return zero, res, fmt.Errorf("decode %s: %w", t, err)
	}
	return out, res, nil
}
