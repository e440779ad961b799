/*
Package testutil 提供 extractflow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup
  - 流式辅助: CollectStreamChunks / CollectStreamContent / SendChunksToChannel

# 子包

  - testutil/mocks: 按脚本应答的 MockProvider，支持完整响应、流式分块、
    工具调用与错误注入
  - testutil/fixtures: 预置 ChatResponse 与 StreamChunk 样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().
		WithToolArguments(`{"name":"JX","age":-28}`, `{"name":"Jason","age":28}`)
	resp, err := provider.Completion(ctx, req)
	require.NoError(t, err)
*/
package testutil
