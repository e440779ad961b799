package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/extractflow/llm"
)

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// CollectStreamChunks 读完通道并返回全部 chunk。
func CollectStreamChunks(ch <-chan llm.StreamChunk) []llm.StreamChunk {
	var chunks []llm.StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// CollectStreamContent 读完通道并拼接文本增量。
func CollectStreamContent(ch <-chan llm.StreamChunk) string {
	var acc llm.StreamAccumulator
	for chunk := range ch {
		acc.Add(chunk)
	}
	return acc.Content()
}

// SendChunksToChannel 把 chunks 写入一个已关闭的带缓冲通道。
func SendChunksToChannel(chunks []llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
