package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/extractflow/types"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，
	// 包括每条消息的开销（角色标记、分隔符等）以及工具调用参数。
	CountMessages(messages []types.Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度
	MaxTokens() int

	// Name 返回分词器的名称
	Name() string
}

// 每条消息和整段对话的固定开销
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// CountPrompt 统计消息与工具定义合计的 token 数。
func CountPrompt(t Tokenizer, messages []types.Message, tools []types.ToolSchema) (int, error) {
	total, err := t.CountMessages(messages)
	if err != nil {
		return 0, err
	}
	for _, tool := range tools {
		n, err := t.CountTokens(tool.Name + " " + tool.Description + " " + string(tool.Parameters))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// messageText 返回参与计数的消息文本（内容加工具调用参数）。
func messageText(m types.Message) string {
	if len(m.ToolCalls) == 0 {
		return m.Content
	}
	var b strings.Builder
	b.WriteString(m.Content)
	for _, tc := range m.ToolCalls {
		b.WriteString(tc.Name)
		b.Write(tc.Arguments)
	}
	return b.String()
}

// 全局分词器注册表
var (
	registry   = make(map[string]Tokenizer)
	registryMu sync.RWMutex
)

// Register 为给定的模型名称注册分词器。
func Register(model string, t Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = t
}

// Get 返回模型注册的分词器，精确匹配优先，其次取最长的前缀匹配
// （如 "gpt-4o" 匹配 "gpt-4o-2024-08-06"）。
func Get(model string) (Tokenizer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := registry[model]; ok {
		return t, nil
	}

	var best Tokenizer
	bestLen := 0
	for prefix, t := range registry {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModel 返回该模型注册的分词器，没有登记时回退到估算器。
func ForModel(model string) Tokenizer {
	t, err := Get(model)
	if err != nil {
		return NewEstimator(model, 0)
	}
	return t
}
