package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/extractflow/types"
)

// Tiktoken 为 OpenAI 系列模型提供精确计数。
// 编码数据在第一次计数时加载（tiktoken-go 可能需要下载 BPE 文件）。
type Tiktoken struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// modelEncodings 将模型名称映射到 tiktoken 编码和上下文大小。
var modelEncodings = map[string]encodingInfo{
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":   {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4.1":       {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4-turbo":   {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":         {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 16385},
}

// NewTiktoken 为给定模型创建分词器；未知模型使用 cl100k_base。
func NewTiktoken(model string) *Tiktoken {
	info, ok := modelEncodings[model]
	if !ok {
		bestLen := 0
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
				info, bestLen, ok = i, len(prefix), true
			}
		}
	}
	if !ok {
		info = encodingInfo{encoding: "cl100k_base", maxTokens: 8192}
	}
	return &Tiktoken{model: model, encoding: info.encoding, maxTokens: info.maxTokens}
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) CountMessages(messages []types.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += messageOverhead
		total += len(t.enc.Encode(messageText(msg), nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	total += conversationOverhead
	return total, nil
}

func (t *Tiktoken) MaxTokens() int { return t.maxTokens }

func (t *Tiktoken) Name() string { return fmt.Sprintf("tiktoken[%s]", t.encoding) }

// RegisterOpenAI 为所有已知的 OpenAI 模型注册 tiktoken 分词器。
func RegisterOpenAI() {
	for model := range modelEncodings {
		Register(model, NewTiktoken(model))
	}
}
