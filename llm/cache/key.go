package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/extractflow/llm"
	"github.com/BaSui01/extractflow/types"
)

// keyPrefix 是所有缓存键的公共前缀。
const keyPrefix = "llm:cache:"

type keyMessage struct {
	Role       types.Role       `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []types.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type keyRequest struct {
	Model          string              `json:"model"`
	Messages       []keyMessage        `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float32             `json:"temperature,omitempty"`
	Tools          []types.ToolSchema  `json:"tools,omitempty"`
	ToolChoice     string              `json:"tool_choice,omitempty"`
	ResponseFormat *llm.ResponseFormat `json:"response_format,omitempty"`
}

// Key 生成请求的缓存键。
func Key(req *llm.ChatRequest) string {
	k := keyRequest{
		Model:          req.Model,
		Messages:       make([]keyMessage, len(req.Messages)),
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		Tools:          req.Tools,
		ToolChoice:     req.ToolChoice,
		ResponseFormat: req.ResponseFormat,
	}
	for i, m := range req.Messages {
		k.Messages[i] = keyMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		}
	}
	data, err := json.Marshal(k)
	if err != nil {
		// fallback: 使用 fmt.Sprintf 生成确定性字符串避免 key 碰撞
		data = []byte(fmt.Sprintf("%v", k))
	}
	hash := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(hash[:16])
}
