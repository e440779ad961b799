package extract

import "github.com/BaSui01/extractflow/types"

// Conversation 是只追加的消息日志。Append 返回新值，原值保持不变，
// 因此每次尝试看到的会话都可以单独检查或重放。
type Conversation struct {
	msgs []types.Message
}

// NewConversation 以 msgs 的副本创建会话。
func NewConversation(msgs ...types.Message) Conversation {
	return Conversation{msgs: types.CloneMessages(msgs)}
}

// Append 返回追加了 msgs 的新会话。
func (c Conversation) Append(msgs ...types.Message) Conversation {
	out := make([]types.Message, 0, len(c.msgs)+len(msgs))
	out = append(out, c.msgs...)
	out = append(out, types.CloneMessages(msgs)...)
	return Conversation{msgs: out}
}

// Messages 返回消息副本。
func (c Conversation) Messages() []types.Message { return types.CloneMessages(c.msgs) }

// Len 返回消息条数。
func (c Conversation) Len() int { return len(c.msgs) }

// Last 返回最后一条消息。
func (c Conversation) Last() (types.Message, bool) {
	if len(c.msgs) == 0 {
		return types.Message{}, false
	}
	return c.msgs[len(c.msgs)-1], true
}
