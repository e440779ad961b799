// Package events defines the lifecycle notifications emitted by the extraction
// controller and the sinks that consume them. Emission never blocks or alters
// control flow.
package events

import (
	"time"

	"github.com/BaSui01/extractflow/validation"
)

// Type 事件类型
type Type string

const (
	TypeRequestSent      Type = "request_sent"
	TypeResponseReceived Type = "response_received"
	TypePartialReceived  Type = "partial_received"
	TypeAttemptValidated Type = "attempt_validated"
	TypeRetrying         Type = "retrying"
	TypeSucceeded        Type = "succeeded"
	TypeFailed           Type = "failed"
)

// Event 事件接口
type Event interface {
	Type() Type
	Timestamp() time.Time
	Call() string
}

// RequestSent 请求已发送
type RequestSent struct {
	CallID       string
	Attempt      int
	Mode         string
	Model        string
	Messages     int
	PromptTokens int
	Timestamp_   time.Time
}

// ResponseReceived 收到完整响应（流式时为最终累积内容）
type ResponseReceived struct {
	CallID     string
	Attempt    int
	Raw              string
	Streamed         bool
	Latency          time.Duration
	PromptTokens     int
	CompletionTokens int
	Timestamp_       time.Time
}

// PartialReceived 流式过程中得到新的部分结果
type PartialReceived struct {
	CallID     string
	Attempt    int
	Value      any
	Timestamp_ time.Time
}

// AttemptValidated 单次尝试的校验结果
type AttemptValidated struct {
	CallID     string
	Attempt    int
	Result     validation.Result
	Timestamp_ time.Time
}

// Retrying 即将发起纠错重试
type Retrying struct {
	CallID      string
	Attempt     int
	NextAttempt int
	Reason      string
	Messages    []string
	Timestamp_  time.Time
}

// Succeeded 抽取成功（终态）
type Succeeded struct {
	CallID     string
	Attempts   int
	Value      any
	Timestamp_ time.Time
}

// Failed 抽取失败（终态）
type Failed struct {
	CallID     string
	Attempts   int
	Err        error
	Timestamp_ time.Time
}

func (e *RequestSent) Type() Type      { return TypeRequestSent }
func (e *ResponseReceived) Type() Type { return TypeResponseReceived }
func (e *PartialReceived) Type() Type  { return TypePartialReceived }
func (e *AttemptValidated) Type() Type { return TypeAttemptValidated }
func (e *Retrying) Type() Type         { return TypeRetrying }
func (e *Succeeded) Type() Type        { return TypeSucceeded }
func (e *Failed) Type() Type           { return TypeFailed }

func (e *RequestSent) Timestamp() time.Time      { return e.Timestamp_ }
func (e *ResponseReceived) Timestamp() time.Time { return e.Timestamp_ }
func (e *PartialReceived) Timestamp() time.Time  { return e.Timestamp_ }
func (e *AttemptValidated) Timestamp() time.Time { return e.Timestamp_ }
func (e *Retrying) Timestamp() time.Time         { return e.Timestamp_ }
func (e *Succeeded) Timestamp() time.Time        { return e.Timestamp_ }
func (e *Failed) Timestamp() time.Time           { return e.Timestamp_ }

func (e *RequestSent) Call() string      { return e.CallID }
func (e *ResponseReceived) Call() string { return e.CallID }
func (e *PartialReceived) Call() string  { return e.CallID }
func (e *AttemptValidated) Call() string { return e.CallID }
func (e *Retrying) Call() string         { return e.CallID }
func (e *Succeeded) Call() string        { return e.CallID }
func (e *Failed) Call() string           { return e.CallID }
