package metrics

import (
	"sync"
	"time"

	"github.com/BaSui01/extractflow/events"
	"github.com/BaSui01/extractflow/types"
)

// EventSink 把抽取生命周期事件转换为指标。
type EventSink struct {
	c        *Collector
	provider string

	mu    sync.Mutex
	calls map[string]callInfo
}

type callInfo struct {
	mode  string
	model string
	start time.Time
}

// Sink 返回记录到 c 的事件接收方，provider 用作 LLM 指标标签。
func (c *Collector) Sink(provider string) *EventSink {
	return &EventSink{c: c, provider: provider, calls: make(map[string]callInfo)}
}

// Emit 实现 events.Sink。
func (s *EventSink) Emit(e events.Event) {
	switch ev := e.(type) {
	case *events.RequestSent:
		s.mu.Lock()
		info, ok := s.calls[ev.CallID]
		if !ok {
			info.start = ev.Timestamp_
		}
		info.mode, info.model = ev.Mode, ev.Model
		s.calls[ev.CallID] = info
		s.mu.Unlock()
	case *events.ResponseReceived:
		info := s.info(ev.CallID, false)
		s.c.RecordLLMRequest(s.provider, info.model, "success", ev.Latency, ev.PromptTokens, ev.CompletionTokens)
	case *events.PartialReceived:
		s.c.RecordPartial(s.info(ev.CallID, false).mode)
	case *events.Retrying:
		s.c.RecordRetry(s.info(ev.CallID, false).mode)
	case *events.Succeeded:
		info := s.info(ev.CallID, true)
		s.c.RecordExtraction(info.mode, "succeeded", ev.Attempts, since(info.start, ev.Timestamp_))
	case *events.Failed:
		info := s.info(ev.CallID, true)
		status := string(types.GetErrorCode(ev.Err))
		if status == "" {
			status = "failed"
		}
		s.c.RecordExtraction(info.mode, status, ev.Attempts, since(info.start, ev.Timestamp_))
	}
}

func (s *EventSink) info(callID string, remove bool) callInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.calls[callID]
	if remove {
		delete(s.calls, callID)
	}
	if info.mode == "" {
		info.mode = "unknown"
	}
	return info
}

func since(start, end time.Time) time.Duration {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}
