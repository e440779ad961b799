package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler 事件处理器
type Handler func(Event)

var subscriptionCounter atomic.Int64

// Bus delivers events asynchronously on a single goroutine, preserving
// publish order. Publish never blocks: events are dropped when the buffer is full.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type]map[string]Handler
	all      map[string]Handler

	queue    chan Event
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
	logger   *zap.Logger
}

// DefaultBufferSize is the queue length used when NewBus gets a non-positive size.
const DefaultBufferSize = 100

// NewBus creates and starts a Bus.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		handlers: make(map[Type]map[string]Handler),
		all:      make(map[string]Handler),
		queue:    make(chan Event, bufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
	go b.run()
	return b
}

// Emit implements Sink.
func (b *Bus) Emit(e Event) { b.Publish(e) }

// Publish 发布事件
func (b *Bus) Publish(e Event) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- e:
	default:
		// 通道满了，丢弃事件
		b.dropped.Add(1)
	}
}

// Subscribe registers handler for one event type and returns a subscription ID.
func (b *Bus) Subscribe(t Type, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[string]Handler)
	}
	id := fmt.Sprintf("%s-%d", t, subscriptionCounter.Add(1))
	b.handlers[t][id] = handler
	return id
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("all-%d", subscriptionCounter.Add(1))
	b.all[id] = handler
	return id
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.all[id]; ok {
		delete(b.all, id)
		return
	}
	for t, hs := range b.handlers {
		if _, ok := hs[id]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(b.handlers, t)
			}
			return
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Stop stops accepting events, delivers what is already queued and waits for delivery to finish.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	<-b.stopped
}

func (b *Bus) run() {
	defer close(b.stopped)
	for {
		select {
		case e := <-b.queue:
			b.deliver(e)
		case <-b.done:
			for {
				select {
				case e := <-b.queue:
					b.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Type()])+len(b.all))
	for _, h := range b.handlers[e.Type()] {
		hs = append(hs, h)
	}
	for _, h := range b.all {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.call(h, e)
	}
}

func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.String("event", string(e.Type())), zap.Any("recover", r))
		}
	}()
	h(e)
}
