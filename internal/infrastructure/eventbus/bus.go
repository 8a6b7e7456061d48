package eventbus

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/pkg/safego"
)

// Event 事件接口
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

// Type 返回事件类型
func (e *BaseEvent) Type() string {
	return e.EventType
}

// Timestamp 返回事件时间戳
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTimestamp
}

// Payload 返回事件载荷
func (e *BaseEvent) Payload() any {
	return e.EventPayload
}

// NewEvent 创建新事件
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now().UTC(),
		EventPayload:   payload,
	}
}

// wildcard 订阅全部事件类型
const wildcard = "*"

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event)

// Publisher 只发布事件的一侧，供应用层依赖
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus 事件总线接口
type Bus interface {
	Publisher
	// Subscribe 订阅事件，返回取消订阅函数；eventType 为 "*" 时接收全部事件
	Subscribe(eventType string, handler Handler) (unsubscribe func())
	// Close 关闭事件总线，等待已入队事件分发完毕
	Close()
}

// InMemoryBus 内存事件总线
type InMemoryBus struct {
	mu        sync.RWMutex
	subs      map[string][]subscription
	nextID    uint64
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	done      chan struct{}
}

type subscription struct {
	id      uint64
	handler Handler
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus 创建内存事件总线
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	bus := &InMemoryBus{
		subs:      make(map[string][]subscription),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger.With(zap.String("component", "eventbus")),
		done:      make(chan struct{}),
	}

	// 启动事件分发协程
	safego.Go(bus.logger, "eventbus-dispatch", bus.dispatch, bus.done)

	return bus
}

// Publish 发布事件，缓冲区满时丢弃并告警
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	// 非阻塞发送
	select {
	case b.eventChan <- eventWrapper{ctx: context.WithoutCancel(ctx), event: event}:
		b.logger.Debug("Event published",
			zap.String("type", event.Type()),
		)
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type()),
		)
	}
}

// Subscribe 订阅事件
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs[eventType] = slices.DeleteFunc(b.subs[eventType], func(s subscription) bool {
				return s.id == id
			})
			if len(b.subs[eventType]) == 0 {
				delete(b.subs, eventType)
			}
		})
	}
}

// Close 关闭事件总线
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	<-b.done
	b.logger.Info("Event bus closed")
}

// dispatch 事件分发循环
func (b *InMemoryBus) dispatch() {
	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

// dispatchEvent 先分发给精确订阅者再分发给通配符订阅者，各自按订阅顺序；
// 单个处理器 panic 不影响其他处理器
func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	targets := slices.Concat(b.subs[event.Type()], b.subs[wildcard])
	b.mu.RUnlock()

	for _, sub := range targets {
		_ = safego.Run(b.logger, "eventbus-handler:"+event.Type(), func() {
			sub.handler(ctx, event)
		})
	}
}
