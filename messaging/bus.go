package messaging

import (
	"context"
)

// IMessageHandler 消息处理器接口
type IMessageHandler interface {
	Handle(ctx context.Context, message IMessage) error

	// Type 返回处理器类型（日志与调试用）
	Type() string
}

// HandlerFunc 函数式消息处理器
type HandlerFunc struct {
	Name string
	Fn   func(ctx context.Context, message IMessage) error
}

func (h HandlerFunc) Handle(ctx context.Context, message IMessage) error {
	return h.Fn(ctx, message)
}

func (h HandlerFunc) Type() string { return h.Name }

// Transport 消息传输接口
type Transport interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
	Subscribe(messageType string, handler IMessageHandler) error
	Unsubscribe(messageType string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
}

// IMessageBus 消息总线接口
type IMessageBus interface {
	Subscribe(ctx context.Context, messageType string, handler IMessageHandler) error
	Unsubscribe(ctx context.Context, messageType string, handler IMessageHandler) error
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
}

// MessageBus 消息总线基础实现，实际传输交给 Transport
type MessageBus struct {
	transport Transport
}

// NewMessageBus 创建消息总线
func NewMessageBus(transport Transport) *MessageBus {
	return &MessageBus{transport: transport}
}

func (bus *MessageBus) Subscribe(ctx context.Context, messageType string, handler IMessageHandler) error {
	return bus.transport.Subscribe(messageType, handler)
}

func (bus *MessageBus) Unsubscribe(ctx context.Context, messageType string, handler IMessageHandler) error {
	return bus.transport.Unsubscribe(messageType, handler)
}

func (bus *MessageBus) Publish(ctx context.Context, message IMessage) error {
	return bus.transport.Publish(ctx, message)
}

func (bus *MessageBus) PublishAll(ctx context.Context, messages []IMessage) error {
	return bus.transport.PublishAll(ctx, messages)
}

var _ IMessageBus = (*MessageBus)(nil)
