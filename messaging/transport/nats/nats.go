// Package nats 提供基于 NATS core 的消息传输
//
// 使用核心 NATS 的 at-most-once 投递：发布即忘，无持久化确认。
// 应用事件广播容忍丢失，事实以事件存储为准。
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"wenjuan/logging"
	"wenjuan/messaging"
)

// DefaultSubjectPrefix 默认主题前缀
const DefaultSubjectPrefix = "wenjuan.events."

// NATSTransport NATS core 消息传输
type NATSTransport struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        logging.Logger

	mutex         sync.Mutex
	subscriptions map[string]*subscriptionSet
	running       bool
}

type subscriptionSet struct {
	sub      *nats.Subscription
	handlers []messaging.IMessageHandler
}

// NewNATSTransport 创建 NATS 传输
func NewNATSTransport(conn *nats.Conn) *NATSTransport {
	return &NATSTransport{
		conn:          conn,
		subjectPrefix: DefaultSubjectPrefix,
		logger:        logging.ComponentLogger("nats-transport"),
		subscriptions: make(map[string]*subscriptionSet),
	}
}

// WithSubjectPrefix 指定主题前缀
func (t *NATSTransport) WithSubjectPrefix(prefix string) *NATSTransport {
	t.subjectPrefix = prefix
	return t
}

func (t *NATSTransport) subject(messageType string) string {
	return t.subjectPrefix + messageType
}

// Start 启动传输
func (t *NATSTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.conn == nil || !t.conn.IsConnected() {
		return fmt.Errorf("nats transport: connection is not established")
	}
	t.running = true
	return nil
}

// Close 取消全部订阅并标记停止（连接由调用方管理）
func (t *NATSTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for messageType, set := range t.subscriptions {
		if err := set.sub.Unsubscribe(); err != nil {
			t.logger.Warn(context.Background(), "取消NATS订阅失败",
				logging.String("message_type", messageType), logging.Error(err))
		}
	}
	t.subscriptions = make(map[string]*subscriptionSet)
	t.running = false
	return nil
}

// Publish 发布消息到对应主题
func (t *NATSTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.Lock()
	running := t.running
	t.mutex.Unlock()
	if !running {
		return fmt.Errorf("nats transport is not running")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", message.GetID(), err)
	}
	if err := t.conn.Publish(t.subject(message.GetType()), data); err != nil {
		return fmt.Errorf("publish message %s: %w", message.GetID(), err)
	}
	return nil
}

// PublishAll 批量发布
func (t *NATSTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 订阅消息类型，同类型处理器共享一个 NATS 订阅
func (t *NATSTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	set, ok := t.subscriptions[messageType]
	if ok {
		set.handlers = append(set.handlers, handler)
		return nil
	}

	set = &subscriptionSet{handlers: []messaging.IMessageHandler{handler}}
	sub, err := t.conn.Subscribe(t.subject(messageType), func(msg *nats.Msg) {
		var message messaging.Message
		if err := json.Unmarshal(msg.Data, &message); err != nil {
			t.logger.Error(context.Background(), "解码NATS消息失败",
				logging.String("subject", msg.Subject), logging.Error(err))
			return
		}
		t.mutex.Lock()
		handlers := make([]messaging.IMessageHandler, len(set.handlers))
		copy(handlers, set.handlers)
		t.mutex.Unlock()
		for _, h := range handlers {
			if err := h.Handle(context.Background(), &message); err != nil {
				t.logger.Error(context.Background(), "处理NATS消息失败",
					logging.String("handler", h.Type()),
					logging.String("message_id", message.ID),
					logging.Error(err))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", messageType, err)
	}
	set.sub = sub
	t.subscriptions[messageType] = set
	return nil
}

// Unsubscribe 取消订阅；最后一个处理器移除时注销 NATS 订阅
func (t *NATSTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	set, ok := t.subscriptions[messageType]
	if !ok {
		return fmt.Errorf("no subscription for message type %s", messageType)
	}
	for i, h := range set.handlers {
		if h == handler {
			set.handlers = append(set.handlers[:i], set.handlers[i+1:]...)
			if len(set.handlers) == 0 {
				delete(t.subscriptions, messageType)
				return set.sub.Unsubscribe()
			}
			return nil
		}
	}
	return fmt.Errorf("handler %s not subscribed to %s", handler.Type(), messageType)
}

var _ messaging.Transport = (*NATSTransport)(nil)
