// Package sync 提供同步的内存消息传输
//
// Publish 在调用方 goroutine 中立即执行全部匹配的处理器，适合
// 单进程部署与测试。
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wenjuan/messaging"
)

// SyncTransport 同步内存传输
type SyncTransport struct {
	mutex    sync.RWMutex
	handlers map[string][]messaging.IMessageHandler
	running  bool
}

// NewSyncTransport 创建同步传输
func NewSyncTransport() *SyncTransport {
	return &SyncTransport{handlers: make(map[string][]messaging.IMessageHandler)}
}

// Start 启动传输
func (t *SyncTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.running = true
	return nil
}

// Close 关闭传输
func (t *SyncTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.running = false
	return nil
}

// Publish 同步发布消息；无人订阅不视为错误
func (t *SyncTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.RLock()
	if !t.running {
		t.mutex.RUnlock()
		return fmt.Errorf("sync transport is not running")
	}
	handlers := t.handlers[message.GetType()]
	t.mutex.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("message %s handling failed: %w", message.GetID(), errors.Join(errs...))
	}
	return nil
}

// PublishAll 批量同步发布
func (t *SyncTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 订阅消息处理器
func (t *SyncTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	return nil
}

// Unsubscribe 取消订阅
func (t *SyncTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	handlers := t.handlers[messageType]
	for i, h := range handlers {
		if h == handler {
			t.handlers[messageType] = append(handlers[:i], handlers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("handler %s not subscribed to %s", handler.Type(), messageType)
}

var _ messaging.Transport = (*SyncTransport)(nil)
