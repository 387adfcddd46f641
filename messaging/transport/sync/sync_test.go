package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"wenjuan/messaging"
)

// recordingHandler 记录收到的消息
type recordingHandler struct {
	name     string
	received []messaging.IMessage
	fail     bool
}

func (h *recordingHandler) Handle(ctx context.Context, message messaging.IMessage) error {
	if h.fail {
		return fmt.Errorf("handler %s failed", h.name)
	}
	h.received = append(h.received, message)
	return nil
}

func (h *recordingHandler) Type() string { return h.name }

func TestSyncTransport_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	transport := NewSyncTransport()
	require.NoError(t, transport.Start(ctx))

	h1 := &recordingHandler{name: "h1"}
	h2 := &recordingHandler{name: "h2"}
	require.NoError(t, transport.Subscribe("order.created", h1))
	require.NoError(t, transport.Subscribe("order.created", h2))

	message := messaging.NewMessage("order.created", map[string]any{"id": 1})
	require.NoError(t, transport.Publish(ctx, message))

	// 同一类型的全部处理器都收到消息
	require.Len(t, h1.received, 1)
	require.Len(t, h2.received, 1)
	require.Equal(t, message.GetID(), h1.received[0].GetID())

	// 无人订阅不报错
	require.NoError(t, transport.Publish(ctx, messaging.NewMessage("order.cancelled", nil)))
}

func TestSyncTransport_NotRunning(t *testing.T) {
	ctx := context.Background()
	transport := NewSyncTransport()

	err := transport.Publish(ctx, messaging.NewMessage("order.created", nil))
	require.Error(t, err)

	require.NoError(t, transport.Start(ctx))
	require.NoError(t, transport.Publish(ctx, messaging.NewMessage("order.created", nil)))

	require.NoError(t, transport.Close())
	err = transport.Publish(ctx, messaging.NewMessage("order.created", nil))
	require.Error(t, err)
}

func TestSyncTransport_HandlerFailure(t *testing.T) {
	ctx := context.Background()
	transport := NewSyncTransport()
	require.NoError(t, transport.Start(ctx))

	good := &recordingHandler{name: "good"}
	bad := &recordingHandler{name: "bad", fail: true}
	require.NoError(t, transport.Subscribe("order.created", bad))
	require.NoError(t, transport.Subscribe("order.created", good))

	// 处理器失败仍继续执行其余处理器，最后汇总报错
	err := transport.Publish(ctx, messaging.NewMessage("order.created", nil))
	require.Error(t, err)
	require.Len(t, good.received, 1)
}

func TestSyncTransport_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	transport := NewSyncTransport()
	require.NoError(t, transport.Start(ctx))

	h := &recordingHandler{name: "h"}
	require.NoError(t, transport.Subscribe("order.created", h))
	require.NoError(t, transport.Unsubscribe("order.created", h))

	require.NoError(t, transport.Publish(ctx, messaging.NewMessage("order.created", nil)))
	require.Empty(t, h.received)

	// 重复退订报错
	require.Error(t, transport.Unsubscribe("order.created", h))
}

func TestSyncTransport_PublishAll(t *testing.T) {
	ctx := context.Background()
	transport := NewSyncTransport()
	require.NoError(t, transport.Start(ctx))

	h := &recordingHandler{name: "h"}
	require.NoError(t, transport.Subscribe("order.created", h))

	messages := []messaging.IMessage{
		messaging.NewMessage("order.created", 1),
		messaging.NewMessage("order.created", 2),
	}
	require.NoError(t, transport.PublishAll(ctx, messages))
	require.Len(t, h.received, 2)
}
