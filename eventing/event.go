// Package eventing 定义领域事件信封与事件存储错误类型
//
// Event 是事件存储的持久化单元：以稳定的字符串事件标签（而非内存类型名）
// 标识事件种类，payload 以序列化字节保存，由 registry 在重放时解码为
// 具体领域事件类型。
package eventing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event 领域事件信封
type Event struct {
	// ID 事件唯一标识
	ID string `json:"id"`

	// Sequence 全局序列号，由存储层在追加时分配（读取时填充）。
	// 用于跨聚合的投影顺序与范围过滤，近似因果序。
	Sequence int64 `json:"sequence"`

	// Type 稳定事件标签（与内存类型名解耦，重命名不破坏历史重放）
	Type string `json:"type"`

	AggregateID   uuid.UUID `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`

	// Version 聚合内单调递增版本号，从 1 开始、连续无空洞
	Version uint64 `json:"version"`

	// SchemaVersion 事件模式版本，默认 1
	SchemaVersion int `json:"schema_version"`

	Timestamp time.Time `json:"timestamp"`

	// Payload 序列化后的事件字段
	Payload json.RawMessage `json:"payload"`

	// Metadata 附加元信息（来源、操作者等）
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEvent 创建事件信封，payload 立即序列化
func NewEvent(aggregateID uuid.UUID, aggregateType, eventType string, version uint64, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, NewSerializationError(eventType, err)
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		SchemaVersion: 1,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
		Metadata:      map[string]any{"source": "domain"},
	}, nil
}

// GetSchemaVersion 返回事件模式版本（兜底为 1）
func (e *Event) GetSchemaVersion() int {
	if e.SchemaVersion <= 0 {
		return 1
	}
	return e.SchemaVersion
}

// Validate 校验信封完整性
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("事件ID不能为空")
	}
	if e.AggregateID == uuid.Nil {
		return fmt.Errorf("聚合ID不能为空")
	}
	if e.AggregateType == "" {
		return fmt.Errorf("聚合类型不能为空")
	}
	if e.Type == "" {
		return fmt.Errorf("事件类型不能为空")
	}
	if e.Version == 0 {
		return fmt.Errorf("事件版本必须大于0")
	}
	return nil
}
