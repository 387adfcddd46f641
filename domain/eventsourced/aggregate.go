// Package eventsourced 提供事件溯源聚合根基类与仓储
//
// 聚合状态完全由事件折叠重建：业务方法先校验不变式，再通过
// ApplyAndRecord 同时变更状态并记录未提交事件；仓储持久化后
// 清空未提交列表。
package eventsourced

import (
	"github.com/google/uuid"

	"wenjuan/domain"
)

// IEventSourcedAggregate 事件溯源聚合根接口
type IEventSourcedAggregate interface {
	// GetID 返回聚合标识
	GetID() uuid.UUID

	// GetVersion 返回当前版本（已应用事件数）
	GetVersion() uint64

	// GetAggregateType 返回聚合类型名称
	GetAggregateType() string

	// Apply 应用事件变更状态并递增版本（重放与记录共用路径）
	Apply(evt domain.IDomainEvent) error

	// GetUncommittedEvents 获取未提交事件（按记录顺序）
	GetUncommittedEvents() []domain.IDomainEvent

	// MarkEventsAsCommitted 持久化成功后清空未提交事件
	MarkEventsAsCommitted()
}

// ISnapshotCapable 支持快照的聚合
type ISnapshotCapable interface {
	// MarshalSnapshot 序列化当前状态
	MarshalSnapshot() ([]byte, error)

	// UnmarshalSnapshot 从快照状态恢复（不含版本）
	UnmarshalSnapshot(data []byte) error
}

// Applier 事件应用函数，由具体聚合注入（内部为穷尽的类型分派）
type Applier func(evt domain.IDomainEvent) error

// AggregateRoot 聚合根基类
//
// 通过构造时注入的 Applier 回调完成多态事件分派，避免依赖反射。
// 具体聚合以嵌入方式复用版本与未提交事件管理。
type AggregateRoot struct {
	id                uuid.UUID
	aggregateType     string
	version           uint64
	uncommittedEvents []domain.IDomainEvent
	applier           Applier
}

// NewAggregateRoot 创建聚合根基类
func NewAggregateRoot(id uuid.UUID, aggregateType string, applier Applier) AggregateRoot {
	return AggregateRoot{
		id:            id,
		aggregateType: aggregateType,
		applier:       applier,
	}
}

// GetID 返回聚合标识
func (a *AggregateRoot) GetID() uuid.UUID { return a.id }

// GetVersion 返回当前版本
func (a *AggregateRoot) GetVersion() uint64 { return a.version }

// GetAggregateType 返回聚合类型
func (a *AggregateRoot) GetAggregateType() string { return a.aggregateType }

// Apply 应用事件：先分派到具体聚合的状态变更，成功后递增版本。
// 应用失败时版本与状态均不变。
func (a *AggregateRoot) Apply(evt domain.IDomainEvent) error {
	if err := a.applier(evt); err != nil {
		return err
	}
	a.version++
	return nil
}

// ApplyAndRecord 应用事件并记录为未提交
//
// 业务方法在不变式校验通过后调用；校验失败时不得调用，
// 保证无效命令不产生任何事件。
func (a *AggregateRoot) ApplyAndRecord(evt domain.IDomainEvent) error {
	if err := a.Apply(evt); err != nil {
		return err
	}
	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	return nil
}

// GetUncommittedEvents 返回未提交事件的副本
func (a *AggregateRoot) GetUncommittedEvents() []domain.IDomainEvent {
	events := make([]domain.IDomainEvent, len(a.uncommittedEvents))
	copy(events, a.uncommittedEvents)
	return events
}

// MarkEventsAsCommitted 清空未提交事件
func (a *AggregateRoot) MarkEventsAsCommitted() {
	a.uncommittedEvents = nil
}

// RestoreVersion 重建时恢复版本号（仅供仓储在快照恢复后调用）
func (a *AggregateRoot) RestoreVersion(version uint64) {
	a.version = version
}
