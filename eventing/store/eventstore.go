// Package store 定义事件存储的核心接口
//
// 事件存储是事件溯源架构的核心组件，负责持久化和检索领域事件。
// 实现必须保证：
//   - AppendEvents 批量原子（全部成功或全部失败）；
//   - 乐观锁（expectedVersion 与存储当前版本精确比较）；
//   - 聚合内版本从 1 开始连续无空洞；
//   - 读取按版本升序返回。
package store

import (
	"context"

	"github.com/google/uuid"

	"wenjuan/eventing"
)

// IEventStore 事件存储核心接口（聚合级操作）
type IEventStore interface {
	// AppendEvents 追加事件到指定聚合的事件流
	//
	// expectedVersion 表示当前持久化事件流的上一次已提交版本号，
	// 0 表示新聚合。版本不匹配返回 ConcurrencyError，无任何部分写入。
	AppendEvents(ctx context.Context, aggregateID uuid.UUID, events []*eventing.Event, expectedVersion uint64) error

	// LoadEvents 加载聚合的事件历史
	//
	// afterVersion 为起始版本号（不包含），0 表示从头加载。
	// 返回按版本升序排列的事件列表。
	LoadEvents(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]eventing.Event, error)

	// GetAggregateVersion 获取聚合当前版本，不存在返回 (0, nil)
	GetAggregateVersion(ctx context.Context, aggregateID uuid.UUID) (uint64, error)

	// HasAggregate 检查聚合是否存在
	HasAggregate(ctx context.Context, aggregateID uuid.UUID) (bool, error)
}

// StreamOptions 全局事件流查询选项
//
// 用于投影重建的范围/条件过滤。零值字段表示不过滤。
type StreamOptions struct {
	// AfterSequence 起始全局序列号（不包含）
	AfterSequence int64

	// UntilSequence 结束全局序列号（包含），0 表示不限
	UntilSequence int64

	// Types 事件标签过滤集合
	Types []string

	// AggregateID 仅重放指定聚合，uuid.Nil 表示不限
	AggregateID uuid.UUID

	// Limit 单次返回上限，用于分块重放（默认 1000）
	Limit int
}

// StreamResult 全局事件流查询结果
type StreamResult struct {
	Events       []eventing.Event
	NextSequence int64
	HasMore      bool
}

// IEventStreamStore 支持全局顺序流式读取的事件存储
//
// 全局序列号由存储层分配，跨聚合近似因果序；聚合内严格版本序。
type IEventStreamStore interface {
	IEventStore

	// StreamEvents 按全局序列号升序流式读取事件
	StreamEvents(ctx context.Context, opts *StreamOptions) (*StreamResult, error)
}

// DefaultStreamLimit 流式读取默认分块大小
const DefaultStreamLimit = 1000
