package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"wenjuan/eventing"
)

// MemoryEventStore 内存实现，用于测试与示例
type MemoryEventStore struct {
	mu sync.RWMutex

	// global 按全局序列号升序保存全部事件
	global []eventing.Event

	// byAggregate 按聚合维度保存，版本升序
	byAggregate map[uuid.UUID][]eventing.Event

	nextSequence int64
}

// NewMemoryEventStore 创建内存事件存储
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		byAggregate:  make(map[uuid.UUID][]eventing.Event),
		nextSequence: 1,
	}
}

func (m *MemoryEventStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, events []*eventing.Event, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	currentVersion := m.currentVersionLocked(aggregateID)
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	// 先整体校验，再整体写入，保证批量原子性
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		want := expectedVersion + uint64(i) + 1
		if e.Version != want {
			return fmt.Errorf("event version not sequential: expected %d, got %d", want, e.Version)
		}
	}

	for _, e := range events {
		stored := *e
		stored.Sequence = m.nextSequence
		m.nextSequence++
		m.global = append(m.global, stored)
		m.byAggregate[aggregateID] = append(m.byAggregate[aggregateID], stored)
	}
	return nil
}

func (m *MemoryEventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]eventing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.byAggregate[aggregateID]
	res := make([]eventing.Event, 0, len(all))
	for _, e := range all {
		if e.Version > afterVersion {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *MemoryEventStore) GetAggregateVersion(ctx context.Context, aggregateID uuid.UUID) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentVersionLocked(aggregateID), nil
}

func (m *MemoryEventStore) HasAggregate(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAggregate[aggregateID]) > 0, nil
}

// StreamEvents 按全局序列号升序流式读取（实现 IEventStreamStore）
func (m *MemoryEventStore) StreamEvents(ctx context.Context, opts *StreamOptions) (*StreamResult, error) {
	if opts == nil {
		opts = &StreamOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultStreamLimit
	}

	typeFilter := make(map[string]struct{}, len(opts.Types))
	for _, t := range opts.Types {
		typeFilter[t] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := &StreamResult{Events: make([]eventing.Event, 0, limit)}
	for _, e := range m.global {
		if e.Sequence <= opts.AfterSequence {
			continue
		}
		if opts.UntilSequence > 0 && e.Sequence > opts.UntilSequence {
			break
		}
		if len(typeFilter) > 0 {
			if _, ok := typeFilter[e.Type]; !ok {
				continue
			}
		}
		if opts.AggregateID != uuid.Nil && e.AggregateID != opts.AggregateID {
			continue
		}
		if len(result.Events) >= limit {
			result.HasMore = true
			break
		}
		result.Events = append(result.Events, e)
		result.NextSequence = e.Sequence
	}
	return result, nil
}

func (m *MemoryEventStore) currentVersionLocked(aggregateID uuid.UUID) uint64 {
	all := m.byAggregate[aggregateID]
	if len(all) == 0 {
		return 0
	}
	return all[len(all)-1].Version
}

// 编译期断言
var _ IEventStreamStore = (*MemoryEventStore)(nil)
