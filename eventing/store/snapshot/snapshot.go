// Package snapshot 提供聚合快照存储
//
// 快照仅是聚合重建的性能优化层，事件流才是事实来源。
// 不变式：snapshot.Version <= 聚合最新事件版本；重建时只重放
// version > snapshot.Version 的事件。
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"wenjuan/errors"
)

// Snapshot 聚合快照
type Snapshot struct {
	AggregateID   uuid.UUID `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`

	// Version 快照对应的聚合版本（快照包含该版本及之前全部事件的状态）
	Version uint64 `json:"version"`

	// Data 序列化后的聚合状态
	Data []byte `json:"data"`

	CreatedAt time.Time `json:"created_at"`
}

// ErrSnapshotNotFound 快照不存在
var ErrSnapshotNotFound = errors.NewNotFoundError("snapshot not found")

// ISnapshotStore 快照存储接口
//
// 每个聚合只保留一条最新快照；SaveSnapshot 为幂等的 UPSERT 语义。
type ISnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error

	// GetSnapshot 获取聚合最新快照，不存在返回 ErrSnapshotNotFound
	GetSnapshot(ctx context.Context, aggregateID uuid.UUID) (*Snapshot, error)

	DeleteSnapshot(ctx context.Context, aggregateID uuid.UUID) error
}

// MemoryStore 内存快照存储（测试用）
type MemoryStore struct {
	snapshots map[uuid.UUID]Snapshot
	mutex     sync.RWMutex
}

// NewMemoryStore 创建内存快照存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[uuid.UUID]Snapshot)}
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, aggregateID uuid.UUID) (*Snapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	snapshot, ok := s.snapshots[aggregateID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &snapshot, nil
}

func (s *MemoryStore) DeleteSnapshot(ctx context.Context, aggregateID uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.snapshots, aggregateID)
	return nil
}

var _ ISnapshotStore = (*MemoryStore)(nil)
