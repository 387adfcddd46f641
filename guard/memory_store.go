package guard

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryMarkStore 内存标识登记存储（测试与单机用）
type MemoryMarkStore struct {
	mutex sync.Mutex
	marks map[string]bool
}

// NewMemoryMarkStore 创建内存登记存储
func NewMemoryMarkStore() *MemoryMarkStore {
	return &MemoryMarkStore{marks: make(map[string]bool)}
}

func markKey(questionnaireID uuid.UUID, strategy, subjectKey string) string {
	return questionnaireID.String() + "|" + strategy + "|" + subjectKey
}

// Mark 原子登记，已存在返回 false
func (s *MemoryMarkStore) Mark(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := markKey(questionnaireID, strategy, subjectKey)
	if s.marks[key] {
		return false, nil
	}
	s.marks[key] = true
	return true, nil
}

// Exists 判断标识是否已登记
func (s *MemoryMarkStore) Exists(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.marks[markKey(questionnaireID, strategy, subjectKey)], nil
}

var _ IMarkStore = (*MemoryMarkStore)(nil)
