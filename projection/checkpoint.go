package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"wenjuan/storage/database"
)

// Checkpoint 投影检查点，记录最后处理到的全局序列号
type Checkpoint struct {
	ProjectionName string
	Position       int64
	UpdatedAt      time.Time
}

// ICheckpointStore 检查点存储
type ICheckpointStore interface {
	// Get 读取检查点，不存在时返回 Position 为 0 的零值检查点
	Get(ctx context.Context, projectionName string) (Checkpoint, error)
	Save(ctx context.Context, checkpoint Checkpoint) error
	Delete(ctx context.Context, projectionName string) error
}

// MemoryCheckpointStore 内存检查点存储
type MemoryCheckpointStore struct {
	mutex       sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpointStore 创建内存检查点存储
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]Checkpoint)}
}

func (s *MemoryCheckpointStore) Get(ctx context.Context, projectionName string) (Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if cp, ok := s.checkpoints[projectionName]; ok {
		return cp, nil
	}
	return Checkpoint{ProjectionName: projectionName}, nil
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint Checkpoint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.checkpoints[checkpoint.ProjectionName] = checkpoint
	return nil
}

func (s *MemoryCheckpointStore) Delete(ctx context.Context, projectionName string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.checkpoints, projectionName)
	return nil
}

// DefaultCheckpointTableName 默认检查点表名
const DefaultCheckpointTableName = "projection_checkpoints"

// SQLCheckpointStore 关系库检查点存储
type SQLCheckpointStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLCheckpointStore 创建 SQL 检查点存储
func NewSQLCheckpointStore(db database.IDatabase) *SQLCheckpointStore {
	return &SQLCheckpointStore{db: db, tableName: DefaultCheckpointTableName}
}

// InitSchema 创建检查点表
func (s *SQLCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			projection_name TEXT PRIMARY KEY,
			position        INTEGER NOT NULL,
			updated_at      TEXT NOT NULL
		)`, s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("init checkpoint schema: %w", err)
	}
	return nil
}

func (s *SQLCheckpointStore) Get(ctx context.Context, projectionName string) (Checkpoint, error) {
	query := fmt.Sprintf(
		"SELECT position, updated_at FROM %s WHERE projection_name = ?", s.tableName)
	var (
		position  int64
		updatedAt string
	)
	err := s.db.QueryRow(ctx, query, projectionName).Scan(&position, &updatedAt)
	if err == sql.ErrNoRows {
		return Checkpoint{ProjectionName: projectionName}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	return Checkpoint{ProjectionName: projectionName, Position: position, UpdatedAt: t}, nil
}

func (s *SQLCheckpointStore) Save(ctx context.Context, checkpoint Checkpoint) error {
	updatedAt := time.Now().UTC().Format(time.RFC3339Nano)
	updateQuery := fmt.Sprintf(
		"UPDATE %s SET position = ?, updated_at = ? WHERE projection_name = ?", s.tableName)
	result, err := s.db.Exec(ctx, updateQuery, checkpoint.Position, updatedAt, checkpoint.ProjectionName)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if affected > 0 {
		return nil
	}
	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (projection_name, position, updated_at) VALUES (?, ?, ?)", s.tableName)
	if _, err := s.db.Exec(ctx, insertQuery, checkpoint.ProjectionName, checkpoint.Position, updatedAt); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLCheckpointStore) Delete(ctx context.Context, projectionName string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE projection_name = ?", s.tableName)
	if _, err := s.db.Exec(ctx, query, projectionName); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

var (
	_ ICheckpointStore = (*MemoryCheckpointStore)(nil)
	_ ICheckpointStore = (*SQLCheckpointStore)(nil)
)
