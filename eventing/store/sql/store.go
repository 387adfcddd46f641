// Package sql 提供基于通用 database.IDatabase 的事件存储实现
//
// 表结构（sqlite 方言）：
//
//	CREATE TABLE event_store (
//	    sequence       INTEGER PRIMARY KEY AUTOINCREMENT,
//	    id             TEXT NOT NULL UNIQUE,
//	    type           TEXT NOT NULL,
//	    aggregate_id   TEXT NOT NULL,
//	    aggregate_type TEXT NOT NULL,
//	    version        INTEGER NOT NULL,
//	    schema_version INTEGER NOT NULL DEFAULT 1,
//	    timestamp      TEXT NOT NULL,
//	    payload        TEXT NOT NULL,
//	    metadata       TEXT,
//	    UNIQUE (aggregate_id, version)
//	);
//
// (aggregate_id, version) 唯一约束是乐观锁之外的最后防线：即使版本
// 预检查存在竞态，重复版本的插入也会在存储层被拒绝。
package sql

import (
	"context"
	"fmt"

	"wenjuan/storage/database"
)

// SQLEventStore 基于通用 SQL 接口的事件存储
type SQLEventStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLEventStore 创建 SQL 事件存储，tableName 为空时默认 "event_store"
func NewSQLEventStore(db database.IDatabase, tableName string) *SQLEventStore {
	if tableName == "" {
		tableName = "event_store"
	}
	return &SQLEventStore{db: db, tableName: tableName}
}

// InitSchema 创建事件表（幂等，用于测试与 CLI 初始化）
func (s *SQLEventStore) InitSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		sequence       INTEGER PRIMARY KEY AUTOINCREMENT,
		id             TEXT NOT NULL UNIQUE,
		type           TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		version        INTEGER NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		timestamp      TEXT NOT NULL,
		payload        TEXT NOT NULL,
		metadata       TEXT,
		UNIQUE (aggregate_id, version)
	)`, s.tableName)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return err
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s (type)`, s.tableName, s.tableName)
	_, err := s.db.Exec(ctx, idx)
	return err
}

// GetTableName 返回事件表名
func (s *SQLEventStore) GetTableName() string { return s.tableName }
