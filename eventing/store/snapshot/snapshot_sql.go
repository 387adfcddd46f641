package snapshot

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/storage/database"
)

// SQLStore 基于 database.IDatabase 的快照存储实现
//
// 写入采用“先 UPDATE 无则 INSERT”的幂等策略，每个聚合只保留一条
// 最新快照；(aggregate_id) 上有唯一约束。
type SQLStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLStore 创建 SQL 快照存储，tableName 为空时默认 "event_snapshots"
func NewSQLStore(db database.IDatabase, tableName string) *SQLStore {
	if tableName == "" {
		tableName = "event_snapshots"
	}
	return &SQLStore{db: db, tableName: tableName}
}

// InitSchema 创建快照表（幂等）
func (s *SQLStore) InitSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		aggregate_id   TEXT PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		version        INTEGER NOT NULL,
		data           TEXT NOT NULL,
		created_at     TEXT NOT NULL
	)`, s.tableName)
	_, err := s.db.Exec(ctx, ddl)
	return err
}

func (s *SQLStore) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	ts := snapshot.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	tsStr := ts.UTC().Format(time.RFC3339Nano)

	updateSQL := fmt.Sprintf(
		`UPDATE %s SET aggregate_type = ?, version = ?, data = ?, created_at = ? WHERE aggregate_id = ?`,
		s.tableName)
	res, err := s.db.Exec(ctx, updateSQL,
		snapshot.AggregateType, snapshot.Version, string(snapshot.Data), tsStr,
		snapshot.AggregateID.String())
	if err != nil {
		return fmt.Errorf("update snapshot failed: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (aggregate_id, aggregate_type, version, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.tableName)
	if _, err := s.db.Exec(ctx, insertSQL,
		snapshot.AggregateID.String(), snapshot.AggregateType, snapshot.Version,
		string(snapshot.Data), tsStr); err != nil {
		return fmt.Errorf("insert snapshot failed: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSnapshot(ctx context.Context, aggregateID uuid.UUID) (*Snapshot, error) {
	query := fmt.Sprintf(
		"SELECT aggregate_type, version, data, created_at FROM %s WHERE aggregate_id = ?",
		s.tableName)
	row := s.db.QueryRow(ctx, query, aggregateID.String())

	var (
		aggType string
		version uint64
		data    string
		tsStr   string
	)
	if err := row.Scan(&aggType, &version, &data, &tsStr); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot timestamp %q: %w", tsStr, err)
	}
	return &Snapshot{
		AggregateID:   aggregateID,
		AggregateType: aggType,
		Version:       version,
		Data:          []byte(data),
		CreatedAt:     ts,
	}, nil
}

func (s *SQLStore) DeleteSnapshot(ctx context.Context, aggregateID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE aggregate_id = ?", s.tableName),
		aggregateID.String())
	return err
}

var _ ISnapshotStore = (*SQLStore)(nil)
