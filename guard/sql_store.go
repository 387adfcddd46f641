package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wenjuan/storage/database"
)

// DefaultMarkTableName 默认登记表名
const DefaultMarkTableName = "submission_marks"

// SQLMarkStore 基于关系库的标识登记存储
//
// 唯一索引 (questionnaire_id, strategy, subject_key) 保证同一主体
// 只有一次登记成功，是并发提交下的最终防线。
type SQLMarkStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLMarkStore 创建 SQL 登记存储
func NewSQLMarkStore(db database.IDatabase) *SQLMarkStore {
	return &SQLMarkStore{db: db, tableName: DefaultMarkTableName}
}

// WithTableName 指定表名
func (s *SQLMarkStore) WithTableName(name string) *SQLMarkStore {
	s.tableName = name
	return s
}

// InitSchema 创建登记表
func (s *SQLMarkStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			questionnaire_id TEXT NOT NULL,
			strategy         TEXT NOT NULL,
			subject_key      TEXT NOT NULL,
			marked_at        TEXT NOT NULL,
			PRIMARY KEY (questionnaire_id, strategy, subject_key)
		)`, s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("init mark store schema: %w", err)
	}
	return nil
}

// Mark 插入登记行，唯一约束冲突视为已登记
func (s *SQLMarkStore) Mark(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (questionnaire_id, strategy, subject_key, marked_at) VALUES (?, ?, ?, ?)",
		s.tableName)
	_, err := s.db.Exec(ctx, query,
		questionnaireID.String(), strategy, subjectKey,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark submission: %w", err)
	}
	return true, nil
}

// Exists 查询标识是否已登记
func (s *SQLMarkStore) Exists(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE questionnaire_id = ? AND strategy = ? AND subject_key = ?",
		s.tableName)
	var count int
	row := s.db.QueryRow(ctx, query, questionnaireID.String(), strategy, subjectKey)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("query submission mark: %w", err)
	}
	return count > 0, nil
}

func isDuplicateKeyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}

var _ IMarkStore = (*SQLMarkStore)(nil)
