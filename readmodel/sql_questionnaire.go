package readmodel

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/errors"
	"wenjuan/questionnaire"
	"wenjuan/storage/database"
)

// DefaultQuestionnaireTableName 默认问卷读模型表名
const DefaultQuestionnaireTableName = "questionnaire_read_models"

// SQLQuestionnaireStore 问卷读模型的关系库实现
type SQLQuestionnaireStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLQuestionnaireStore 创建问卷读模型存储
func NewSQLQuestionnaireStore(db database.IDatabase) *SQLQuestionnaireStore {
	return &SQLQuestionnaireStore{db: db, tableName: DefaultQuestionnaireTableName}
}

// InitSchema 创建读模型表
func (s *SQLQuestionnaireStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			slug           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			settings       TEXT NOT NULL,
			date_range     TEXT NOT NULL,
			question_ids   TEXT NOT NULL DEFAULT '[]',
			question_count INTEGER NOT NULL DEFAULT 0,
			response_count INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			published_at   TEXT,
			closed_at      TEXT,
			updated_at     TEXT NOT NULL
		)`, s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("init questionnaire read model schema: %w", err)
	}
	indexQuery := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_slug ON %s (slug)",
		s.tableName, s.tableName)
	if _, err := s.db.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("init questionnaire read model index: %w", err)
	}
	return nil
}

// Upsert 幂等写入：先 UPDATE，未命中行再 INSERT。
// 重建重放同一事件多次得到同一行，满足投影幂等要求。
func (s *SQLQuestionnaireStore) Upsert(ctx context.Context, m *QuestionnaireReadModel) error {
	settingsJSON, err := json.Marshal(m.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dateRangeJSON, err := json.Marshal(m.DateRange)
	if err != nil {
		return fmt.Errorf("marshal date range: %w", err)
	}
	questionIDsJSON, err := json.Marshal(m.QuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s SET title = ?, slug = ?, description = ?, status = ?,
			settings = ?, date_range = ?, question_ids = ?, question_count = ?, response_count = ?,
			created_at = ?, published_at = ?, closed_at = ?, updated_at = ?
		WHERE id = ?`, s.tableName)
	result, err := s.db.Exec(ctx, updateQuery,
		m.Title, m.Slug, m.Description, string(m.Status),
		string(settingsJSON), string(dateRangeJSON), string(questionIDsJSON),
		m.QuestionCount, m.ResponseCount,
		formatTime(m.CreatedAt), formatTimePtr(m.PublishedAt), formatTimePtr(m.ClosedAt),
		formatTime(m.UpdatedAt), m.ID.String())
	if err != nil {
		return fmt.Errorf("update questionnaire read model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update questionnaire read model: %w", err)
	}
	if affected > 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, title, slug, description, status, settings, date_range,
			question_ids, question_count, response_count, created_at, published_at, closed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName)
	_, err = s.db.Exec(ctx, insertQuery,
		m.ID.String(), m.Title, m.Slug, m.Description, string(m.Status),
		string(settingsJSON), string(dateRangeJSON), string(questionIDsJSON),
		m.QuestionCount, m.ResponseCount,
		formatTime(m.CreatedAt), formatTimePtr(m.PublishedAt), formatTimePtr(m.ClosedAt),
		formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert questionnaire read model: %w", err)
	}
	return nil
}

const questionnaireColumns = "id, title, slug, description, status, settings, date_range, " +
	"question_ids, question_count, response_count, created_at, published_at, closed_at, updated_at"

// GetByID 按ID查询
func (s *SQLQuestionnaireStore) GetByID(ctx context.Context, id uuid.UUID) (*QuestionnaireReadModel, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", questionnaireColumns, s.tableName)
	return s.scanOne(s.db.QueryRow(ctx, query, id.String()))
}

// GetBySlug 按 slug 查询
func (s *SQLQuestionnaireStore) GetBySlug(ctx context.Context, slug string) (*QuestionnaireReadModel, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE slug = ?", questionnaireColumns, s.tableName)
	return s.scanOne(s.db.QueryRow(ctx, query, slug))
}

// List 按状态分页列出，status 为空时列出全部
func (s *SQLQuestionnaireStore) List(ctx context.Context, status questionnaire.Status, limit, offset int) ([]*QuestionnaireReadModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows database.IRows
		err  error
	)
	if status == "" {
		query := fmt.Sprintf(
			"SELECT %s FROM %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
			questionnaireColumns, s.tableName)
		rows, err = s.db.Query(ctx, query, limit, offset)
	} else {
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?",
			questionnaireColumns, s.tableName)
		rows, err = s.db.Query(ctx, query, string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list questionnaire read models: %w", err)
	}
	defer rows.Close()

	var models []*QuestionnaireReadModel
	for rows.Next() {
		m, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// SetResponseCount 覆盖答卷计数
func (s *SQLQuestionnaireStore) SetResponseCount(ctx context.Context, id uuid.UUID, count int) error {
	query := fmt.Sprintf(
		"UPDATE %s SET response_count = ?, updated_at = ? WHERE id = ?", s.tableName)
	_, err := s.db.Exec(ctx, query, count, formatTime(time.Now().UTC()), id.String())
	if err != nil {
		return fmt.Errorf("set response count: %w", err)
	}
	return nil
}

// Delete 删除读模型行
func (s *SQLQuestionnaireStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	if _, err := s.db.Exec(ctx, query, id.String()); err != nil {
		return fmt.Errorf("delete questionnaire read model: %w", err)
	}
	return nil
}

// Reset 清空全部数据
func (s *SQLQuestionnaireStore) Reset(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("reset questionnaire read models: %w", err)
	}
	return nil
}

func (s *SQLQuestionnaireStore) scanOne(row database.IRow) (*QuestionnaireReadModel, error) {
	m, err := scanQuestionnaire(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("问卷读模型不存在")
	}
	return m, err
}

// scanner 兼容 IRow 与 IRows 的扫描入口
type scanner interface {
	Scan(dest ...any) error
}

func scanQuestionnaire(row scanner) (*QuestionnaireReadModel, error) {
	var (
		m               QuestionnaireReadModel
		idStr           string
		statusStr       string
		settingsJSON    string
		dateRangeJSON   string
		questionIDsJSON string
		createdAt       string
		publishedAt     *string
		closedAt        *string
		updatedAt       string
	)
	err := row.Scan(&idStr, &m.Title, &m.Slug, &m.Description, &statusStr,
		&settingsJSON, &dateRangeJSON, &questionIDsJSON, &m.QuestionCount, &m.ResponseCount,
		&createdAt, &publishedAt, &closedAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan questionnaire read model: %w", err)
	}

	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse questionnaire id: %w", err)
	}
	m.Status = questionnaire.Status(statusStr)
	if err := json.Unmarshal([]byte(settingsJSON), &m.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal([]byte(dateRangeJSON), &m.DateRange); err != nil {
		return nil, fmt.Errorf("unmarshal date range: %w", err)
	}
	if questionIDsJSON != "" {
		if err := json.Unmarshal([]byte(questionIDsJSON), &m.QuestionIDs); err != nil {
			return nil, fmt.Errorf("unmarshal question ids: %w", err)
		}
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.PublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return nil, err
	}
	if m.ClosedAt, err = parseTimePtr(closedAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse read model timestamp: %w", err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ IQuestionnaireReadStore = (*SQLQuestionnaireStore)(nil)
