package readmodel

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"wenjuan/errors"
	"wenjuan/storage/database"
)

// DefaultResponseTableName 默认答卷读模型表名
const DefaultResponseTableName = "response_read_models"

// SQLResponseStore 答卷读模型的关系库实现
type SQLResponseStore struct {
	db        database.IDatabase
	tableName string
}

// NewSQLResponseStore 创建答卷读模型存储
func NewSQLResponseStore(db database.IDatabase) *SQLResponseStore {
	return &SQLResponseStore{db: db, tableName: DefaultResponseTableName}
}

// InitSchema 创建读模型表
func (s *SQLResponseStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id               TEXT PRIMARY KEY,
			questionnaire_id TEXT NOT NULL,
			respondent_key   TEXT NOT NULL,
			ip_address       TEXT NOT NULL DEFAULT '',
			answer_count     INTEGER NOT NULL DEFAULT 0,
			submitted_at     TEXT NOT NULL
		)`, s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("init response read model schema: %w", err)
	}
	indexQuery := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_questionnaire ON %s (questionnaire_id)",
		s.tableName, s.tableName)
	if _, err := s.db.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("init response read model index: %w", err)
	}
	return nil
}

// Upsert 幂等写入
func (s *SQLResponseStore) Upsert(ctx context.Context, m *ResponseReadModel) error {
	updateQuery := fmt.Sprintf(`
		UPDATE %s SET questionnaire_id = ?, respondent_key = ?, ip_address = ?,
			answer_count = ?, submitted_at = ?
		WHERE id = ?`, s.tableName)
	result, err := s.db.Exec(ctx, updateQuery,
		m.QuestionnaireID.String(), m.RespondentKey, m.IPAddress,
		m.AnswerCount, formatTime(m.SubmittedAt), m.ID.String())
	if err != nil {
		return fmt.Errorf("update response read model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update response read model: %w", err)
	}
	if affected > 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, questionnaire_id, respondent_key, ip_address, answer_count, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`, s.tableName)
	_, err = s.db.Exec(ctx, insertQuery,
		m.ID.String(), m.QuestionnaireID.String(), m.RespondentKey, m.IPAddress,
		m.AnswerCount, formatTime(m.SubmittedAt))
	if err != nil {
		return fmt.Errorf("insert response read model: %w", err)
	}
	return nil
}

const responseColumns = "id, questionnaire_id, respondent_key, ip_address, answer_count, submitted_at"

// GetByID 按ID查询
func (s *SQLResponseStore) GetByID(ctx context.Context, id uuid.UUID) (*ResponseReadModel, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", responseColumns, s.tableName)
	m, err := scanResponse(s.db.QueryRow(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("答卷读模型不存在")
	}
	return m, err
}

// ListByQuestionnaire 按问卷分页列出，提交时间升序
func (s *SQLResponseStore) ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*ResponseReadModel, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE questionnaire_id = ? ORDER BY submitted_at ASC LIMIT ? OFFSET ?",
		responseColumns, s.tableName)
	rows, err := s.db.Query(ctx, query, questionnaireID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list response read models: %w", err)
	}
	defer rows.Close()

	var models []*ResponseReadModel
	for rows.Next() {
		m, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CountByQuestionnaire 按问卷统计答卷数（事实重算，而非计数器累加）
func (s *SQLResponseStore) CountByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE questionnaire_id = ?", s.tableName)
	var count int
	if err := s.db.QueryRow(ctx, query, questionnaireID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return count, nil
}

// Reset 清空全部数据
func (s *SQLResponseStore) Reset(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", s.tableName)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("reset response read models: %w", err)
	}
	return nil
}

func scanResponse(row scanner) (*ResponseReadModel, error) {
	var (
		m                  ResponseReadModel
		idStr              string
		questionnaireIDStr string
		submittedAt        string
	)
	err := row.Scan(&idStr, &questionnaireIDStr, &m.RespondentKey, &m.IPAddress,
		&m.AnswerCount, &submittedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan response read model: %w", err)
	}
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse response id: %w", err)
	}
	if m.QuestionnaireID, err = uuid.Parse(questionnaireIDStr); err != nil {
		return nil, fmt.Errorf("parse questionnaire id: %w", err)
	}
	if m.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

var _ IResponseReadStore = (*SQLResponseStore)(nil)
