package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/response"
	"wenjuan/storage/database"
)

// 答卷明细表名
const (
	DefaultResponseTableName = "responses"
	DefaultAnswerTableName   = "response_answers"
)

// ResponseWriter 答卷明细的事务化写入器
//
// 答卷行与答案行在同一个事务内落库，任一失败整体回滚。
// 明细表供直接查询导出，区别于投影维护的读模型。
type ResponseWriter struct {
	db            database.IDatabase
	responseTable string
	answerTable   string
}

// NewResponseWriter 创建答卷写入器
func NewResponseWriter(db database.IDatabase) *ResponseWriter {
	return &ResponseWriter{
		db:            db,
		responseTable: DefaultResponseTableName,
		answerTable:   DefaultAnswerTableName,
	}
}

// InitSchema 创建答卷明细表
func (w *ResponseWriter) InitSchema(ctx context.Context) error {
	responseQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id               TEXT PRIMARY KEY,
			questionnaire_id TEXT NOT NULL,
			respondent_type  TEXT NOT NULL DEFAULT '',
			respondent_id    TEXT NOT NULL DEFAULT '',
			ip_address       TEXT NOT NULL DEFAULT '',
			user_agent       TEXT NOT NULL DEFAULT '',
			metadata         TEXT,
			submitted_at     TEXT NOT NULL
		)`, w.responseTable)
	if _, err := w.db.Exec(ctx, responseQuery); err != nil {
		return fmt.Errorf("init response table: %w", err)
	}

	answerQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			response_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			value       TEXT NOT NULL,
			UNIQUE (response_id, question_id)
		)`, w.answerTable)
	if _, err := w.db.Exec(ctx, answerQuery); err != nil {
		return fmt.Errorf("init answer table: %w", err)
	}

	indexQuery := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_questionnaire ON %s (questionnaire_id)",
		w.responseTable, w.responseTable)
	if _, err := w.db.Exec(ctx, indexQuery); err != nil {
		return fmt.Errorf("init response index: %w", err)
	}
	return nil
}

// Write 在单个事务内写入答卷行与全部答案行
func (w *ResponseWriter) Write(ctx context.Context, r *response.Response) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin response tx: %w", err)
	}

	if err := w.writeInTx(ctx, tx, r); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback response tx: %v (cause: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit response tx: %w", err)
	}
	return nil
}

// Delete 删除一份答卷的全部明细行
//
// 供事实落库失败后的补偿清理使用，答卷行与答案行在同一事务内删除。
func (w *ResponseWriter) Delete(ctx context.Context, responseID uuid.UUID) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin response cleanup tx: %w", err)
	}

	answerQuery := fmt.Sprintf("DELETE FROM %s WHERE response_id = ?", w.answerTable)
	if _, err := tx.Exec(ctx, answerQuery, responseID.String()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete answer rows: %w", err)
	}
	responseQuery := fmt.Sprintf("DELETE FROM %s WHERE id = ?", w.responseTable)
	if _, err := tx.Exec(ctx, responseQuery, responseID.String()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete response row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit response cleanup tx: %w", err)
	}
	return nil
}

func (w *ResponseWriter) writeInTx(ctx context.Context, tx database.ITransaction, r *response.Response) error {
	var metadataJSON *string
	if md := r.Metadata(); len(md) > 0 {
		data, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("marshal response metadata: %w", err)
		}
		s := string(data)
		metadataJSON = &s
	}

	respondent := r.Respondent()
	responseQuery := fmt.Sprintf(`
		INSERT INTO %s (id, questionnaire_id, respondent_type, respondent_id,
			ip_address, user_agent, metadata, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, w.responseTable)
	_, err := tx.Exec(ctx, responseQuery,
		r.GetID().String(), r.QuestionnaireID().String(),
		respondent.Type, respondent.ID,
		r.IPAddress(), r.UserAgent(), metadataJSON,
		r.SubmittedAt().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert response row: %w", err)
	}

	answerQuery := fmt.Sprintf(
		"INSERT INTO %s (id, response_id, question_id, value) VALUES (?, ?, ?, ?)",
		w.answerTable)
	for _, a := range r.Answers() {
		valueJSON, err := json.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("marshal answer value: %w", err)
		}
		_, err = tx.Exec(ctx, answerQuery,
			a.ID.String(), r.GetID().String(), a.QuestionID.String(), string(valueJSON))
		if err != nil {
			return fmt.Errorf("insert answer row: %w", err)
		}
	}
	return nil
}
