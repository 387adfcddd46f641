// Package readmodel 定义查询侧读模型及其存储
//
// 读模型由投影引擎从事件流构建，可随时清空重建，不是事实来源。
package readmodel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wenjuan/questionnaire"
)

// QuestionnaireReadModel 问卷读模型
type QuestionnaireReadModel struct {
	ID          uuid.UUID               `json:"id"`
	Title       string                  `json:"title"`
	Slug        string                  `json:"slug"`
	Description string                  `json:"description,omitempty"`
	Status      questionnaire.Status    `json:"status"`
	Settings    questionnaire.Settings  `json:"settings"`
	DateRange   questionnaire.DateRange `json:"date_range"`

	// QuestionIDs 当前题目集合；QuestionCount 始终由它派生，
	// 同一事件重放多次折叠出同一集合
	QuestionIDs   []uuid.UUID `json:"question_ids,omitempty"`
	QuestionCount int         `json:"question_count"`
	ResponseCount int         `json:"response_count"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AddQuestionID 将题目并入集合并同步题目数，已存在时不变
func (m *QuestionnaireReadModel) AddQuestionID(id uuid.UUID) {
	for _, existing := range m.QuestionIDs {
		if existing == id {
			return
		}
	}
	m.QuestionIDs = append(m.QuestionIDs, id)
	m.QuestionCount = len(m.QuestionIDs)
}

// RemoveQuestionID 将题目移出集合并同步题目数，不存在时不变
func (m *QuestionnaireReadModel) RemoveQuestionID(id uuid.UUID) {
	for i, existing := range m.QuestionIDs {
		if existing == id {
			m.QuestionIDs = append(m.QuestionIDs[:i], m.QuestionIDs[i+1:]...)
			m.QuestionCount = len(m.QuestionIDs)
			return
		}
	}
}

// IsActive 是否处于已发布状态
func (m *QuestionnaireReadModel) IsActive() bool {
	return m.Status == questionnaire.StatusPublished
}

// IsAcceptingResponses 当前时刻是否接受提交
//
// 要求：已发布、落在开放时间窗口内、未达到提交上限。
func (m *QuestionnaireReadModel) IsAcceptingResponses(now time.Time) bool {
	if !m.IsActive() {
		return false
	}
	if !m.DateRange.Contains(now) {
		return false
	}
	if limit := m.Settings.SubmissionLimit; limit > 0 && m.ResponseCount >= limit {
		return false
	}
	return true
}

// ResponseReadModel 答卷读模型
type ResponseReadModel struct {
	ID              uuid.UUID `json:"id"`
	QuestionnaireID uuid.UUID `json:"questionnaire_id"`
	RespondentKey   string    `json:"respondent_key"`
	IPAddress       string    `json:"ip_address,omitempty"`
	AnswerCount     int       `json:"answer_count"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// IQuestionnaireReadStore 问卷读模型存储
type IQuestionnaireReadStore interface {
	// Upsert 幂等写入（存在则整体覆盖）
	Upsert(ctx context.Context, model *QuestionnaireReadModel) error
	GetByID(ctx context.Context, id uuid.UUID) (*QuestionnaireReadModel, error)
	GetBySlug(ctx context.Context, slug string) (*QuestionnaireReadModel, error)
	List(ctx context.Context, status questionnaire.Status, limit, offset int) ([]*QuestionnaireReadModel, error)
	// SetResponseCount 覆盖答卷计数（投影按事实流重算后写入）
	SetResponseCount(ctx context.Context, id uuid.UUID, count int) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Reset 清空全部数据，重建前调用
	Reset(ctx context.Context) error
}

// IResponseReadStore 答卷读模型存储
type IResponseReadStore interface {
	Upsert(ctx context.Context, model *ResponseReadModel) error
	GetByID(ctx context.Context, id uuid.UUID) (*ResponseReadModel, error)
	ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*ResponseReadModel, error)
	CountByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (int, error)
	Reset(ctx context.Context) error
}
