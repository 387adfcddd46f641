package pipeline

import (
	"context"
	"fmt"
	"time"

	"wenjuan/domain/eventsourced"
	"wenjuan/errors"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
)

// EnsureQuestionnaireIsOpen 开放检查阶段
//
// 从事件存储加载问卷聚合（事实来源），检查状态、开放时间窗口
// 与提交总量上限。答卷计数来自答卷读模型的事实统计。
type EnsureQuestionnaireIsOpen struct {
	questionnaires *eventsourced.Repository[*questionnaire.Questionnaire]
	responses      readmodel.IResponseReadStore
	now            func() time.Time
}

// NewEnsureQuestionnaireIsOpen 创建开放检查阶段
func NewEnsureQuestionnaireIsOpen(
	questionnaires *eventsourced.Repository[*questionnaire.Questionnaire],
	responses readmodel.IResponseReadStore,
) *EnsureQuestionnaireIsOpen {
	return &EnsureQuestionnaireIsOpen{
		questionnaires: questionnaires,
		responses:      responses,
		now:            time.Now,
	}
}

// WithClock 替换时钟（测试用）
func (s *EnsureQuestionnaireIsOpen) WithClock(now func() time.Time) *EnsureQuestionnaireIsOpen {
	s.now = now
	return s
}

func (s *EnsureQuestionnaireIsOpen) Name() string { return "ensure_questionnaire_is_open" }

func (s *EnsureQuestionnaireIsOpen) Execute(ctx context.Context, sub *Submission, next Next) error {
	q, err := s.questionnaires.GetByID(ctx, sub.QuestionnaireID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return errors.NewNotFoundError("问卷不存在: " + sub.QuestionnaireID.String())
		}
		return fmt.Errorf("load questionnaire: %w", err)
	}

	if q.Status() != questionnaire.StatusPublished {
		return errors.NewQuestionnaireClosedError(
			fmt.Sprintf("问卷未开放（当前状态 %s）", q.Status()))
	}
	now := s.now().UTC()
	if !q.DateRange().Contains(now) {
		return errors.NewQuestionnaireClosedError("问卷不在开放时间窗口内")
	}
	if limit := q.Settings().SubmissionLimit; limit > 0 {
		count, err := s.responses.CountByQuestionnaire(ctx, sub.QuestionnaireID)
		if err != nil {
			return fmt.Errorf("count responses: %w", err)
		}
		if count >= limit {
			return errors.NewQuestionnaireClosedError("问卷已达到提交上限")
		}
	}
	if !q.Settings().AllowAnonymous && sub.Respondent.IsAnonymous() {
		return errors.NewValidationError("该问卷不接受匿名提交")
	}

	sub.Questionnaire = q
	return next(ctx)
}

var _ IStage = (*EnsureQuestionnaireIsOpen)(nil)
