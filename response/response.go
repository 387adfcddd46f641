// Package response 实现答卷聚合
//
// 答卷是一次性聚合：提交即创建，此后仅支持答案值替换。防重与
// 校验由提交管道在聚合外完成，聚合只保证自身数据完整。
package response

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/domain"
	"wenjuan/domain/eventsourced"
	"wenjuan/errors"
	"wenjuan/validation"
)

// AggregateType 聚合类型名称
const AggregateType = "Response"

// Response 答卷聚合根
type Response struct {
	eventsourced.AggregateRoot

	questionnaireID uuid.UUID
	respondent      Respondent
	ipAddress       string
	userAgent       string
	answers         map[uuid.UUID]Answer
	metadata        map[string]any
	submittedAt     time.Time
}

// New 创建空聚合（仓储工厂用）
func New(id uuid.UUID) *Response {
	r := &Response{answers: make(map[uuid.UUID]Answer)}
	r.AggregateRoot = eventsourced.NewAggregateRoot(id, AggregateType, r.applyEvent)
	return r
}

// Submit 提交答卷
func Submit(id, questionnaireID uuid.UUID, respondent Respondent, ipAddress, userAgent string, answers []Answer, metadata map[string]any) (*Response, error) {
	if questionnaireID == uuid.Nil {
		return nil, errors.NewValidationError("问卷ID不能为空")
	}
	if err := respondent.Validate(); err != nil {
		return nil, err
	}
	if ipAddress != "" {
		if err := validation.ValidateIP(ipAddress); err != nil {
			return nil, err
		}
	}
	if len(answers) == 0 {
		return nil, errors.NewValidationError("答卷至少包含一个答案")
	}
	seen := make(map[uuid.UUID]bool, len(answers))
	for _, a := range answers {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.QuestionID] {
			return nil, errors.NewValidationError("同一题目不能重复作答: " + a.QuestionID.String())
		}
		seen[a.QuestionID] = true
	}

	r := New(id)
	err := r.ApplyAndRecord(&Submitted{
		ResponseID:      id,
		QuestionnaireID: questionnaireID,
		Respondent:      respondent,
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
		Answers:         answers,
		Metadata:        metadata,
		SubmittedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// 访问器

func (r *Response) QuestionnaireID() uuid.UUID { return r.questionnaireID }
func (r *Response) Respondent() Respondent     { return r.respondent }
func (r *Response) IPAddress() string          { return r.ipAddress }
func (r *Response) UserAgent() string          { return r.userAgent }
func (r *Response) SubmittedAt() time.Time     { return r.submittedAt }
func (r *Response) Metadata() map[string]any   { return r.metadata }

// AnswerCount 答案数量
func (r *Response) AnswerCount() int { return len(r.answers) }

// Answer 按题目ID查找答案
func (r *Response) Answer(questionID uuid.UUID) (Answer, bool) {
	a, ok := r.answers[questionID]
	return a, ok
}

// Answers 返回全部答案的副本
func (r *Response) Answers() []Answer {
	result := make([]Answer, 0, len(r.answers))
	for _, a := range r.answers {
		result = append(result, a)
	}
	return result
}

// ReplaceAnswer 替换已有题目的答案值
func (r *Response) ReplaceAnswer(questionID uuid.UUID, value Value) error {
	if _, ok := r.answers[questionID]; !ok {
		return errors.NewValidationError("答卷中不存在该题目的答案: " + questionID.String())
	}
	if value.Kind() == "" {
		return errors.NewValidationError("答案值不能为空")
	}
	return r.ApplyAndRecord(&AnswerReplaced{QuestionID: questionID, Value: value})
}

// applyEvent 事件分派
func (r *Response) applyEvent(evt domain.IDomainEvent) error {
	switch e := evt.(type) {
	case *Submitted:
		r.questionnaireID = e.QuestionnaireID
		r.respondent = e.Respondent
		r.ipAddress = e.IPAddress
		r.userAgent = e.UserAgent
		r.metadata = e.Metadata
		r.submittedAt = e.SubmittedAt
		r.answers = make(map[uuid.UUID]Answer, len(e.Answers))
		for _, a := range e.Answers {
			r.answers[a.QuestionID] = a
		}
	case *AnswerReplaced:
		a := r.answers[e.QuestionID]
		a.Value = e.Value
		r.answers[e.QuestionID] = a
	default:
		return fmt.Errorf("response: unhandled event type %T", evt)
	}
	return nil
}

var _ eventsourced.IEventSourcedAggregate = (*Response)(nil)
