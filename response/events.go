package response

import (
	"time"

	"github.com/google/uuid"

	"wenjuan/eventing/registry"
)

// 稳定事件标签（持久化标识，勿改）
const (
	EventSubmitted      = "response.submitted"
	EventAnswerReplaced = "response.answer_replaced"
)

// Submitted 答卷已提交
type Submitted struct {
	ResponseID      uuid.UUID      `json:"response_id"`
	QuestionnaireID uuid.UUID      `json:"questionnaire_id"`
	Respondent      Respondent     `json:"respondent"`
	IPAddress       string         `json:"ip_address,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	Answers         []Answer       `json:"answers"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SubmittedAt     time.Time      `json:"submitted_at"`
}

func (Submitted) EventType() string { return EventSubmitted }

// AnswerReplaced 答案值已替换
type AnswerReplaced struct {
	QuestionID uuid.UUID `json:"question_id"`
	Value      Value     `json:"value"`
}

func (AnswerReplaced) EventType() string { return EventAnswerReplaced }

// RegisterEvents 向注册表登记答卷事件
func RegisterEvents(r *registry.Registry) error {
	if err := r.Register(EventSubmitted, func() any { return &Submitted{} }); err != nil {
		return err
	}
	return r.Register(EventAnswerReplaced, func() any { return &AnswerReplaced{} })
}
