package pipeline

import (
	"context"
	"time"

	"wenjuan/logging"
	"wenjuan/messaging"
	"wenjuan/response"
)

// MessageTypeResponseSubmitted 提交成功广播的消息类型
const MessageTypeResponseSubmitted = "response.submitted"

// ResponseSubmittedPayload 广播消息载荷
type ResponseSubmittedPayload struct {
	ResponseID      string `json:"response_id"`
	QuestionnaireID string `json:"questionnaire_id"`
	RespondentKey   string `json:"respondent_key"`
	AnswerCount     int    `json:"answer_count"`
	SubmittedAt     string `json:"submitted_at"`
}

// FireResponseEvent 应用事件广播阶段
//
// 尽力而为：广播失败只记日志，不影响提交结果。事实已在事件
// 存储中，订阅方可通过投影补放获得最终一致。
type FireResponseEvent struct {
	bus    messaging.IMessageBus
	logger logging.Logger
}

// NewFireResponseEvent 创建广播阶段
func NewFireResponseEvent(bus messaging.IMessageBus) *FireResponseEvent {
	return &FireResponseEvent{bus: bus, logger: logging.ComponentLogger("pipeline.fire_event")}
}

func (s *FireResponseEvent) Name() string { return "fire_response_event" }

func (s *FireResponseEvent) Execute(ctx context.Context, sub *Submission, next Next) error {
	if err := next(ctx); err != nil {
		return err
	}
	if s.bus == nil || sub.Response == nil {
		return nil
	}

	message := messaging.NewMessage(MessageTypeResponseSubmitted, buildPayload(sub.Response))
	if err := s.bus.Publish(ctx, message); err != nil {
		s.logger.Warn(ctx, "广播提交事件失败",
			logging.String("response_id", sub.Response.GetID().String()),
			logging.Error(err))
	}
	return nil
}

func buildPayload(r *response.Response) ResponseSubmittedPayload {
	return ResponseSubmittedPayload{
		ResponseID:      r.GetID().String(),
		QuestionnaireID: r.QuestionnaireID().String(),
		RespondentKey:   r.Respondent().Key(),
		AnswerCount:     r.AnswerCount(),
		SubmittedAt:     r.SubmittedAt().UTC().Format(time.RFC3339Nano),
	}
}

var _ IStage = (*FireResponseEvent)(nil)
