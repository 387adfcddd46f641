package projection

import (
	"context"
	"fmt"

	"wenjuan/eventing"
	"wenjuan/readmodel"
	"wenjuan/response"
)

// ResponseProjector 答卷读模型投影
//
// 除写入答卷行外，还把问卷读模型的 response_count 按事实重算，
// 保证重复重放不会多计。
type ResponseProjector struct {
	responses      readmodel.IResponseReadStore
	questionnaires readmodel.IQuestionnaireReadStore
}

// NewResponseProjector 创建答卷投影
func NewResponseProjector(responses readmodel.IResponseReadStore, questionnaires readmodel.IQuestionnaireReadStore) *ResponseProjector {
	return &ResponseProjector{responses: responses, questionnaires: questionnaires}
}

func (p *ResponseProjector) Name() string { return "response_read_model" }

func (p *ResponseProjector) InterestedIn() []string {
	return []string{response.EventSubmitted, response.EventAnswerReplaced}
}

func (p *ResponseProjector) Reset(ctx context.Context) error {
	return p.responses.Reset(ctx)
}

func (p *ResponseProjector) Handle(ctx context.Context, event *eventing.Event, decoded any) error {
	switch e := decoded.(type) {
	case *response.Submitted:
		err := p.responses.Upsert(ctx, &readmodel.ResponseReadModel{
			ID:              e.ResponseID,
			QuestionnaireID: e.QuestionnaireID,
			RespondentKey:   e.Respondent.Key(),
			IPAddress:       e.IPAddress,
			AnswerCount:     len(e.Answers),
			SubmittedAt:     e.SubmittedAt,
		})
		if err != nil {
			return err
		}
		count, err := p.responses.CountByQuestionnaire(ctx, e.QuestionnaireID)
		if err != nil {
			return err
		}
		return p.questionnaires.SetResponseCount(ctx, e.QuestionnaireID, count)
	case *response.AnswerReplaced:
		// 答案值替换不影响答卷行的统计字段
		return nil
	default:
		return fmt.Errorf("response projector: unhandled event type %T", decoded)
	}
}

var _ IProjection = (*ResponseProjector)(nil)
