package projection

import (
	"context"
	"fmt"

	"wenjuan/errors"
	"wenjuan/eventing"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
)

// QuestionnaireProjector 问卷读模型投影
type QuestionnaireProjector struct {
	store readmodel.IQuestionnaireReadStore
}

// NewQuestionnaireProjector 创建问卷投影
func NewQuestionnaireProjector(store readmodel.IQuestionnaireReadStore) *QuestionnaireProjector {
	return &QuestionnaireProjector{store: store}
}

func (p *QuestionnaireProjector) Name() string { return "questionnaire_read_model" }

func (p *QuestionnaireProjector) InterestedIn() []string {
	return []string{
		questionnaire.EventCreated,
		questionnaire.EventDetailsUpdated,
		questionnaire.EventQuestionAdded,
		questionnaire.EventQuestionUpdated,
		questionnaire.EventQuestionRemoved,
		questionnaire.EventPublished,
		questionnaire.EventClosed,
		// 历史别名标签（重命名前持久化的事件）
		"survey.created",
		"survey.published",
		"survey.closed",
	}
}

func (p *QuestionnaireProjector) Reset(ctx context.Context) error {
	return p.store.Reset(ctx)
}

// Handle 将事件折叠进读模型行
func (p *QuestionnaireProjector) Handle(ctx context.Context, event *eventing.Event, decoded any) error {
	switch e := decoded.(type) {
	case *questionnaire.Created:
		return p.store.Upsert(ctx, &readmodel.QuestionnaireReadModel{
			ID:          e.QuestionnaireID,
			Title:       e.Title,
			Slug:        e.Slug,
			Description: e.Description,
			Status:      questionnaire.StatusDraft,
			Settings:    e.Settings,
			DateRange:   e.DateRange,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   event.Timestamp,
		})
	case *questionnaire.DetailsUpdated:
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {
			m.Title = e.Title
			m.Description = e.Description
			m.Settings = e.Settings
			m.DateRange = e.DateRange
		})
	case *questionnaire.QuestionAdded:
		// 题目数从ID集合派生，同一事件重放多次折叠出同一集合
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {
			m.AddQuestionID(e.Question.ID)
		})
	case *questionnaire.QuestionUpdated:
		// 整体替换不改变题目集合
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {})
	case *questionnaire.QuestionRemoved:
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {
			m.RemoveQuestionID(e.QuestionID)
		})
	case *questionnaire.Published:
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {
			t := e.PublishedAt
			m.Status = questionnaire.StatusPublished
			m.PublishedAt = &t
		})
	case *questionnaire.Closed:
		return p.mutate(ctx, event, func(m *readmodel.QuestionnaireReadModel) {
			t := e.ClosedAt
			m.Status = questionnaire.StatusClosed
			m.ClosedAt = &t
		})
	default:
		return fmt.Errorf("questionnaire projector: unhandled event type %T", decoded)
	}
}

func (p *QuestionnaireProjector) mutate(ctx context.Context, event *eventing.Event, apply func(*readmodel.QuestionnaireReadModel)) error {
	m, err := p.store.GetByID(ctx, event.AggregateID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			// 过滤重放可能跳过了创建事件，缺行时无法折叠
			return fmt.Errorf("questionnaire read model %s missing for event %s", event.AggregateID, event.Type)
		}
		return err
	}
	apply(m)
	m.UpdatedAt = event.Timestamp
	return p.store.Upsert(ctx, m)
}

var _ IProjection = (*QuestionnaireProjector)(nil)
