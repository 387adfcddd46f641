package projection

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"wenjuan/domain/eventsourced"
	"wenjuan/eventing"
	"wenjuan/eventing/registry"
	"wenjuan/eventing/store"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
	"wenjuan/response"
	"wenjuan/storage/database/basic"
)

type fixture struct {
	eventStore     *store.MemoryEventStore
	registry       *registry.Registry
	manager        *Manager
	questionnaires *eventsourced.Repository[*questionnaire.Questionnaire]
	responses      *eventsourced.Repository[*response.Response]
	qStore         *readmodel.SQLQuestionnaireStore
	rStore         *readmodel.SQLResponseStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	wrapped := basic.Wrap(db)

	f := &fixture{
		eventStore: store.NewMemoryEventStore(),
		registry:   registry.NewRegistry(),
	}
	require.NoError(t, questionnaire.RegisterEvents(f.registry))
	require.NoError(t, response.RegisterEvents(f.registry))

	f.questionnaires, err = eventsourced.NewRepository(eventsourced.RepositoryOptions[*questionnaire.Questionnaire]{
		AggregateType: questionnaire.AggregateType,
		Factory:       questionnaire.New,
		EventStore:    f.eventStore,
		Registry:      f.registry,
	})
	require.NoError(t, err)
	f.responses, err = eventsourced.NewRepository(eventsourced.RepositoryOptions[*response.Response]{
		AggregateType: response.AggregateType,
		Factory:       response.New,
		EventStore:    f.eventStore,
		Registry:      f.registry,
	})
	require.NoError(t, err)

	f.qStore = readmodel.NewSQLQuestionnaireStore(wrapped)
	require.NoError(t, f.qStore.InitSchema(ctx))
	f.rStore = readmodel.NewSQLResponseStore(wrapped)
	require.NoError(t, f.rStore.InitSchema(ctx))

	f.manager, err = NewManager(ManagerOptions{
		EventStore: f.eventStore,
		Registry:   f.registry,
		ChunkSize:  2, // 小分块验证分页推进
	})
	require.NoError(t, err)
	f.manager.Register(NewQuestionnaireProjector(f.qStore))
	f.manager.Register(NewResponseProjector(f.rStore, f.qStore))
	return f
}

// seedQuestionnaire 创建并发布一份带一道题的问卷
func (f *fixture) seedQuestionnaire(t *testing.T) *questionnaire.Questionnaire {
	t.Helper()
	ctx := context.Background()
	q, err := questionnaire.Create(uuid.New(), "满意度调查", "sat-survey", "",
		questionnaire.Settings{AllowAnonymous: true}, questionnaire.DateRange{})
	require.NoError(t, err)
	question, err := questionnaire.NewQuestion(uuid.New(), "满意吗？", "boolean", nil, true, 1)
	require.NoError(t, err)
	require.NoError(t, q.AddQuestion(question))
	require.NoError(t, q.Publish())
	require.NoError(t, f.questionnaires.Save(ctx, q))
	return q
}

func (f *fixture) seedResponse(t *testing.T, questionnaireID uuid.UUID) *response.Response {
	t.Helper()
	ctx := context.Background()
	a, err := response.NewAnswer(uuid.New(), uuid.New(), response.BoolValue(true))
	require.NoError(t, err)
	r, err := response.Submit(uuid.New(), questionnaireID, response.Anonymous(), "", "", []response.Answer{a}, nil)
	require.NoError(t, err)
	require.NoError(t, f.responses.Save(ctx, r))
	return r
}

func TestManager_RebuildAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := f.seedQuestionnaire(t)
	f.seedResponse(t, q.GetID())
	f.seedResponse(t, q.GetID())

	result, err := f.manager.RebuildAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), result.EventsProcessed) // created + question_added + published + 2 submitted
	require.Equal(t, int64(5), result.LastSequence)

	m, err := f.qStore.GetByID(ctx, q.GetID())
	require.NoError(t, err)
	require.Equal(t, questionnaire.StatusPublished, m.Status)
	require.Equal(t, 1, m.QuestionCount)
	require.Equal(t, 2, m.ResponseCount)
	require.NotNil(t, m.PublishedAt)

	responses, err := f.rStore.ListByQuestionnaire(ctx, q.GetID(), 10, 0)
	require.NoError(t, err)
	require.Len(t, responses, 2)
}

func TestManager_RebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := f.seedQuestionnaire(t)
	f.seedResponse(t, q.GetID())

	_, err := f.manager.RebuildAll(ctx)
	require.NoError(t, err)

	// 第二次全量重建产出完全一致
	_, err = f.manager.RebuildAll(ctx)
	require.NoError(t, err)

	m, err := f.qStore.GetByID(ctx, q.GetID())
	require.NoError(t, err)
	require.Equal(t, 1, m.ResponseCount)

	count, err := f.rStore.CountByQuestionnaire(ctx, q.GetID())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestManager_FilteredRebuild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q1 := f.seedQuestionnaire(t)
	q2, err := questionnaire.Create(uuid.New(), "另一份", "another", "",
		questionnaire.Settings{AllowAnonymous: true}, questionnaire.DateRange{})
	require.NoError(t, err)
	require.NoError(t, f.questionnaires.Save(ctx, q2))

	// 仅重建指定聚合
	_, err = f.manager.Rebuild(ctx, RebuildOptions{
		AggregateID: q1.GetID(),
		Projections: []string{"questionnaire_read_model"},
	})
	require.NoError(t, err)

	_, err = f.qStore.GetByID(ctx, q1.GetID())
	require.NoError(t, err)
	_, err = f.qStore.GetByID(ctx, q2.GetID())
	require.Error(t, err)

	// 未知投影名报错
	_, err = f.manager.Rebuild(ctx, RebuildOptions{Projections: []string{"nope"}})
	require.Error(t, err)
}

func TestManager_CheckpointAndCatchUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := f.seedQuestionnaire(t)

	_, err := f.manager.RebuildAll(ctx)
	require.NoError(t, err)

	cp, err := f.manager.checkpoints.Get(ctx, "questionnaire_read_model")
	require.NoError(t, err)
	require.Equal(t, int64(3), cp.Position)

	// 新事件到达后增量追赶，不清空已有产出
	f.seedResponse(t, q.GetID())
	result, err := f.manager.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.EventsProcessed)

	m, err := f.qStore.GetByID(ctx, q.GetID())
	require.NoError(t, err)
	require.Equal(t, 1, m.ResponseCount)
}

func TestManager_SameRangeReplayKeepsQuestionCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q := f.seedQuestionnaire(t)

	// 草稿问卷：加两道题再删一道，覆盖增删两个方向的折叠
	draft, err := questionnaire.Create(uuid.New(), "草稿问卷", "draft-survey", "",
		questionnaire.Settings{AllowAnonymous: true}, questionnaire.DateRange{})
	require.NoError(t, err)
	keep, err := questionnaire.NewQuestion(uuid.New(), "保留的题", "text", nil, true, 1)
	require.NoError(t, err)
	dropped, err := questionnaire.NewQuestion(uuid.New(), "删掉的题", "text", nil, false, 2)
	require.NoError(t, err)
	require.NoError(t, draft.AddQuestion(keep))
	require.NoError(t, draft.AddQuestion(dropped))
	require.NoError(t, draft.RemoveQuestion(dropped.ID))
	require.NoError(t, f.questionnaires.Save(ctx, draft))

	_, err = f.manager.RebuildAll(ctx)
	require.NoError(t, err)

	// 中途失败后按同一范围增量补放两次：题目数不随重复折叠漂移
	for i := 0; i < 2; i++ {
		_, err = f.manager.Rebuild(ctx, RebuildOptions{AfterSequence: 1, SkipReset: true})
		require.NoError(t, err)
	}

	m, err := f.qStore.GetByID(ctx, q.GetID())
	require.NoError(t, err)
	require.Equal(t, 1, m.QuestionCount)
	require.Len(t, m.QuestionIDs, 1)

	dm, err := f.qStore.GetByID(ctx, draft.GetID())
	require.NoError(t, err)
	require.Equal(t, 1, dm.QuestionCount)
	require.Equal(t, []uuid.UUID{keep.ID}, dm.QuestionIDs)
}

// failingProjection 总是失败的投影
type failingProjection struct{ resets int }

func (p *failingProjection) Name() string           { return "failing" }
func (p *failingProjection) InterestedIn() []string { return nil }
func (p *failingProjection) Reset(context.Context) error {
	p.resets++
	return nil
}
func (p *failingProjection) Handle(context.Context, *eventing.Event, any) error {
	return fmt.Errorf("boom")
}

func TestManager_DeadLetter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedQuestionnaire(t)

	failing := &failingProjection{}

	// 无死信回调：重试耗尽后中止
	m1, err := NewManager(ManagerOptions{EventStore: f.eventStore, Registry: f.registry})
	require.NoError(t, err)
	m1.Register(failing)
	_, err = m1.RebuildAll(ctx)
	require.Error(t, err)

	// 有死信回调：记录后继续
	var deadLettered []int64
	m2, err := NewManager(ManagerOptions{
		EventStore: f.eventStore,
		Registry:   f.registry,
		DeadLetter: func(ctx context.Context, name string, evt *eventing.Event, handleErr error) error {
			deadLettered = append(deadLettered, evt.Sequence)
			return nil
		},
	})
	require.NoError(t, err)
	m2.Register(failing)
	result, err := m2.RebuildAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), result.EventsProcessed)
	require.Len(t, deadLettered, 3)
}
