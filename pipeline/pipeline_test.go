package pipeline

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"wenjuan/domain/eventsourced"
	"wenjuan/errors"
	"wenjuan/eventing/registry"
	"wenjuan/eventing/store"
	"wenjuan/guard"
	"wenjuan/messaging"
	synctransport "wenjuan/messaging/transport/sync"
	"wenjuan/qtype"
	"wenjuan/questionnaire"
	"wenjuan/readmodel"
	"wenjuan/response"
	"wenjuan/storage/database/basic"
)

type fixture struct {
	pipeline       *Pipeline
	eventStore     *store.MemoryEventStore
	questionnaires *eventsourced.Repository[*questionnaire.Questionnaire]
	responses      *eventsourced.Repository[*response.Response]
	responseReads  *readmodel.SQLResponseStore
	markStore      *guard.MemoryMarkStore
	published      []messaging.IMessage
	db             *basic.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	rawDB, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	rawDB.SetMaxOpenConns(1)
	t.Cleanup(func() { rawDB.Close() })
	db := basic.Wrap(rawDB)

	eventRegistry := registry.NewRegistry()
	require.NoError(t, questionnaire.RegisterEvents(eventRegistry))
	require.NoError(t, response.RegisterEvents(eventRegistry))
	eventStore := store.NewMemoryEventStore()

	f := &fixture{eventStore: eventStore, markStore: guard.NewMemoryMarkStore(), db: db}

	f.questionnaires, err = eventsourced.NewRepository(eventsourced.RepositoryOptions[*questionnaire.Questionnaire]{
		AggregateType: questionnaire.AggregateType,
		Factory:       questionnaire.New,
		EventStore:    eventStore,
		Registry:      eventRegistry,
	})
	require.NoError(t, err)
	f.responses, err = eventsourced.NewRepository(eventsourced.RepositoryOptions[*response.Response]{
		AggregateType: response.AggregateType,
		Factory:       response.New,
		EventStore:    eventStore,
		Registry:      eventRegistry,
	})
	require.NoError(t, err)

	f.responseReads = readmodel.NewSQLResponseStore(db)
	require.NoError(t, f.responseReads.InitSchema(ctx))

	writer := NewResponseWriter(db)
	require.NoError(t, writer.InitSchema(ctx))

	transport := synctransport.NewSyncTransport()
	require.NoError(t, transport.Start(ctx))
	bus := messaging.NewMessageBus(transport)
	require.NoError(t, bus.Subscribe(ctx, MessageTypeResponseSubmitted, messaging.HandlerFunc{
		Name: "recorder",
		Fn: func(ctx context.Context, m messaging.IMessage) error {
			f.published = append(f.published, m)
			return nil
		},
	}))

	f.pipeline = New(
		NewEnsureQuestionnaireIsOpen(f.questionnaires, f.responseReads),
		NewValidateSubmission(qtype.NewValidator(qtype.NewDefaultRegistry())),
		NewCheckDuplicateSubmission(guard.NewRegistry(), f.markStore),
		NewSaveResponse(f.responses, writer),
		NewFireResponseEvent(bus),
	)
	return f
}

// seedQuestionnaire 创建并发布问卷，返回问卷与题目
func (f *fixture) seedQuestionnaire(t *testing.T, settings questionnaire.Settings) (*questionnaire.Questionnaire, questionnaire.Question) {
	t.Helper()
	ctx := context.Background()
	q, err := questionnaire.Create(uuid.New(), "满意度调查", "sat-survey", "", settings, questionnaire.DateRange{})
	require.NoError(t, err)
	question, err := questionnaire.NewQuestion(uuid.New(), "整体满意度如何？", "radio",
		[]string{"满意", "一般", "不满意"}, true, 1)
	require.NoError(t, err)
	require.NoError(t, q.AddQuestion(question))
	require.NoError(t, q.Publish())
	require.NoError(t, f.questionnaires.Save(ctx, q))
	return q, question
}

func (f *fixture) submission(t *testing.T, questionnaireID uuid.UUID, question questionnaire.Question, value response.Value) *Submission {
	t.Helper()
	a, err := response.NewAnswer(uuid.New(), question.ID, value)
	require.NoError(t, err)
	respondent, err := response.Identified("user", "alice")
	require.NoError(t, err)
	return &Submission{
		QuestionnaireID: questionnaireID,
		Respondent:      respondent,
		SessionID:       "sess-1",
		IPAddress:       "203.0.113.9",
		UserAgent:       "go-test",
		Answers:         []response.Answer{a},
	}
}

func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var count int
	row := f.db.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table)
	require.NoError(t, row.Scan(&count))
	return count
}

func TestPipeline_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{GuardStrategy: guard.StrategyOnePerUser})

	r, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
	require.NoError(t, err)
	require.NotNil(t, r)

	// 事实在事件存储中
	loaded, err := f.responses.GetByID(ctx, r.GetID())
	require.NoError(t, err)
	require.Equal(t, q.GetID(), loaded.QuestionnaireID())
	require.Equal(t, "user:alice", loaded.Respondent().Key())

	// 明细行已写入
	require.Equal(t, 1, f.countRows(t, DefaultResponseTableName))
	require.Equal(t, 1, f.countRows(t, DefaultAnswerTableName))

	// 防重标识已登记
	marked, err := f.markStore.Exists(ctx, q.GetID(), guard.StrategyOnePerUser, "user:alice")
	require.NoError(t, err)
	require.True(t, marked)

	// 应用事件已广播
	require.Len(t, f.published, 1)
	payload, ok := f.published[0].GetPayload().(ResponseSubmittedPayload)
	require.True(t, ok)
	require.Equal(t, r.GetID().String(), payload.ResponseID)
}

func TestPipeline_ClosedQuestionnaireShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{AllowAnonymous: true})
	require.NoError(t, q.Close())
	require.NoError(t, f.questionnaires.Save(ctx, q))

	_, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
	require.True(t, errors.IsCode(err, errors.ErrCodeQuestionnaireClosed))

	// 短路：无明细行、无标识、无广播
	require.Zero(t, f.countRows(t, DefaultResponseTableName))
	marked, err := f.markStore.Exists(ctx, q.GetID(), guard.StrategyOnePerUser, "user:alice")
	require.NoError(t, err)
	require.False(t, marked)
	require.Empty(t, f.published)
}

func TestPipeline_UnknownQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, question := f.seedQuestionnaire(t, questionnaire.Settings{})

	_, err := f.pipeline.Submit(ctx, f.submission(t, uuid.New(), question, response.StringValue("满意")))
	require.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestPipeline_ValidationFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{GuardStrategy: guard.StrategyOnePerUser})

	// 选项不存在
	_, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("很满意")))
	require.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	require.Zero(t, f.countRows(t, DefaultResponseTableName))
	marked, err := f.markStore.Exists(ctx, q.GetID(), guard.StrategyOnePerUser, "user:alice")
	require.NoError(t, err)
	require.False(t, marked)
	require.Empty(t, f.published)
}

func TestPipeline_DuplicateSubmissionRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{GuardStrategy: guard.StrategyOnePerUser})

	_, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
	require.NoError(t, err)

	// 同一用户第二次提交在预检被拒，不产生新行
	_, err = f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("一般")))
	require.True(t, errors.IsCode(err, errors.ErrCodeDuplicateSubmission))
	require.Equal(t, 1, f.countRows(t, DefaultResponseTableName))
	require.Len(t, f.published, 1)
}

func TestPipeline_RowWriteFailureLeavesNoFact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{GuardStrategy: guard.StrategyOnePerUser})

	// 令答案行写入必然失败
	_, err := f.db.Exec(ctx, "DROP TABLE "+DefaultAnswerTableName)
	require.NoError(t, err)

	_, err = f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
	require.Error(t, err)

	// 明细写入失败时事实不落库：事件流中没有提交事件
	streamResult, err := f.eventStore.StreamEvents(ctx, &store.StreamOptions{
		Types: []string{response.EventSubmitted},
	})
	require.NoError(t, err)
	require.Empty(t, streamResult.Events)

	// 同一事务回滚，答卷行也不存在
	require.Zero(t, f.countRows(t, DefaultResponseTableName))

	// 未登记防重标识、未广播，失败后的重试不会被预检拦截
	marked, err := f.markStore.Exists(ctx, q.GetID(), guard.StrategyOnePerUser, "user:alice")
	require.NoError(t, err)
	require.False(t, marked)
	require.Empty(t, f.published)
}

func TestPipeline_AllowMultipleByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{AllowMultipleSubmissions: true})

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.countRows(t, DefaultResponseTableName))
}

func TestPipeline_SubmissionLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{
		AllowMultipleSubmissions: true,
		SubmissionLimit:          2,
	})

	// 答卷计数来自读模型，这里模拟投影已写入2份答卷
	for i := 0; i < 2; i++ {
		require.NoError(t, f.responseReads.Upsert(ctx, &readmodel.ResponseReadModel{
			ID:              uuid.New(),
			QuestionnaireID: q.GetID(),
			RespondentKey:   "anonymous",
			SubmittedAt:     time.Now().UTC(),
		}))
	}

	_, err := f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("满意")))
	require.True(t, errors.IsCode(err, errors.ErrCodeQuestionnaireClosed))
}

func TestPipeline_AnonymousRejectedWhenNotAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	q, question := f.seedQuestionnaire(t, questionnaire.Settings{AllowAnonymous: false, AllowMultipleSubmissions: true})

	sub := f.submission(t, q.GetID(), question, response.StringValue("满意"))
	sub.Respondent = response.Anonymous()
	_, err := f.pipeline.Submit(ctx, sub)
	require.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPipeline_TimeWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 定制一个未来才开放的问卷
	future := time.Now().Add(time.Hour)
	q, err := questionnaire.Create(uuid.New(), "未来问卷", "future", "",
		questionnaire.Settings{AllowAnonymous: true, AllowMultipleSubmissions: true},
		questionnaire.DateRange{StartsAt: &future})
	require.NoError(t, err)
	question, err := questionnaire.NewQuestion(uuid.New(), "题目", "text", nil, true, 1)
	require.NoError(t, err)
	require.NoError(t, q.AddQuestion(question))
	require.NoError(t, q.Publish())
	require.NoError(t, f.questionnaires.Save(ctx, q))

	_, err = f.pipeline.Submit(ctx, f.submission(t, q.GetID(), question, response.StringValue("回答")))
	require.True(t, errors.IsCode(err, errors.ErrCodeQuestionnaireClosed))
}
