package sql

import (
	"context"
	stdsql "database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"wenjuan/eventing"
	"wenjuan/eventing/store"
	"wenjuan/storage/database/basic"
)

// newTestStore 基于内存 sqlite 创建事件存储
//
// 限制单连接：modernc sqlite 的 :memory: 库按连接隔离。
func newTestStore(t *testing.T) *SQLEventStore {
	t.Helper()
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLEventStore(basic.Wrap(db), "")
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

type testPayload struct {
	Value string `json:"value"`
}

func makeEvents(t *testing.T, aggregateID uuid.UUID, fromVersion uint64, count int) []*eventing.Event {
	t.Helper()
	events := make([]*eventing.Event, 0, count)
	for i := 0; i < count; i++ {
		evt, err := eventing.NewEvent(aggregateID, "TestAggregate", "test.happened",
			fromVersion+uint64(i)+1, testPayload{Value: "v"})
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

func TestSQLEventStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	aggregateID := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 0, 3), 0))
	require.NoError(t, s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 3, 2), 3))

	events, err := s.LoadEvents(ctx, aggregateID, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, evt := range events {
		require.Equal(t, uint64(i+1), evt.Version)
		require.Equal(t, aggregateID, evt.AggregateID)
		require.Equal(t, "test.happened", evt.Type)
		require.JSONEq(t, `{"value":"v"}`, string(evt.Payload))
	}

	// 全局序列号由存储分配且单调递增
	for i := 1; i < len(events); i++ {
		require.Greater(t, events[i].Sequence, events[i-1].Sequence)
	}

	version, err := s.GetAggregateVersion(ctx, aggregateID)
	require.NoError(t, err)
	require.Equal(t, uint64(5), version)

	exists, err := s.HasAggregate(ctx, aggregateID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSQLEventStore_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	aggregateID := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 0, 2), 0))

	err := s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 0, 1), 0)
	require.Error(t, err)
	require.True(t, eventing.IsConcurrencyError(err))

	var concurrencyErr *eventing.ConcurrencyError
	require.ErrorAs(t, err, &concurrencyErr)
	require.Equal(t, uint64(0), concurrencyErr.ExpectedVersion)
	require.Equal(t, uint64(2), concurrencyErr.ActualVersion)

	// 冲突不产生部分写入
	events, err := s.LoadEvents(ctx, aggregateID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestSQLEventStore_StreamEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	agg1 := uuid.New()
	agg2 := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, agg1, makeEvents(t, agg1, 0, 3), 0))

	other, err := eventing.NewEvent(agg2, "TestAggregate", "other.happened", 1, testPayload{Value: "o"})
	require.NoError(t, err)
	require.NoError(t, s.AppendEvents(ctx, agg2, []*eventing.Event{other}, 0))

	// 类型过滤
	result, err := s.StreamEvents(ctx, &store.StreamOptions{Types: []string{"other.happened"}})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	require.Equal(t, agg2, result.Events[0].AggregateID)

	// 聚合过滤 + 范围
	result, err = s.StreamEvents(ctx, &store.StreamOptions{AggregateID: agg1, AfterSequence: 1})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	// 分块
	result, err = s.StreamEvents(ctx, &store.StreamOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)
	require.True(t, result.HasMore)

	next, err := s.StreamEvents(ctx, &store.StreamOptions{AfterSequence: result.NextSequence})
	require.NoError(t, err)
	require.Len(t, next.Events, 1)
	require.False(t, next.HasMore)
}

func TestSQLEventStore_LoadEventsEmptyAggregate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	events, err := s.LoadEvents(ctx, uuid.New(), 0)
	require.NoError(t, err)
	require.Empty(t, events)

	version, err := s.GetAggregateVersion(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, version)
}
