package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"wenjuan/eventing"
)

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

func TestMemoryEventStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	aggregateID := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 0, 3), 0))

	events, err := s.LoadEvents(ctx, aggregateID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, evt := range events {
		require.Equal(t, uint64(i+1), evt.Version)
		require.Equal(t, int64(i+1), evt.Sequence)
	}

	// afterVersion 过滤
	tail, err := s.LoadEvents(ctx, aggregateID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(3), tail[0].Version)
}

func TestMemoryEventStore_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	aggregateID := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 0, 2), 0))

	// 过期的 expectedVersion 必须被拒绝且无部分写入
	err := s.AppendEvents(ctx, aggregateID, makeEvents(t, aggregateID, 1, 1), 1)
	require.Error(t, err)
	require.True(t, eventing.IsConcurrencyError(err))

	version, err := s.GetAggregateVersion(ctx, aggregateID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), version)
}

func TestMemoryEventStore_VersionGapRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	aggregateID := uuid.New()

	// 批内版本不连续
	events := makeEvents(t, aggregateID, 0, 1)
	events = append(events, makeEvents(t, aggregateID, 2, 1)...)
	err := s.AppendEvents(ctx, aggregateID, events, 0)
	require.Error(t, err)

	exists, err := s.HasAggregate(ctx, aggregateID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMemoryEventStore_StreamEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	agg1 := uuid.New()
	agg2 := uuid.New()

	require.NoError(t, s.AppendEvents(ctx, agg1, makeEvents(t, agg1, 0, 3), 0))
	require.NoError(t, s.AppendEvents(ctx, agg2, makeEvents(t, agg2, 0, 2), 0))

	// 全量流按全局序列号升序
	result, err := s.StreamEvents(ctx, &StreamOptions{})
	require.NoError(t, err)
	require.Len(t, result.Events, 5)
	require.False(t, result.HasMore)
	for i := 1; i < len(result.Events); i++ {
		require.Greater(t, result.Events[i].Sequence, result.Events[i-1].Sequence)
	}

	// 范围过滤（(1, 4] 共3个）
	result, err = s.StreamEvents(ctx, &StreamOptions{AfterSequence: 1, UntilSequence: 4})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)

	// 聚合过滤
	result, err = s.StreamEvents(ctx, &StreamOptions{AggregateID: agg2})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	// 分块读取
	result, err = s.StreamEvents(ctx, &StreamOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	require.True(t, result.HasMore)

	next, err := s.StreamEvents(ctx, &StreamOptions{AfterSequence: result.NextSequence, Limit: 10})
	require.NoError(t, err)
	require.Len(t, next.Events, 3)
	require.False(t, next.HasMore)
}
