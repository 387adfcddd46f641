package guard

import (
	"context"
	stdsql "database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"wenjuan/errors"
	"wenjuan/response"
	"wenjuan/storage/database/basic"
)

func identifiedSubmission(t *testing.T, questionnaireID uuid.UUID) Submission {
	t.Helper()
	respondent, err := response.Identified("user", "42")
	require.NoError(t, err)
	return Submission{
		QuestionnaireID: questionnaireID,
		Respondent:      respondent,
		SessionID:       "sess-1",
		IPAddress:       "203.0.113.9",
	}
}

func TestAllowMultiple(t *testing.T) {
	ctx := context.Background()
	g, err := NewRegistry().Resolve(StrategyAllowMultiple, NewMemoryMarkStore())
	require.NoError(t, err)

	sub := identifiedSubmission(t, uuid.New())
	for i := 0; i < 3; i++ {
		allowed, err := g.CanSubmit(ctx, sub)
		require.NoError(t, err)
		require.True(t, allowed)
		require.NoError(t, g.MarkSubmitted(ctx, sub))
	}
}

func TestOnePerUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMarkStore()
	registry := NewRegistry()
	g, err := registry.Resolve(StrategyOnePerUser, store)
	require.NoError(t, err)

	questionnaireID := uuid.New()
	sub := identifiedSubmission(t, questionnaireID)

	allowed, err := g.CanSubmit(ctx, sub)
	require.NoError(t, err)
	require.True(t, allowed)
	require.NoError(t, g.MarkSubmitted(ctx, sub))

	// 同一用户第二次提交被拒
	allowed, err = g.CanSubmit(ctx, sub)
	require.NoError(t, err)
	require.False(t, allowed)
	err = g.MarkSubmitted(ctx, sub)
	require.True(t, errors.IsCode(err, errors.ErrCodeDuplicateSubmission))

	// 另一个用户不受影响
	other := sub
	otherRespondent, err := response.Identified("user", "43")
	require.NoError(t, err)
	other.Respondent = otherRespondent
	allowed, err = g.CanSubmit(ctx, other)
	require.NoError(t, err)
	require.True(t, allowed)

	// 另一份问卷的同一用户不受影响
	fresh := identifiedSubmission(t, uuid.New())
	allowed, err = g.CanSubmit(ctx, fresh)
	require.NoError(t, err)
	require.True(t, allowed)

	// 匿名提交者无法提取用户标识，直接拒绝
	anonymous := Submission{QuestionnaireID: questionnaireID}
	allowed, err = g.CanSubmit(ctx, anonymous)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestOnePerSessionAndIP(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	store := NewMemoryMarkStore()
	questionnaireID := uuid.New()

	session, err := registry.Resolve(StrategyOnePerSession, store)
	require.NoError(t, err)
	ip, err := registry.Resolve(StrategyOnePerIP, store)
	require.NoError(t, err)

	sub := identifiedSubmission(t, questionnaireID)
	require.NoError(t, session.MarkSubmitted(ctx, sub))
	require.NoError(t, ip.MarkSubmitted(ctx, sub))

	// 不同策略的标识互不干扰，但各自拒绝重复
	allowed, err := session.CanSubmit(ctx, sub)
	require.NoError(t, err)
	require.False(t, allowed)
	allowed, err = ip.CanSubmit(ctx, sub)
	require.NoError(t, err)
	require.False(t, allowed)

	// 换会话后会话策略放行，IP策略仍拒绝
	sub2 := sub
	sub2.SessionID = "sess-2"
	allowed, err = session.CanSubmit(ctx, sub2)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = ip.CanSubmit(ctx, sub2)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	_, err := NewRegistry().Resolve("per-galaxy", NewMemoryMarkStore())
	require.Error(t, err)
}

func TestMemoryMarkStore_ConcurrentMark(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMarkStore()
	questionnaireID := uuid.New()

	// 并发登记同一主体，恰好一个成功
	var wg sync.WaitGroup
	var successCount int32
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Mark(ctx, questionnaireID, StrategyOnePerUser, "user:42")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), successCount)
}

func TestSQLMarkStore(t *testing.T) {
	ctx := context.Background()
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := NewSQLMarkStore(basic.Wrap(db))
	require.NoError(t, store.InitSchema(ctx))

	questionnaireID := uuid.New()

	ok, err := store.Mark(ctx, questionnaireID, StrategyOnePerUser, "user:42")
	require.NoError(t, err)
	require.True(t, ok)

	// 唯一约束兜底：重复登记返回 false 而非报错
	ok, err = store.Mark(ctx, questionnaireID, StrategyOnePerUser, "user:42")
	require.NoError(t, err)
	require.False(t, ok)

	exists, err := store.Exists(ctx, questionnaireID, StrategyOnePerUser, "user:42")
	require.NoError(t, err)
	require.True(t, exists)

	// 不同策略维度各自独立
	ok, err = store.Mark(ctx, questionnaireID, StrategyOnePerIP, "user:42")
	require.NoError(t, err)
	require.True(t, ok)
}
