package readmodel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wenjuan/cache"
	"wenjuan/questionnaire"
)

// CachedQuestionnaireStore 在问卷读模型存储外加一层 LRU+TTL 缓存
//
// 仅缓存按ID查询；写路径落库后删除对应条目保持一致。
type CachedQuestionnaireStore struct {
	inner IQuestionnaireReadStore
	byID  *cache.Cache[uuid.UUID, *QuestionnaireReadModel]
}

// NewCachedQuestionnaireStore 创建带缓存的问卷读模型存储
func NewCachedQuestionnaireStore(inner IQuestionnaireReadStore, maxSize int, ttl time.Duration) *CachedQuestionnaireStore {
	return &CachedQuestionnaireStore{
		inner: inner,
		byID: cache.New[uuid.UUID, *QuestionnaireReadModel](cache.Config{
			Name:    "questionnaire_read_model",
			MaxSize: maxSize,
			TTL:     ttl,
		}),
	}
}

func (s *CachedQuestionnaireStore) Upsert(ctx context.Context, m *QuestionnaireReadModel) error {
	if err := s.inner.Upsert(ctx, m); err != nil {
		return err
	}
	s.byID.Delete(m.ID)
	return nil
}

func (s *CachedQuestionnaireStore) GetByID(ctx context.Context, id uuid.UUID) (*QuestionnaireReadModel, error) {
	if m, ok := s.byID.Get(id); ok {
		return m, nil
	}
	m, err := s.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.byID.Set(id, m)
	return m, nil
}

func (s *CachedQuestionnaireStore) GetBySlug(ctx context.Context, slug string) (*QuestionnaireReadModel, error) {
	return s.inner.GetBySlug(ctx, slug)
}

func (s *CachedQuestionnaireStore) List(ctx context.Context, status questionnaire.Status, limit, offset int) ([]*QuestionnaireReadModel, error) {
	return s.inner.List(ctx, status, limit, offset)
}

func (s *CachedQuestionnaireStore) SetResponseCount(ctx context.Context, id uuid.UUID, count int) error {
	if err := s.inner.SetResponseCount(ctx, id, count); err != nil {
		return err
	}
	s.byID.Delete(id)
	return nil
}

func (s *CachedQuestionnaireStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.byID.Delete(id)
	return nil
}

func (s *CachedQuestionnaireStore) Reset(ctx context.Context) error {
	if err := s.inner.Reset(ctx); err != nil {
		return err
	}
	s.byID.Clear()
	return nil
}

var _ IQuestionnaireReadStore = (*CachedQuestionnaireStore)(nil)
