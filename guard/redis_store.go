package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisMarkStore 基于 Redis SETNX 的标识登记存储
//
// 适合多实例部署下的防重登记；TTL 为 0 时永不过期。
type RedisMarkStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisMarkStore 创建 Redis 登记存储
func NewRedisMarkStore(client redis.UniversalClient) *RedisMarkStore {
	return &RedisMarkStore{client: client, keyPrefix: "wenjuan:guard:"}
}

// WithKeyPrefix 指定键前缀
func (s *RedisMarkStore) WithKeyPrefix(prefix string) *RedisMarkStore {
	s.keyPrefix = prefix
	return s
}

// WithTTL 指定登记过期时间
func (s *RedisMarkStore) WithTTL(ttl time.Duration) *RedisMarkStore {
	s.ttl = ttl
	return s
}

func (s *RedisMarkStore) key(questionnaireID uuid.UUID, strategy, subjectKey string) string {
	return s.keyPrefix + questionnaireID.String() + ":" + strategy + ":" + subjectKey
}

// Mark 以 SETNX 原子登记，键已存在返回 false
func (s *RedisMarkStore) Mark(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(questionnaireID, strategy, subjectKey), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis mark submission: %w", err)
	}
	return ok, nil
}

// Exists 查询标识是否已登记
func (s *RedisMarkStore) Exists(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(questionnaireID, strategy, subjectKey)).Result()
	if err != nil {
		return false, fmt.Errorf("redis query submission mark: %w", err)
	}
	return n > 0, nil
}

var _ IMarkStore = (*RedisMarkStore)(nil)
