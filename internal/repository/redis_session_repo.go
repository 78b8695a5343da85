package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/slothspotter/internal/model"
)

// sessionKeyPrefix はKVストアにおけるセッションキーの名前空間。
const sessionKeyPrefix = "session:"

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッションはアイデンティティを保持するリレーショナルストアから分離され、
// TTLによる自然失効をストア側に委ねる。
type RedisSessionRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
// ttlはセッションの有効期間（デフォルト30日）。
func NewRedisSessionRepo(client *redis.Client, ttl time.Duration) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, ttl: ttl}
}

// storedSession はRedisに保存されるセッションレコードのJSON表現。
// キー自体がルックアップキーのためIDは値に含めない。
type storedSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Create はルックアップキーにセッションを作成する。
// 同一キーの既存レコードは上書きされる。
func (r *RedisSessionRepo) Create(ctx context.Context, lookupKey, userID string) (*model.Session, error) {
	return r.put(ctx, lookupKey, userID)
}

// Renew は既存セッションをCreatedAtとTTLを新しくして書き直す。
// ストレージ効果はCreateと同一。
func (r *RedisSessionRepo) Renew(ctx context.Context, lookupKey, userID string) (*model.Session, error) {
	return r.put(ctx, lookupKey, userID)
}

// put はセッションレコードをフルTTL付きで書き込む。
func (r *RedisSessionRepo) put(ctx context.Context, lookupKey, userID string) (*model.Session, error) {
	session := &model.Session{
		ID:        lookupKey,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(storedSession{
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKeyPrefix+lookupKey, data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	return session, nil
}

// FindByID は指定ルックアップキーのセッションを取得する。
// 期限切れと未登録は区別できず、どちらもnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, lookupKey string) (*model.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+lookupKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &model.Session{
		ID:        lookupKey,
		UserID:    stored.UserID,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// DeleteByID は指定ルックアップキーのセッションを削除する。
// 存在しないキーの削除はエラーにならない。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, lookupKey string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+lookupKey).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
