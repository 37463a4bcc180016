package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend はRedisに値を保存するBackend。
// 複数端末で同じログイン状態を共有する場合に使う。
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend はRedis URLから接続を確立してRedisBackendを生成する。
func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBackendWithClient(client), nil
}

// NewRedisBackendWithClient は既存のRedisクライアントからRedisBackendを生成する。
func NewRedisBackendWithClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: "sbadash:",
	}
}

func (b *RedisBackend) key(key string) string {
	return b.prefix + key
}

// Load はキーの値を返す。
func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return data, nil
}

// Save はキーに値を有効期限なしで保存する。
func (b *RedisBackend) Save(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete はキーを削除する。
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

var _ Backend = (*RedisBackend)(nil)
