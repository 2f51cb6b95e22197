package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix = "scrollforge:storage:"
	// redisOpTimeout は1回の操作にかける最大時間です。
	redisOpTimeout = 2 * time.Second
)

// RedisKV はブラウザごとの Redis ハッシュに保存する KV です。
// 書き込みのたびに TTL を延長します。Redis に接続できない場合は値が無いものとして扱います。
type RedisKV struct {
	ctx      context.Context
	rdb      redis.UniversalClient
	ownerKey string
	ttl      time.Duration
	logger   *logrus.Logger
}

// NewRedisKV は owner（ブラウザID等）に紐づく RedisKV を作成します。
// ctx はリクエスト単位のコンテキストで、キャンセルされると以降の操作は失敗扱いになります。
func NewRedisKV(ctx context.Context, rdb redis.UniversalClient, owner string, ttl time.Duration, logger *logrus.Logger) *RedisKV {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisKV{
		ctx:      ctx,
		rdb:      rdb,
		ownerKey: redisKeyPrefix + owner,
		ttl:      ttl,
		logger:   logger,
	}
}

func (r *RedisKV) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()

	value, err := r.rdb.HGet(ctx, r.ownerKey, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WithError(err).WithField("key", key).Debug("Failed to read storage key from redis")
		}
		return "", false
	}
	return value, true
}

func (r *RedisKV) Set(key, value string) {
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.ownerKey, key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.ownerKey, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Failed to write storage key to redis")
	}
}

// Delete は指定キーを1回の HDEL で削除します。
func (r *RedisKV) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, redisOpTimeout)
	defer cancel()

	if err := r.rdb.HDel(ctx, r.ownerKey, keys...).Err(); err != nil {
		r.logger.WithError(err).WithField("keys", keys).Warn("Failed to delete storage keys from redis")
	}
}
