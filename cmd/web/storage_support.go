package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/config"
	"github.com/yourusername/scroll-forge/internal/storage"
	"github.com/yourusername/scroll-forge/internal/web"
)

// setupStorage は STORAGE_BACKEND に応じた StoreFactory を返します。
// cookie ではセッションクッキーに直接保存し、redis ではクッキーにはブラウザ識別子だけを置きます。
func setupStorage(cfg *config.Config, logger *logrus.Logger) (web.StoreFactory, func(), error) {
	if cfg.StorageBackend != config.StorageRedis {
		return web.CookieStores(logger), func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.StorageRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid STORAGE_REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.WithError(err).Warn("Redis is not reachable yet; storage calls will fail until it is")
	}

	stores := func(c *gin.Context) *storage.Store {
		owner := web.BrowserID(c)
		kv := storage.NewRedisKV(c.Request.Context(), redisClient, owner, cfg.StorageTTL, logger)
		return storage.New(kv, logger)
	}
	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	return stores, closeFn, nil
}
