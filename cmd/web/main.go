// Package main はブラウザ向け閲覧サーバーのエントリーポイントです。
package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/config"
	"github.com/yourusername/scroll-forge/internal/web"
)

const sessionCookieName = "scrollforge_session"

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger := cfg.NewLogger(os.Stderr)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(web.RequestLogger(logger))

	// セッションストアの設定（クッキー署名鍵は必須）
	// GET での画面遷移でもクッキーを送るため SameSite は Lax
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.StorageTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	router.Use(cors.New(corsConfig))

	stores, closeStores, err := setupStorage(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up storage")
	}
	defer closeStores()

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithUploadTimeout(cfg.UploadTimeout),
		api.WithLogger(logger),
	)

	router.GET("/health", handleHealth)
	web.NewHandler(client, stores, logger, web.Options{
		LoadTimeout: cfg.LoadTimeout,
		MaxFileSize: cfg.MaxFileSize,
	}).Install(router)

	// サーバーの起動
	addr := ":" + cfg.Port
	logger.WithFields(logrus.Fields{
		"addr":    addr,
		"mode":    cfg.GinMode,
		"backend": client.BaseURL(),
		"storage": cfg.StorageBackend,
	}).Info("Starting web server")
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "scroll-forge-web",
		"version": "0.1.0",
	})
}
