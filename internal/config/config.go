// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSessionSecret は開発用のセッション署名鍵です。release モードでは使用できません。
const DevSessionSecret = "scrollforge-dev-session-secret"

// ストレージバックエンド
const (
	StorageCookie = "cookie"
	StorageRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port          string // Web サーバーのポート番号
	GinMode       string // Ginの実行モード (debug, release, test)
	SessionSecret string // セッションクッキー署名用の秘密鍵

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// バックエンドAPI設定
	APIBaseURL    string        // 変換バックエンドのベースURL
	APITimeout    time.Duration // メタデータ・ページ取得の期限
	UploadTimeout time.Duration // アップロードの期限
	LoadTimeout   time.Duration // ページ表示の読み込み待ち上限

	// ファイル制限
	MaxFileSize int64 // アップロード前チェックの最大サイズ（バイト）

	// ストレージ設定
	StorageBackend  string        // cookie または redis
	StorageRedisURL string        // redis バックエンドの接続URL
	StorageTTL      time.Duration // クッキーの MaxAge / Redis の TTL
	StatePath       string        // CLI の状態ファイル

	// ログ設定
	LogLevel string
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	apiTimeout := time.Duration(getEnvAsInt("API_TIMEOUT_SECONDS", 10)) * time.Second

	config := &Config{
		// サーバー設定
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		SessionSecret: getEnv("SESSION_SECRET", DevSessionSecret),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// バックエンドAPI設定
		APIBaseURL:    getEnv("SCROLLFORGE_API_URL", "http://localhost:8000"),
		APITimeout:    apiTimeout,
		UploadTimeout: time.Duration(getEnvAsInt("UPLOAD_TIMEOUT_SECONDS", int(apiTimeout/time.Second))) * time.Second,
		LoadTimeout:   time.Duration(getEnvAsInt("PAGE_LOAD_TIMEOUT_SECONDS", 30)) * time.Second,

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB

		// ストレージ設定
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageCookie)),
		StorageRedisURL: getEnv("STORAGE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		StorageTTL:      time.Duration(getEnvAsInt("STORAGE_TTL_HOURS", 720)) * time.Hour,
		StatePath:       getEnv("SCROLLFORGE_STATE_PATH", defaultStatePath()),

		// ログ設定
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "scrollforge", "state.json")
	}
	return filepath.Join(home, ".scrollforge", "state.json")
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT_SECONDS must be positive")
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("PAGE_LOAD_TIMEOUT_SECONDS must be positive")
	}

	switch c.StorageBackend {
	case StorageCookie:
	case StorageRedis:
		if c.StorageRedisURL == "" {
			return fmt.Errorf("STORAGE_REDIS_URL is required when STORAGE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (expected cookie or redis)", c.StorageBackend)
	}

	// ローカル開発では開発用の署名鍵を許容する
	if c.GinMode == "release" {
		if c.SessionSecret == "" || c.SessionSecret == DevSessionSecret {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.APIBaseURL == "" {
			return fmt.Errorf("SCROLLFORGE_API_URL is required in release mode")
		}
	}

	return nil
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
