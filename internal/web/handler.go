// Package web はブラウザ向けの閲覧画面（サーバーサイドレンダリング）を提供します。
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/storage"
	"github.com/yourusername/scroll-forge/internal/theme"
	"github.com/yourusername/scroll-forge/internal/viewer"
)

const sessionKeyBrowserID = "browser_id"

// Backend は変換バックエンドの操作です。*api.Client が実装します。
type Backend interface {
	UploadDocument(ctx context.Context, up api.Upload) (*api.UploadResult, error)
	FetchDocumentMetadata(ctx context.Context, token string) (*api.DocumentMetadata, error)
	FetchPageContent(ctx context.Context, token string, page int) (string, error)
}

// StoreFactory はリクエストごとのストレージを返します。
type StoreFactory func(c *gin.Context) *storage.Store

// CookieStores はセッションクッキーをそのまま保存先にする StoreFactory です。
func CookieStores(logger *logrus.Logger) StoreFactory {
	return func(c *gin.Context) *storage.Store {
		return storage.New(storage.NewSessionKV(sessions.Default(c), logger), logger)
	}
}

// BrowserID はセッションクッキーに紐づくブラウザ識別子を返します。無ければ発行します。
func BrowserID(c *gin.Context) string {
	sess := sessions.Default(c)
	if id, ok := sess.Get(sessionKeyBrowserID).(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	sess.Set(sessionKeyBrowserID, id)
	return id
}

// Options は Handler の設定です。
type Options struct {
	LoadTimeout time.Duration
	MaxFileSize int64
}

// Handler は画面のハンドラー群です。
type Handler struct {
	backend Backend
	stores  StoreFactory
	logger  *logrus.Logger
	opts    Options
}

// NewHandler は Handler を作成します。
func NewHandler(backend Backend, stores StoreFactory, logger *logrus.Logger, opts Options) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = viewer.LoadTimeout
	}
	return &Handler{
		backend: backend,
		stores:  stores,
		logger:  logger,
		opts:    opts,
	}
}

// Install はテンプレート・復旧ミドルウェア・ルートを router に登録します。
// セッションミドルウェアは呼び出し側で先に登録しておく必要があります。
func (h *Handler) Install(router *gin.Engine) {
	router.SetHTMLTemplate(templates)
	router.Use(storage.SaveSessions(h.logger), Recovery(h.logger))

	router.GET("/", h.Home)
	router.GET("/upload", h.UploadForm)
	router.GET("/load-previous", h.LoadPreviousForm)
	router.GET("/page", h.Overview)
	router.GET("/page/:n", h.Page)
	router.GET("/page/:n/key", h.PageKey)
	router.GET("/page/:n/jump", h.PageJump)
	router.GET("/theme/search", h.ThemeSearch)

	forms := router.Group("")
	forms.Use(VerifyCSRF())
	{
		forms.POST("/upload", h.Upload)
		forms.POST("/load-previous", h.LoadPrevious)
		forms.POST("/clear", h.Clear)
		forms.POST("/retry", h.Retry)
		forms.POST("/theme", h.SetTheme)
	}
}

// request はハンドラー内で共通に使う依存をまとめたものです。
type request struct {
	store    *storage.Store
	resolver *session.Resolver
	theme    theme.Theme
}

func (h *Handler) newRequest(c *gin.Context) *request {
	store := h.stores(c)
	return &request{
		store:    store,
		resolver: session.NewResolver(store, h.backend, h.logger),
		theme:    theme.NewController(store).ResolveInitial(),
	}
}

func (h *Handler) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
