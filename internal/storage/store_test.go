package storage

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scroll-forge/internal/theme"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStoreTokenRoundTrip(t *testing.T) {
	s := New(NewMemory(), quietLogger())

	_, ok := s.Token()
	assert.False(t, ok)

	s.SetToken("abc123")
	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "abc123", token)
}

func TestStoreClearTokenRemovesDocumentInfo(t *testing.T) {
	kv := NewMemory()
	s := New(kv, quietLogger())
	s.SetToken("abc123")
	s.SetDocumentInfo(DocumentInfo{TotalPages: 12, Name: "report.pdf"})
	s.SetThemePreference(theme.Dark)

	s.ClearToken()

	_, ok := s.Token()
	assert.False(t, ok)
	assert.Equal(t, DocumentInfo{}, s.DocumentInfo())
	// テーマ設定はトークンと独立している
	assert.Equal(t, theme.Dark, s.ThemePreference())
	assert.Equal(t, 1, kv.Len())
}

func TestStoreDocumentInfo(t *testing.T) {
	kv := NewMemory()
	s := New(kv, quietLogger())
	assert.Equal(t, DocumentInfo{}, s.DocumentInfo())

	s.SetDocumentInfo(DocumentInfo{TotalPages: 45})
	assert.Equal(t, DocumentInfo{TotalPages: 45}, s.DocumentInfo())

	kv.Set(KeyTotalPages, "not-a-number")
	assert.Equal(t, 0, s.DocumentInfo().TotalPages)
}

func TestStoreThemePreferenceDefaults(t *testing.T) {
	kv := NewMemory()
	s := New(kv, quietLogger())
	assert.Equal(t, theme.Minimal, s.ThemePreference())

	kv.Set(KeyTheme, "not-a-real-theme")
	assert.Equal(t, theme.Minimal, s.ThemePreference())

	s.SetThemePreference(theme.Noir)
	assert.Equal(t, theme.Noir, s.ThemePreference())
	v, _ := kv.Get(KeyTheme)
	assert.Equal(t, "noir", v)
}

func TestFileKVPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	first := New(NewFileKV(path, quietLogger()), quietLogger())
	first.SetToken("tok-1")
	first.SetDocumentInfo(DocumentInfo{TotalPages: 3, Name: "slides.pdf"})

	second := New(NewFileKV(path, quietLogger()), quietLogger())
	token, ok := second.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, DocumentInfo{TotalPages: 3, Name: "slides.pdf"}, second.DocumentInfo())

	second.ClearToken()
	_, ok = first.Token()
	assert.False(t, ok)
}

func TestFileKVRecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kv := NewFileKV(path, quietLogger())
	_, ok := kv.Get(KeyToken)
	assert.False(t, ok)

	kv.Set(KeyToken, "fresh")
	v, ok := kv.Get(KeyToken)
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestRedisKVSwallowsConnectionFailures(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := New(NewRedisKV(t.Context(), rdb, "browser-1", time.Hour, quietLogger()), quietLogger())
	assert.NotPanics(t, func() {
		s.SetToken("abc")
		s.ClearToken()
	})
	_, ok := s.Token()
	assert.False(t, ok)
	assert.Equal(t, theme.Minimal, s.ThemePreference())
}

func TestSessionKVRoundTripThroughCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("sf_test", cookie.NewStore([]byte("test-secret"))), SaveSessions(quietLogger()))
	router.POST("/set", func(c *gin.Context) {
		s := New(NewSessionKV(sessions.Default(c), quietLogger()), quietLogger())
		s.SetToken("cookie-token")
		s.SetDocumentInfo(DocumentInfo{TotalPages: 7, Name: "book.pdf"})
		c.Status(http.StatusNoContent)
	})
	router.GET("/get", func(c *gin.Context) {
		s := New(NewSessionKV(sessions.Default(c), quietLogger()), quietLogger())
		token, _ := s.Token()
		info := s.DocumentInfo()
		c.JSON(http.StatusOK, gin.H{"token": token, "pages": info.TotalPages, "name": info.Name})
	})

	setRec := httptest.NewRecorder()
	router.ServeHTTP(setRec, httptest.NewRequest(http.MethodPost, "/set", nil))
	require.Equal(t, http.StatusNoContent, setRec.Code)
	// 複数の書き込みでも保存は1回
	cookies := setRec.Result().Cookies()
	require.Len(t, cookies, 1)

	getReq := httptest.NewRequest(http.MethodGet, "/get", nil)
	getReq.AddCookie(cookies[0])
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)

	assert.JSONEq(t, `{"token":"cookie-token","pages":7,"name":"book.pdf"}`, getRec.Body.String())
}
