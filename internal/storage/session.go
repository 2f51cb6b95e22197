package storage

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionKV は gin-contrib/sessions のセッション（署名付きクッキー）を KV として扱います。
// 書き込みはセッションに溜めるだけで、保存は SaveSessions が応答の直前に1回だけ行います。
type SessionKV struct {
	session sessions.Session
	logger  *logrus.Logger
}

// NewSessionKV は SessionKV を作成します。
func NewSessionKV(session sessions.Session, logger *logrus.Logger) *SessionKV {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionKV{session: session, logger: logger}
}

func (s *SessionKV) Get(key string) (string, bool) {
	v, ok := s.session.Get(key).(string)
	if !ok {
		return "", false
	}
	return v, true
}

func (s *SessionKV) Set(key, value string) {
	s.session.Set(key, value)
	s.logger.WithField("key", key).Debug("Session value changed")
}

func (s *SessionKV) Delete(keys ...string) {
	for _, k := range keys {
		s.session.Delete(k)
	}
	s.logger.WithField("keys", keys).Debug("Session values removed")
}

// SaveSessions は変更されたセッションを応答ヘッダーの送信直前に保存するミドルウェアです。
// 1回のリクエストで Set-Cookie は1つになります。sessions.Sessions の後に登録してください。
func SaveSessions(logger *logrus.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		v, ok := c.Get(sessions.DefaultKey)
		if !ok {
			c.Next()
			return
		}
		sess, ok := v.(sessions.Session)
		if !ok {
			c.Next()
			return
		}

		w := &savingWriter{ResponseWriter: c.Writer, session: sess, logger: logger}
		c.Writer = w
		c.Next()
		// 本文を書かなかった応答
		if !w.Written() {
			w.save()
		}
	}
}

// savingWriter はヘッダーが確定する前にセッションを保存します。
// 変更が無ければ sessions.Session.Save は何もしません。
type savingWriter struct {
	gin.ResponseWriter
	session sessions.Session
	logger  *logrus.Logger
}

func (w *savingWriter) save() {
	if err := w.session.Save(); err != nil {
		w.logger.WithError(err).Warn("Failed to save session storage")
	}
}

func (w *savingWriter) WriteHeader(code int) {
	w.save()
	w.ResponseWriter.WriteHeader(code)
}

func (w *savingWriter) WriteHeaderNow() {
	w.save()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *savingWriter) Write(data []byte) (int, error) {
	if !w.Written() {
		w.save()
	}
	return w.ResponseWriter.Write(data)
}

func (w *savingWriter) WriteString(s string) (int, error) {
	if !w.Written() {
		w.save()
	}
	return w.ResponseWriter.WriteString(s)
}
