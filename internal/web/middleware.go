package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger は gin のアクセスログを logrus に出力するミドルウェアです。
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     path,
			"ip":       c.ClientIP(),
			"duration": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Info("Request handled")
	}
}

// Recovery は描画中の panic を捕捉し、汎用の復旧画面を表示するミドルウェアです。
// エラーの種類は区別しません。
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"panic": recovered,
		}).Error("Recovered from panic while rendering")

		retryURL := "/"
		if c.Request.Method == http.MethodGet {
			retryURL = c.Request.URL.RequestURI()
		}
		c.HTML(http.StatusInternalServerError, "error.html", errorView{
			layoutData: layoutData{Title: "Something went wrong", RootClass: defaultRootClass()},
			RetryURL:   retryURL,
		})
		c.Abort()
	})
}
