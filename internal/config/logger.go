package config

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLogLevel は LOG_LEVEL の値を logrus のレベルに変換します。不正な値は info です。
func ParseLogLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger は設定に従ったロガーを作成します。
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLogLevel(c.LogLevel))
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
