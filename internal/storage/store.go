// Package storage は閲覧セッションの永続化レイヤーを提供します。
//
// アクセストークン・キャッシュ済みのページ数と文書名・テーマ設定の4つの文字列キーを、
// 差し替え可能な KV バックエンド（クッキーセッション / Redis / ファイル / メモリ）に保存します。
// バックエンドの障害は呼び出し側に伝播させず、「値が保存されていない」として扱います。
package storage

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/theme"
)

// 保存キー。既存の閲覧環境と互換性を保つため名前は変更しません。
const (
	KeyToken      = "pdf_access_token"
	KeyTotalPages = "pdf_total_pages"
	KeyName       = "pdf_name"
	KeyTheme      = "scroll-forge-theme"
)

// KV は Store が利用する文字列キー・バリューのバックエンドです。
// 実装はエラーを返さず、失敗時は ok=false / no-op として振る舞います。
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(keys ...string)
}

// DocumentInfo はキャッシュされた文書情報です。未保存の項目はゼロ値です。
type DocumentInfo struct {
	TotalPages int
	Name       string
}

// Store は KV の上に型付きの操作を提供します。
type Store struct {
	kv     KV
	logger *logrus.Logger
}

// New は Store を作成します。logger が nil の場合は標準ロガーを使います。
func New(kv KV, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{kv: kv, logger: logger}
}

// SetToken はアクセストークンを保存します。
func (s *Store) SetToken(token string) {
	s.kv.Set(KeyToken, token)
}

// Token は保存済みのアクセストークンを返します。
func (s *Store) Token() (string, bool) {
	token, ok := s.kv.Get(KeyToken)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// ClearToken はトークンとキャッシュ済みの文書情報をまとめて削除します。
func (s *Store) ClearToken() {
	s.kv.Delete(KeyToken, KeyTotalPages, KeyName)
}

// SetDocumentInfo は文書情報をキャッシュします。ゼロ値の項目は書き込みません。
func (s *Store) SetDocumentInfo(info DocumentInfo) {
	if info.TotalPages > 0 {
		s.kv.Set(KeyTotalPages, strconv.Itoa(info.TotalPages))
	}
	if info.Name != "" {
		s.kv.Set(KeyName, info.Name)
	}
}

// DocumentInfo はキャッシュ済みの文書情報を返します。
func (s *Store) DocumentInfo() DocumentInfo {
	var info DocumentInfo
	if raw, ok := s.kv.Get(KeyTotalPages); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			s.logger.WithField("value", raw).Debug("Ignoring malformed cached page count")
		} else {
			info.TotalPages = n
		}
	}
	if name, ok := s.kv.Get(KeyName); ok {
		info.Name = name
	}
	return info
}

// SetThemePreference はテーマ設定を保存します。
func (s *Store) SetThemePreference(t theme.Theme) {
	s.kv.Set(KeyTheme, t.String())
}

// ThemePreference は保存済みのテーマを返します。未設定・不正な値なら既定テーマです。
func (s *Store) ThemePreference() theme.Theme {
	raw, ok := s.kv.Get(KeyTheme)
	if !ok {
		return theme.Default
	}
	return theme.ParseOrDefault(raw)
}
