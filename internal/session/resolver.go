// Package session は保存済みトークンとバックエンドの文書情報を突き合わせ、
// 閲覧セッションの状態（未解決・読込中・準備完了・無効・エラー）を管理します。
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/storage"
)

// Status はセッションの状態です。
type Status int

const (
	StatusUnresolved Status = iota
	StatusLoading
	StatusReady
	StatusInvalid
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusInvalid:
		return "invalid"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// InvalidTokenMessage はトークンが無効と判定されたときのメッセージです。
const InvalidTokenMessage = "Token invalid or expired. Please upload a new document or enter a valid token."

const (
	emptyTokenMessage = "Please enter a valid access token"
	noPagesMessage    = "The document has no pages."
)

// Session はある時点のセッション状態のスナップショットです。
type Session struct {
	Token      string
	PDFName    string
	TotalPages int
	Status     Status
	Err        error
}

// HasDocument は文書を表示できる状態かを返します。
func (s Session) HasDocument() bool {
	return s.Status == StatusReady
}

// NoDocument はトークンが保存されていない（「文書なし」画面を出す）状態かを返します。
func (s Session) NoDocument() bool {
	return s.Status == StatusUnresolved && s.Token == ""
}

// TokenStore はセッション解決に必要なストレージ操作です。
type TokenStore interface {
	SetToken(token string)
	Token() (string, bool)
	ClearToken()
	SetDocumentInfo(info storage.DocumentInfo)
	DocumentInfo() storage.DocumentInfo
}

// MetadataFetcher は文書情報の取得先です。
type MetadataFetcher interface {
	FetchDocumentMetadata(ctx context.Context, token string) (*api.DocumentMetadata, error)
}

// Options は Resolve の挙動を指定します。
type Options struct {
	// AllowCached が true の場合、ページ数がキャッシュされていればメタデータ取得を省略します。
	// その場合でもページ本文の取得時にトークンは再検証されます。
	AllowCached bool
}

// Resolver はセッションの状態遷移を管理します。並行利用は想定していません。
type Resolver struct {
	store        TokenStore
	fetcher      MetadataFetcher
	logger       *logrus.Logger
	current      Session
	onTransition func(from, to Status)
}

// NewResolver は Resolver を作成します。
func NewResolver(store TokenStore, fetcher MetadataFetcher, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		current: Session{Status: StatusUnresolved},
	}
}

// OnTransition は状態遷移ごとに呼ばれるフックを設定します。
func (r *Resolver) OnTransition(fn func(from, to Status)) {
	r.onTransition = fn
}

// Session は現在のセッションを返します。
func (r *Resolver) Session() Session {
	return r.current
}

// Resolve はセッションを解決します。
//
// Unresolved 以外の状態では何もしません（Invalid / Error から抜けるには Retry を使います）。
func (r *Resolver) Resolve(ctx context.Context, opts Options) Session {
	if r.current.Status != StatusUnresolved {
		return r.current
	}

	token, ok := r.store.Token()
	if !ok {
		r.current = Session{Status: StatusUnresolved}
		return r.current
	}

	cached := r.store.DocumentInfo()
	if opts.AllowCached && cached.TotalPages >= 1 {
		r.transition(Session{
			Token:      token,
			PDFName:    cached.Name,
			TotalPages: cached.TotalPages,
			Status:     StatusReady,
		})
		return r.current
	}

	r.transition(Session{Token: token, PDFName: cached.Name, TotalPages: cached.TotalPages, Status: StatusLoading})

	meta, err := r.fetcher.FetchDocumentMetadata(ctx, token)
	switch {
	case err == nil && meta.TotalPages >= 1:
		r.store.SetDocumentInfo(storage.DocumentInfo{TotalPages: meta.TotalPages, Name: meta.PDFName})
		r.transition(Session{
			Token:      token,
			PDFName:    meta.PDFName,
			TotalPages: meta.TotalPages,
			Status:     StatusReady,
		})
	case err == nil:
		r.transition(Session{
			Token:  token,
			Status: StatusError,
			Err:    api.NewValidationError(noPagesMessage),
		})
	case errors.Is(err, api.ErrNotFound):
		r.store.ClearToken()
		r.transition(Session{
			Status: StatusInvalid,
			Err:    &api.Error{Kind: api.KindNotFound, Message: InvalidTokenMessage, Err: err},
		})
	default:
		r.logger.WithError(err).Warn("Failed to resolve document session")
		r.transition(Session{
			Token:      token,
			PDFName:    cached.Name,
			TotalPages: cached.TotalPages,
			Status:     StatusError,
			Err:        err,
		})
	}
	return r.current
}

// Retry はユーザー操作による再解決です。Invalid / Error から Unresolved に戻してから解決します。
func (r *Resolver) Retry(ctx context.Context, opts Options) Session {
	switch r.current.Status {
	case StatusInvalid, StatusError:
		r.transition(Session{Status: StatusUnresolved})
	}
	return r.Resolve(ctx, opts)
}

// Invalidate はページ本文の取得でトークンが無効と判明したときに呼びます。
func (r *Resolver) Invalidate() Session {
	r.store.ClearToken()
	r.transition(Session{
		Status: StatusInvalid,
		Err:    &api.Error{Kind: api.KindNotFound, Message: InvalidTokenMessage},
	})
	return r.current
}

// Clear はユーザー操作でトークンを破棄し、未解決状態に戻します。
func (r *Resolver) Clear() Session {
	r.store.ClearToken()
	r.transition(Session{Status: StatusUnresolved})
	return r.current
}

// Adopt はユーザーが入力したトークンを検証し、有効であれば保存して Ready にします。
// 検証に失敗した場合、既存の保存内容と状態は変更しません。
func (r *Resolver) Adopt(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return r.current, api.NewValidationError(emptyTokenMessage)
	}

	meta, err := r.fetcher.FetchDocumentMetadata(ctx, token)
	if err != nil {
		return r.current, err
	}
	if meta.TotalPages < 1 {
		return r.current, api.NewValidationError(noPagesMessage)
	}

	r.replaceDocument(token, storage.DocumentInfo{TotalPages: meta.TotalPages, Name: meta.PDFName})
	r.transition(Session{
		Token:      token,
		PDFName:    meta.PDFName,
		TotalPages: meta.TotalPages,
		Status:     StatusReady,
	})
	r.logger.WithField("total_pages", meta.TotalPages).Info("Loaded document from access token")
	return r.current, nil
}

// Establish はアップロード直後に発行されたトークンを保存します。
// ページ数が分かっていれば Ready、そうでなければ次回の Resolve でメタデータを取得します。
func (r *Resolver) Establish(token string, totalPages int, name string) Session {
	r.replaceDocument(token, storage.DocumentInfo{TotalPages: totalPages, Name: name})
	if totalPages >= 1 {
		r.transition(Session{Token: token, PDFName: name, TotalPages: totalPages, Status: StatusReady})
	} else {
		r.transition(Session{Token: token, Status: StatusUnresolved})
	}
	return r.current
}

// replaceDocument は前の文書の情報を消してから新しいトークンを保存します。
// SetDocumentInfo は空の値を書かないため、先に消さないと前の文書名が残ります。
func (r *Resolver) replaceDocument(token string, info storage.DocumentInfo) {
	r.store.ClearToken()
	r.store.SetToken(token)
	r.store.SetDocumentInfo(info)
}

func (r *Resolver) transition(next Session) {
	from := r.current.Status
	r.current = next
	if from == next.Status {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   next.Status.String(),
	}).Debug("Session state changed")
	if r.onTransition != nil {
		r.onTransition(from, next.Status)
	}
}
