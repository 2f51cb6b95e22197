package api

import (
	"errors"
	"fmt"
)

// Kind はエラーの種別です。画面ごとのメッセージ出し分けに使います。
type Kind string

const (
	// KindTimeout はクライアント側の期限切れです。
	KindTimeout Kind = "timeout"
	// KindNotFound はトークンが存在しない・期限切れであることを表します。
	KindNotFound Kind = "not_found"
	// KindValidation はネットワークに出る前に検出した入力エラーです。
	KindValidation Kind = "validation"
	// KindRequest はその他のバックエンドエラーです。
	KindRequest Kind = "request"
	// KindProcessing はアップロードした PDF の変換失敗です。
	KindProcessing Kind = "processing"
)

// TimeoutMessage は期限切れ時にユーザーへ表示するメッセージです。
const TimeoutMessage = "Request timed out. Please check your connection and try again."

var (
	ErrTimeout    = errors.New("request timed out")
	ErrNotFound   = errors.New("document not found")
	ErrValidation = errors.New("invalid input")
	ErrRequest    = errors.New("request failed")
	ErrProcessing = errors.New("processing failed")
)

// Error は API クライアントと入力検証が返す型付きエラーです。
type Error struct {
	Kind    Kind
	Status  int    // HTTP ステータス（該当しない場合は 0）
	Message string // ユーザーに表示できるメッセージ
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is は同じ種別のセンチネルエラーと一致します。
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindRequest:
		return ErrRequest
	case KindProcessing:
		return ErrProcessing
	default:
		return nil
	}
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

// NewValidationError は入力検証エラーを作成します。
func NewValidationError(message string) *Error {
	return newError(KindValidation, 0, message, nil)
}

// NewTimeoutError は message を持つ期限切れエラーを作成します。
func NewTimeoutError(message string, cause error) *Error {
	return newError(KindTimeout, 0, message, cause)
}

// KindOf は err に含まれる *Error の種別を返します。該当しない場合は空文字です。
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Message は err からユーザー向けメッセージを取り出します。*Error でなければ fallback を返します。
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
