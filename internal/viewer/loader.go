package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/scroll-forge/internal/api"
)

const (
	// LoadTimeout はページ本文の読み込みを待つ最大時間です。
	LoadTimeout = 30 * time.Second
	// LoadTimeoutMessage は読み込みが LoadTimeout を超えた場合のメッセージです。
	LoadTimeoutMessage = "Loading is taking longer than expected. Please try refreshing the page."
)

// ErrStale は別の読み込みに置き換えられた結果であることを示します。結果は破棄してください。
var ErrStale = errors.New("stale page load")

// FetchFunc はページ本文を取得する関数です。
type FetchFunc func(ctx context.Context) (string, error)

// Ticket は1回の読み込みを識別します。
type Ticket struct {
	ID   string
	Page int
}

// Loader はページ本文の読み込みを管理します。
// 新しい読み込みを Begin すると以前の読み込みは古いものとして扱われ、その結果は適用されません。
type Loader struct {
	mu      sync.Mutex
	timeout time.Duration
	current string
	cancel  context.CancelFunc
}

// NewLoader は Loader を作成します。timeout が 0 以下なら LoadTimeout を使います。
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = LoadTimeout
	}
	return &Loader{timeout: timeout}
}

// Begin は page の読み込みを開始する Ticket を発行します。実行中の読み込みは破棄されます。
func (l *Loader) Begin(page int) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.current = uuid.NewString()
	return Ticket{ID: l.current, Page: page}
}

// Current は ticket が最新の読み込みかを返します。
func (l *Loader) Current(ticket Ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ticket.ID != "" && ticket.ID == l.current
}

// Abandon は実行中の読み込みを破棄します（画面を離れるとき等）。
func (l *Loader) Abandon() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.current = ""
}

// Load は ticket の読み込みを実行します。
//
// LoadTimeout を超えた場合は TimeoutError を返し、待ち続けることはありません。
// 実行中に別の読み込みが Begin された場合、結果に関わらず ErrStale を返します。
func (l *Loader) Load(ctx context.Context, ticket Ticket, fetch FetchFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	l.mu.Lock()
	if ticket.ID == "" || ticket.ID != l.current {
		l.mu.Unlock()
		return "", ErrStale
	}
	l.cancel = cancel
	l.mu.Unlock()

	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		content, err := fetch(ctx)
		done <- result{content: content, err: err}
	}()

	var (
		content string
		err     error
	)
	select {
	case r := <-done:
		content, err = r.content, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	l.mu.Lock()
	stale := ticket.ID != l.current
	if !stale {
		l.cancel = nil
	}
	l.mu.Unlock()
	if stale {
		return "", ErrStale
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, api.ErrTimeout) {
			return "", api.NewTimeoutError(LoadTimeoutMessage, err)
		}
		return "", err
	}
	return content, nil
}
