package api

import (
	"io"
	"sync"
)

// ProgressFunc はアップロードの送信済みバイト数を受け取るコールバックです。
type ProgressFunc func(sent, total int64)

// Percent は送信済みの割合を 0〜100 に丸めて返します。
func Percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	percent := int(sent * 100 / total)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent
}

// progressReader はリクエストボディが読み出されるたびに進捗を通知します。
type progressReader struct {
	r     io.Reader
	total int64
	cb    ProgressFunc

	mu   sync.Mutex
	sent int64
}

func newProgressReader(r io.Reader, total int64, cb ProgressFunc) io.Reader {
	if cb == nil {
		return r
	}
	return &progressReader{r: r, total: total, cb: cb}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		p.cb(sent, p.total)
	}
	return n, err
}
