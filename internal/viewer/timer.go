package viewer

import "time"

// Timer はキャンセルできる一回限りのタイマーです。
type Timer interface {
	// Stop はタイマーを止めます。発火前なら関数は呼ばれません。
	Stop()
}

// TimerFunc は d 経過後に fn を呼ぶ Timer を作成します。テストでは偽物に差し替えます。
type TimerFunc func(d time.Duration, fn func()) Timer

// NewRealTimer は time.AfterFunc に基づく TimerFunc です。
func NewRealTimer(d time.Duration, fn func()) Timer {
	return &realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) Stop() {
	r.t.Stop()
}
