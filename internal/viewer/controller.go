package viewer

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/scroll-forge/internal/api"
)

const (
	// ControlsHideDelay は全画面表示中に操作が無い場合、コントロールを隠すまでの時間です。
	ControlsHideDelay = 3 * time.Second
	// JumpValidationMessage はページ番号として解釈できない入力に対するメッセージです。
	JumpValidationMessage = "Please enter a valid page number"
)

// キー名はブラウザの KeyboardEvent.key に合わせています。
const (
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeyHome       = "Home"
	KeyEnd        = "End"
)

// KeyEvent はキーボード入力です。
type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
}

// ActionKind はキー入力の結果です。
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionNavigate
	ActionToggleFullscreen
)

// Action は HandleKey が返す処理結果です。
type Action struct {
	Kind ActionKind
	// Page は ActionNavigate の移動先です。
	Page int
	// PreventDefault はブラウザ既定の動作（全画面ショートカット等）を抑止すべきかです。
	PreventDefault bool
}

// State は表示状態のスナップショットです。
type State struct {
	Page            int
	TotalPages      int
	Zoom            Zoom
	Fullscreen      bool
	ControlsVisible bool
}

// HasNext は次のページがあるかを返します。
func (s State) HasNext() bool {
	return s.Page < s.TotalPages
}

// HasPrevious は前のページがあるかを返します。
func (s State) HasPrevious() bool {
	return s.Page > 1
}

// Option は Controller の設定を変更します。
type Option func(*Controller)

// WithTimer はコントロール自動非表示のタイマー実装を差し替えます。
func WithTimer(fn TimerFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newTimer = fn
		}
	}
}

// OnChange は状態が変わるたびに呼ばれるコールバックを設定します。
// タイマーによる変更は別ゴルーチンから呼ばれます。
func OnChange(fn func(State)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller は1ページ表示画面の状態機械です。
type Controller struct {
	mu        sync.Mutex
	state     State
	newTimer  TimerFunc
	hideTimer Timer
	// hideGen は非表示タイマーを設定・停止するたびに進みます。古いタイマーの発火を無視するために使います。
	hideGen   uint64
	onChange  func(State)
}

// New は page/totalPages を表示する Controller を作成します。
func New(page, totalPages int, zoom Zoom, opts ...Option) *Controller {
	if totalPages < 1 {
		totalPages = 1
	}
	c := &Controller{
		state: State{
			Page:            clampPage(page, totalPages),
			TotalPages:      totalPages,
			Zoom:            snapZoom(clampZoom(zoom)),
			ControlsVisible: true,
		},
		newTimer: NewRealTimer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State は現在の状態を返します。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) ZoomIn() State {
	return c.update(func(s *State) { s.Zoom = s.Zoom.In() })
}

func (c *Controller) ZoomOut() State {
	return c.update(func(s *State) { s.Zoom = s.Zoom.Out() })
}

func (c *Controller) ZoomReset() State {
	return c.update(func(s *State) { s.Zoom = s.Zoom.Reset() })
}

// ToggleFullscreen は全画面表示を切り替えます。どちらの場合もコントロールは表示されます。
func (c *Controller) ToggleFullscreen() State {
	return c.update(func(s *State) {
		s.Fullscreen = !s.Fullscreen
		s.ControlsVisible = true
		if s.Fullscreen {
			c.armHideTimer()
		} else {
			c.stopHideTimer()
		}
	})
}

// PointerMoved はポインタ操作を通知します。コントロールを表示し、全画面中なら非表示タイマーを再設定します。
func (c *Controller) PointerMoved() State {
	return c.update(func(s *State) {
		s.ControlsVisible = true
		if s.Fullscreen {
			c.armHideTimer()
		}
	})
}

// Navigate は page に移動します。倍率以外の表示状態は初期化されます。
func (c *Controller) Navigate(page int) State {
	return c.update(func(s *State) {
		s.Page = clampPage(page, s.TotalPages)
		s.Fullscreen = false
		s.ControlsVisible = true
		c.stopHideTimer()
	})
}

// HandleKey はキー入力を処理し、必要に応じてページ移動や全画面切り替えを行います。
func (c *Controller) HandleKey(ev KeyEvent) Action {
	if (ev.Ctrl || ev.Meta) && strings.EqualFold(ev.Key, "f") {
		c.ToggleFullscreen()
		return Action{Kind: ActionToggleFullscreen, PreventDefault: true}
	}

	s := c.State()
	target := 0
	switch ev.Key {
	case KeyArrowRight, KeyArrowDown:
		if s.HasNext() {
			target = s.Page + 1
		}
	case KeyArrowLeft, KeyArrowUp:
		if s.HasPrevious() {
			target = s.Page - 1
		}
	case KeyHome:
		target = 1
	case KeyEnd:
		target = s.TotalPages
	}
	if target == 0 {
		return Action{Kind: ActionNone}
	}
	c.Navigate(target)
	return Action{Kind: ActionNavigate, Page: target}
}

// ParseJump はページ移動フォームの入力を解釈します。範囲外は [1, totalPages] に丸めます。
func ParseJump(input string, totalPages int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, api.NewValidationError(JumpValidationMessage)
	}
	return clampPage(n, max(totalPages, 1)), nil
}

// Jump は入力されたページに移動します。不正な入力では移動しません。
func (c *Controller) Jump(input string) (int, error) {
	page, err := ParseJump(input, c.State().TotalPages)
	if err != nil {
		return 0, err
	}
	c.Navigate(page)
	return page, nil
}

// Close はタイマーを停止します。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopHideTimer()
}

func (c *Controller) update(mutate func(*State)) State {
	c.mu.Lock()
	before := c.state
	mutate(&c.state)
	after := c.state
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil && before != after {
		onChange(after)
	}
	return after
}

// armHideTimer は c.mu を保持した状態で呼びます。
func (c *Controller) armHideTimer() {
	c.stopHideTimer()
	gen := c.hideGen
	c.hideTimer = c.newTimer(ControlsHideDelay, func() { c.hideControls(gen) })
}

// stopHideTimer は c.mu を保持した状態で呼びます。
func (c *Controller) stopHideTimer() {
	c.hideGen++
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
}

// hideControls は gen が最新のタイマーのものである場合だけコントロールを隠します。
// 発火済みのゴルーチンが c.mu を待つ間に再設定された場合は何もしません。
func (c *Controller) hideControls(gen uint64) {
	c.update(func(s *State) {
		if gen == c.hideGen && s.Fullscreen {
			s.ControlsVisible = false
		}
	})
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
