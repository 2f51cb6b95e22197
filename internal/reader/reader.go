// Package reader は端末上で1ページずつ文書を読むための対話型リーダーです。
package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/pagination"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/viewer"
)

// ErrNoDocument は読み込める文書が無いことを示します。
var ErrNoDocument = errors.New("no active document: upload a PDF or open a document with a valid token")

// PageSource はページ本文の取得元です。
type PageSource interface {
	FetchPageContent(ctx context.Context, token string, page int) (string, error)
}

// Options はリーダーの設定です。
type Options struct {
	Page        int
	Zoom        viewer.Zoom
	Width       int
	LoadTimeout time.Duration

	// timer は全画面の非表示タイマーを差し替えます。
	timer viewer.TimerFunc
}

// Reader は端末リーダーです。
type Reader struct {
	source   PageSource
	resolver *session.Resolver
	conv     *Converter
	in       io.Reader
	out      io.Writer
	logger   *logrus.Logger
	opts     Options

	cache map[int]string

	heading func(a ...any) string
	muted   func(a ...any) string
	current func(a ...any) string
	failure func(a ...any) string
}

// New は Reader を作成します。
func New(source PageSource, resolver *session.Resolver, in io.Reader, out io.Writer, logger *logrus.Logger, opts Options) *Reader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Zoom == 0 {
		opts.Zoom = viewer.DefaultZoom
	}
	if opts.Width <= 0 {
		opts.Width = BaseWidth
	}
	return &Reader{
		source:   source,
		resolver: resolver,
		conv:     NewConverter(),
		in:       in,
		out:      out,
		logger:   logger,
		opts:     opts,
		cache:    map[int]string{},
		heading:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		muted:    color.New(color.FgHiBlack).SprintFunc(),
		current:  color.New(color.FgYellow, color.Bold).SprintFunc(),
		failure:  color.New(color.FgRed).SprintFunc(),
	}
}

// pageResult は1回の読み込み結果です。
type pageResult struct {
	ticket viewer.Ticket
	text   string
	err    error
}

// screen は描画中の画面の状態です。
type screen struct {
	state   viewer.State
	pending viewer.Ticket
	failed  error
	notice  string
}

// Run は q が入力されるか入力が終わるまで対話を続けます。
// ページの読み込みは別ゴルーチンで行い、読み込み中も入力を受け付けます。
// 移動で置き換えられた読み込みの結果は捨てます。
// 閲覧中にトークンが無効と分かった場合はトークンを破棄してエラーを返します。
func (r *Reader) Run(ctx context.Context) error {
	s := r.resolver.Resolve(ctx, session.Options{AllowCached: true})
	switch s.Status {
	case session.StatusReady:
	case session.StatusInvalid, session.StatusError:
		return s.Err
	default:
		return ErrNoDocument
	}

	done := make(chan struct{})
	defer close(done)

	changed := make(chan struct{}, 1)
	ctrlOpts := []viewer.Option{viewer.OnChange(func(viewer.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})}
	if r.opts.timer != nil {
		ctrlOpts = append(ctrlOpts, viewer.WithTimer(r.opts.timer))
	}
	ctrl := viewer.New(r.opts.Page, s.TotalPages, r.opts.Zoom, ctrlOpts...)
	defer ctrl.Close()
	loader := viewer.NewLoader(r.opts.LoadTimeout)
	defer loader.Abandon()

	lines, inputErr := r.readLines(done)
	results := make(chan pageResult)

	var scr screen
	request := func() {
		page := ctrl.State().Page
		scr.failed = nil
		if _, ok := r.cache[page]; ok {
			loader.Abandon()
			scr.pending = viewer.Ticket{}
			return
		}
		scr.pending = loader.Begin(page)
		go r.fetch(ctx, loader, s.Token, scr.pending, results, done)
	}
	request()

	redraw := true
	for {
		if redraw {
			scr.state = ctrl.State()
			r.show(s, scr)
			scr.notice = ""
			fmt.Fprint(r.out, r.muted("> "))
		}
		redraw = true

		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return ctx.Err()

		case res := <-results:
			if res.ticket != scr.pending || errors.Is(res.err, viewer.ErrStale) {
				r.logger.WithField("page", res.ticket.Page).Debug("Discarded stale page load")
				redraw = false
				continue
			}
			scr.pending = viewer.Ticket{}
			switch {
			case errors.Is(res.err, api.ErrNotFound):
				fmt.Fprintln(r.out)
				return r.resolver.Invalidate().Err
			case errors.Is(res.err, context.Canceled):
				fmt.Fprintln(r.out)
				return res.err
			case res.err != nil:
				r.logger.WithError(res.err).WithField("page", res.ticket.Page).Debug("Failed to load page")
				scr.failed = res.err
			default:
				r.cache[res.ticket.Page] = res.text
			}
			fmt.Fprintln(r.out)

		case <-changed:
			// 非表示タイマーによる変化だけを描画し直す
			redraw = ctrl.State() != scr.state
			if redraw {
				fmt.Fprintln(r.out)
			}

		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-inputErr:
					return err
				default:
					return nil
				}
			}
			cmd := ParseCommand(line)
			if cmd.Name == CommandQuit {
				return nil
			}
			// 入力はポインタ操作と同じく全画面のコントロールを表示し直す
			ctrl.PointerMoved()
			before := ctrl.State().Page
			scr.notice = r.apply(ctrl, cmd)
			if cmd.Name == CommandReload || ctrl.State().Page != before {
				request()
			}
		}
	}
}

// readLines は入力を1行ずつ送るゴルーチンを起動します。
// 入力が終わるとチャネルを閉じ、読み込みエラーがあれば先に errs へ送ります。
func (r *Reader) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()
	return lines, errs
}

func (r *Reader) fetch(ctx context.Context, loader *viewer.Loader, token string, ticket viewer.Ticket, results chan<- pageResult, done <-chan struct{}) {
	raw, err := loader.Load(ctx, ticket, func(ctx context.Context) (string, error) {
		return r.source.FetchPageContent(ctx, token, ticket.Page)
	})
	res := pageResult{ticket: ticket, err: err}
	if err == nil {
		res.text, res.err = r.conv.Convert(raw)
	}
	select {
	case results <- res:
	case <-done:
	}
}

func (r *Reader) apply(ctrl *viewer.Controller, cmd Command) string {
	switch cmd.Name {
	case CommandKey:
		ctrl.HandleKey(cmd.Key)
	case CommandZoomIn:
		ctrl.ZoomIn()
	case CommandZoomOut:
		ctrl.ZoomOut()
	case CommandZoomReset:
		ctrl.ZoomReset()
	case CommandJump:
		if _, err := ctrl.Jump(cmd.Arg); err != nil {
			return api.Message(err, viewer.JumpValidationMessage)
		}
	case CommandReload:
		delete(r.cache, ctrl.State().Page)
	case CommandHelp:
		return helpText
	default:
		return fmt.Sprintf("Unknown command %q. Type ? for help.", cmd.Arg)
	}
	return ""
}

func (r *Reader) show(s session.Session, scr screen) {
	st := scr.state
	// 全画面では一定時間操作が無いとページ番号などを隠す
	chrome := !st.Fullscreen || st.ControlsVisible

	width := WidthFor(int(st.Zoom), r.opts.Width, st.Fullscreen)
	if chrome {
		title := s.PDFName
		if title == "" {
			title = "PDF Document"
		}
		fmt.Fprintf(r.out, "%s  %s\n", r.heading(title), r.muted(fmt.Sprintf("Page %d of %d  Zoom: %s", st.Page, st.TotalPages, st.Zoom)))
		fmt.Fprintln(r.out, r.muted(strings.Repeat("-", width)))
	}

	text, cached := r.cache[st.Page]
	switch {
	case cached:
		fmt.Fprintln(r.out, Wrap(text, width))
	case scr.failed != nil:
		fmt.Fprintln(r.out, r.failure(api.Message(scr.failed, "Failed to load page")))
		fmt.Fprintln(r.out, r.muted("Type r to try again."))
	default:
		fmt.Fprintln(r.out, r.muted(fmt.Sprintf("Loading page %d…", st.Page)))
	}

	if chrome {
		fmt.Fprintln(r.out, r.muted(strings.Repeat("-", width)))
		fmt.Fprintln(r.out, r.window(st))
	}
	if scr.notice != "" {
		fmt.Fprintln(r.out, r.failure(scr.notice))
	}
}

func (r *Reader) window(st viewer.State) string {
	markers := pagination.Window(st.Page, st.TotalPages, pagination.DefaultWindowSize)
	parts := make([]string, 0, len(markers))
	for _, m := range markers {
		switch {
		case m.Ellipsis:
			parts = append(parts, r.muted("…"))
		case m.IsCurrent(st.Page):
			parts = append(parts, r.current("["+strconv.Itoa(m.Page)+"]"))
		default:
			parts = append(parts, strconv.Itoa(m.Page))
		}
	}
	return strings.Join(parts, " ")
}
