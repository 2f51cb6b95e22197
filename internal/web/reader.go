package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/pagination"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/viewer"
)

const (
	noTokenMessage    = "No access token found. Please upload a PDF or load a document with a valid token."
	pageFailedMessage = "Failed to load page"

	flashJump = "jump"
)

// viewState はクエリ文字列からズームと全画面の状態を読み取ります。
func viewState(c *gin.Context) (viewer.Zoom, bool) {
	return viewer.ParseZoom(c.Query("zoom")), c.Query("fs") == "1"
}

// pageParam は :n を解釈します。数値でなければ false を返します。
func pageParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Page は GET /page/:n のハンドラーです。1ページ分の本文を取得して表示します。
func (h *Handler) Page(c *gin.Context) {
	n, ok := pageParam(c)
	if !ok {
		h.redirect(c, "/page/1")
		return
	}
	zoom, fullscreen := viewState(c)

	req := h.newRequest(c)
	s := req.resolver.Resolve(c.Request.Context(), session.Options{AllowCached: true})

	view := pageView{
		layoutData: h.layout(c, req, "Page "+strconv.Itoa(n)),
		Session:    s,
	}
	if !s.HasDocument() {
		switch s.Status {
		case session.StatusInvalid:
			view.Invalid = true
			view.Error = session.InvalidTokenMessage
		case session.StatusError:
			view.Error = sessionMessage(s)
		default:
			view.Error = noTokenMessage
		}
		c.HTML(http.StatusOK, "page.html", view)
		return
	}

	if n < 1 || n > s.TotalPages {
		h.redirect(c, pageURL(clamp(n, s.TotalPages), zoom, fullscreen))
		return
	}

	ctrl := viewer.New(n, s.TotalPages, zoom)
	defer ctrl.Close()
	if fullscreen {
		ctrl.ToggleFullscreen()
	}
	state := ctrl.State()

	view.DisplayName = displayName(s)
	view.State = state
	view.Window = pagination.Window(state.Page, state.TotalPages, pagination.DefaultWindowSize)
	view.ZoomIn = state.Zoom.In()
	view.ZoomOut = state.Zoom.Out()
	view.ZoomReset = state.Zoom.Reset()
	view.Flash = h.flashes(c)

	content, err := h.loadPage(c.Request.Context(), s.Token, state.Page)
	switch {
	case err == nil:
		view.Content = content
	case errors.Is(err, api.ErrNotFound):
		req.resolver.Invalidate()
		view.Session = req.resolver.Session()
		view.Invalid = true
		view.Error = session.InvalidTokenMessage
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{"page": state.Page}).Warn("Failed to load page")
		view.Error = api.Message(err, pageFailedMessage)
	}
	c.HTML(http.StatusOK, "page.html", view)
}

func (h *Handler) loadPage(ctx context.Context, token string, page int) (PageContent, error) {
	loader := viewer.NewLoader(h.opts.LoadTimeout)
	ticket := loader.Begin(page)
	raw, err := loader.Load(ctx, ticket, func(ctx context.Context) (string, error) {
		return h.backend.FetchPageContent(ctx, token, page)
	})
	if err != nil {
		return PageContent{}, err
	}
	return ExtractContent(raw)
}

// PageKey は GET /page/:n/key のハンドラーです。
// JavaScript が無い環境でもキーボード操作と同じ移動ができるようにしています。
func (h *Handler) PageKey(c *gin.Context) {
	n, ok := pageParam(c)
	if !ok {
		h.redirect(c, "/page/1")
		return
	}
	zoom, fullscreen := viewState(c)

	req := h.newRequest(c)
	s := req.resolver.Resolve(c.Request.Context(), session.Options{AllowCached: true})
	if !s.HasDocument() {
		h.redirect(c, "/page/"+strconv.Itoa(n))
		return
	}

	ctrl := viewer.New(n, s.TotalPages, zoom)
	defer ctrl.Close()
	if fullscreen {
		ctrl.ToggleFullscreen()
	}

	action := ctrl.HandleKey(viewer.KeyEvent{
		Key:  c.Query("k"),
		Ctrl: c.Query("ctrl") == "1",
		Meta: c.Query("meta") == "1",
	})
	if action.Kind != viewer.ActionNone {
		h.logger.WithFields(logrus.Fields{"key": c.Query("k"), "page": action.Page}).Debug("Key handled")
	}
	state := ctrl.State()
	h.redirect(c, pageURL(state.Page, state.Zoom, state.Fullscreen))
}

// PageJump は GET /page/:n/jump のハンドラーです。
func (h *Handler) PageJump(c *gin.Context) {
	n, ok := pageParam(c)
	if !ok {
		h.redirect(c, "/page/1")
		return
	}
	zoom, fullscreen := viewState(c)

	req := h.newRequest(c)
	s := req.resolver.Resolve(c.Request.Context(), session.Options{AllowCached: true})
	if !s.HasDocument() {
		h.redirect(c, "/page/"+strconv.Itoa(n))
		return
	}

	page, err := viewer.ParseJump(c.Query("to"), s.TotalPages)
	if err != nil {
		sess := sessions.Default(c)
		sess.AddFlash(api.Message(err, viewer.JumpValidationMessage), flashJump)
		h.redirect(c, pageURL(clamp(n, s.TotalPages), zoom, fullscreen))
		return
	}
	h.redirect(c, pageURL(page, zoom, fullscreen))
}

func (h *Handler) flashes(c *gin.Context) []string {
	sess := sessions.Default(c)
	raw := sess.Flashes(flashJump)
	if len(raw) == 0 {
		return nil
	}
	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

func clamp(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
