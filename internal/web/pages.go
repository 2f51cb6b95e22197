package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/pagination"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/theme"
)

const (
	loadErrorMessage     = "Error loading document. Please try uploading again."
	tokenNotFoundMessage = "Document not found. Please check your access token and try again."
	accessDeniedMessage  = "Access denied. This token may have expired."
	loadFailedMessage    = "Failed to load document. Server returned an error."
	uploadFailedMessage  = "An error occurred during upload"
)

// sessionMessage は Invalid / Error 状態で表示するメッセージを返します。
func sessionMessage(s session.Session) string {
	switch s.Status {
	case session.StatusInvalid:
		return session.InvalidTokenMessage
	case session.StatusError:
		if errors.Is(s.Err, api.ErrTimeout) {
			return api.TimeoutMessage
		}
		return loadErrorMessage
	default:
		return ""
	}
}

// Home は GET / のハンドラーです。
func (h *Handler) Home(c *gin.Context) {
	req := h.newRequest(c)
	s := req.resolver.Resolve(c.Request.Context(), session.Options{})

	c.HTML(http.StatusOK, "home.html", homeView{
		layoutData: h.layout(c, req, "ScrollForge"),
		Session:    s,
		Message:    sessionMessage(s),
		Groups:     pagination.Groups(s.TotalPages, pagination.DefaultGroupSize),
	})
}

// Overview は GET /page のハンドラーです。ページを20件ずつのグループで一覧表示します。
func (h *Handler) Overview(c *gin.Context) {
	req := h.newRequest(c)
	s := req.resolver.Resolve(c.Request.Context(), session.Options{})

	view := overviewView{
		layoutData: h.layout(c, req, "Pages"),
		Session:    s,
		Message:    sessionMessage(s),
	}
	if s.HasDocument() {
		view.Title = displayName(s)
		view.Groups = pagination.Groups(s.TotalPages, pagination.DefaultGroupSize)
		index, err := strconv.Atoi(c.DefaultQuery("group", "0"))
		if err != nil || index < 0 || index >= len(view.Groups) {
			index = 0
		}
		view.SelectedIndex = index
		view.SelectedGroup = view.Groups[index]
	}
	c.HTML(http.StatusOK, "overview.html", view)
}

// UploadForm は GET /upload のハンドラーです。トークンがあれば閲覧画面へ移動します。
func (h *Handler) UploadForm(c *gin.Context) {
	req := h.newRequest(c)
	if _, ok := req.store.Token(); ok {
		h.redirect(c, "/page/1")
		return
	}
	c.HTML(http.StatusOK, "upload.html", uploadView{
		layoutData: h.layout(c, req, "Upload PDF"),
		MaxMB:      h.opts.MaxFileSize >> 20,
	})
}

// Upload は POST /upload のハンドラーです。
func (h *Handler) Upload(c *gin.Context) {
	req := h.newRequest(c)
	view := uploadView{
		layoutData: h.layout(c, req, "Upload PDF"),
		MaxMB:      h.opts.MaxFileSize >> 20,
	}

	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		view.Error = "Please select a PDF file"
		c.HTML(http.StatusBadRequest, "upload.html", view)
		return
	}
	if h.opts.MaxFileSize > 0 && fileHeader.Size > h.opts.MaxFileSize {
		view.Error = api.Message(api.TooLargeError(h.opts.MaxFileSize), api.InvalidFileMessage)
		c.HTML(http.StatusRequestEntityTooLarge, "upload.html", view)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		view.Error = uploadFailedMessage
		c.HTML(http.StatusBadRequest, "upload.html", view)
		return
	}
	data, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		view.Error = uploadFailedMessage
		c.HTML(http.StatusBadRequest, "upload.html", view)
		return
	}

	inspection, err := api.Inspect(fileHeader.Filename, data, h.opts.MaxFileSize)
	if err != nil {
		view.Error = api.Message(err, api.InvalidFileMessage)
		c.HTML(http.StatusBadRequest, "upload.html", view)
		return
	}

	result, err := h.backend.UploadDocument(c.Request.Context(), api.Upload{
		Filename: inspection.Filename,
		Data:     data,
	})
	if err != nil {
		h.logger.WithError(err).WithField("filename", inspection.Filename).Warn("Upload failed")
		view.Error = api.Message(err, uploadFailedMessage)
		c.HTML(statusFor(err), "upload.html", view)
		return
	}

	totalPages := result.TotalPages
	if totalPages <= 0 {
		totalPages = inspection.Pages
	}
	req.resolver.Establish(result.Token, totalPages, inspection.Filename)

	h.logger.WithFields(logrus.Fields{
		"filename":    inspection.Filename,
		"size":        inspection.Size,
		"total_pages": totalPages,
	}).Info("Document converted")

	view.Result = &uploadResultView{
		Token:      result.Token,
		TotalPages: totalPages,
		Message:    result.Message,
		Filename:   inspection.Filename,
	}
	c.HTML(http.StatusOK, "upload.html", view)
}

// LoadPreviousForm は GET /load-previous のハンドラーです。
func (h *Handler) LoadPreviousForm(c *gin.Context) {
	req := h.newRequest(c)
	c.HTML(http.StatusOK, "load_previous.html", loadPreviousView{
		layoutData: h.layout(c, req, "Load Previous Document"),
	})
}

// LoadPrevious は POST /load-previous のハンドラーです。トークンを検証してから保存します。
func (h *Handler) LoadPrevious(c *gin.Context) {
	req := h.newRequest(c)
	token := strings.TrimSpace(c.PostForm("token"))

	if _, err := req.resolver.Adopt(c.Request.Context(), token); err != nil {
		c.HTML(statusFor(err), "load_previous.html", loadPreviousView{
			layoutData: h.layout(c, req, "Load Previous Document"),
			Error:      adoptMessage(err),
			Token:      token,
		})
		return
	}
	h.redirect(c, "/page")
}

func adoptMessage(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrValidation):
		return api.Message(err, "Please enter a valid access token")
	case errors.Is(err, api.ErrNotFound):
		return tokenNotFoundMessage
	case errors.Is(err, api.ErrTimeout):
		return api.TimeoutMessage
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
		return accessDeniedMessage
	default:
		return loadFailedMessage
	}
}

// Clear は POST /clear のハンドラーです。
func (h *Handler) Clear(c *gin.Context) {
	req := h.newRequest(c)
	req.resolver.Clear()
	h.redirect(c, "/")
}

// Retry は POST /retry のハンドラーです。再解決してから元の画面に戻ります。
func (h *Handler) Retry(c *gin.Context) {
	req := h.newRequest(c)
	req.resolver.Retry(c.Request.Context(), session.Options{})
	h.redirect(c, safeNext(c.PostForm("next")))
}

// SetTheme は POST /theme のハンドラーです。
func (h *Handler) SetTheme(c *gin.Context) {
	t, ok := theme.Parse(c.PostForm("theme"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_THEME",
			"message": "Unknown theme",
		})
		return
	}
	req := h.newRequest(c)
	root := theme.NewClassSet(baseRootClass)
	theme.NewController(req.store).Apply(root, t)

	if c.GetHeader("Accept") == "application/json" {
		c.JSON(http.StatusOK, gin.H{"theme": t.String(), "class": root.String()})
		return
	}
	h.redirect(c, safeNext(c.PostForm("next")))
}

// ThemeSearch は GET /theme/search のハンドラーです。
func (h *Handler) ThemeSearch(c *gin.Context) {
	results := theme.Search(c.Query("q"))
	items := make([]gin.H, 0, len(results))
	for _, t := range results {
		items = append(items, gin.H{
			"name":        t.String(),
			"displayName": t.DisplayName(),
			"class":       t.Class(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"themes": items})
}

// statusFor はエラー種別に応じた HTTP ステータスを返します。
func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindValidation:
		return http.StatusBadRequest
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// safeNext はリダイレクト先を同一オリジンのパスに限定します。
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func displayName(s session.Session) string {
	if s.PDFName != "" {
		return s.PDFName
	}
	return "PDF Document"
}
