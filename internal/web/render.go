package web

import (
	"embed"
	"html/template"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/scroll-forge/internal/pagination"
	"github.com/yourusername/scroll-forge/internal/session"
	"github.com/yourusername/scroll-forge/internal/theme"
	"github.com/yourusername/scroll-forge/internal/viewer"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"add":      func(a, b int) int { return a + b },
	"pageURL":  pageURL,
	"keyURL":   func(page int, zoom viewer.Zoom, fs bool) string { return pageActionURL(page, "key", zoom, fs) },
	"hideMs":   func() int64 { return viewer.ControlsHideDelay.Milliseconds() },
	"statusIs": func(s session.Session, name string) bool { return s.Status.String() == name },
}).ParseFS(templateFS, "templates/*.html"))

const baseRootClass = "sf-root"

type themeOption struct {
	Value    string
	Label    string
	Selected bool
}

// layoutData は全画面共通のテンプレートデータです。
type layoutData struct {
	Title       string
	RootClass   string
	Themes      []themeOption
	CSRFToken   string
	CurrentPath string
}

func defaultRootClass() string {
	root := theme.NewClassSet(baseRootClass)
	theme.ApplyClasses(root, theme.Default)
	return root.String()
}

func (h *Handler) layout(c *gin.Context, req *request, title string) layoutData {
	root := theme.NewClassSet(baseRootClass)
	theme.ApplyClasses(root, req.theme)

	options := make([]themeOption, 0, len(theme.All()))
	for _, t := range theme.All() {
		options = append(options, themeOption{
			Value:    t.String(),
			Label:    t.DisplayName(),
			Selected: t == req.theme,
		})
	}

	return layoutData{
		Title:       title,
		RootClass:   root.String(),
		Themes:      options,
		CSRFToken:   CSRFToken(c),
		CurrentPath: c.Request.URL.RequestURI(),
	}
}

type homeView struct {
	layoutData
	Session session.Session
	Message string
	Groups  []pagination.Group
}

type overviewView struct {
	layoutData
	Session       session.Session
	Message       string
	Groups        []pagination.Group
	SelectedGroup pagination.Group
	SelectedIndex int
}

type uploadView struct {
	layoutData
	Error  string
	Result *uploadResultView
	MaxMB  int64
}

type uploadResultView struct {
	Token      string
	TotalPages int
	Message    string
	Filename   string
}

type loadPreviousView struct {
	layoutData
	Error string
	Token string
}

type pageView struct {
	layoutData
	Session     session.Session
	DisplayName string
	State       viewer.State
	Window      []pagination.Marker
	Content     PageContent
	Error       string
	Invalid     bool
	Flash       []string
	ZoomIn      viewer.Zoom
	ZoomOut     viewer.Zoom
	ZoomReset   viewer.Zoom
}

type errorView struct {
	layoutData
	RetryURL string
}

// pageURL は /page/{n} にズームと全画面の状態を付けた URL を返します。
func pageURL(page int, zoom viewer.Zoom, fullscreen bool) string {
	return pageActionURL(page, "", zoom, fullscreen)
}

func pageActionURL(page int, action string, zoom viewer.Zoom, fullscreen bool) string {
	q := url.Values{}
	if zoom != viewer.DefaultZoom {
		q.Set("zoom", strconv.Itoa(int(zoom)))
	}
	if fullscreen {
		q.Set("fs", "1")
	}
	u := "/page/" + strconv.Itoa(page)
	if action != "" {
		u += "/" + action
	}
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
