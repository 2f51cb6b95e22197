package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scroll-forge/internal/api"
	"github.com/yourusername/scroll-forge/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeBackend はメモリ上の文書を返す Backend です。
type fakeBackend struct {
	mu        sync.Mutex
	docs      map[string]*api.DocumentMetadata
	pages     map[string]string
	metaErr   error
	pageErr   error
	uploads   []api.Upload
	panicMeta bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		docs:  map[string]*api.DocumentMetadata{},
		pages: map[string]string{},
	}
}

func (f *fakeBackend) addDocument(token, name string, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[token] = &api.DocumentMetadata{PDFName: name, TotalPages: total}
	for i := 1; i <= total; i++ {
		f.pages[fmt.Sprintf("%s/%d", token, i)] = fmt.Sprintf(
			`<html><head><style>.pg{color:red}</style><script>alert(1)</script></head><body><div class="pg" onclick="steal()">Page %d body</div></body></html>`, i)
	}
}

func (f *fakeBackend) UploadDocument(_ context.Context, up api.Upload) (*api.UploadResult, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	f.mu.Unlock()
	f.addDocument("uploaded-token", up.Filename, 2)
	return &api.UploadResult{
		Success:    true,
		Message:    "PDF processed successfully",
		Token:      "uploaded-token",
		TotalPages: 2,
	}, nil
}

func (f *fakeBackend) FetchDocumentMetadata(_ context.Context, token string) (*api.DocumentMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMeta {
		panic("metadata decoder exploded")
	}
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	meta, ok := f.docs[token]
	if !ok {
		return nil, &api.Error{Kind: api.KindNotFound, Status: http.StatusNotFound, Message: "Document not found"}
	}
	copied := *meta
	return &copied, nil
}

func (f *fakeBackend) FetchPageContent(_ context.Context, token string, page int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageErr != nil {
		return "", f.pageErr
	}
	content, ok := f.pages[fmt.Sprintf("%s/%d", token, page)]
	if !ok {
		return "", &api.Error{Kind: api.KindNotFound, Status: http.StatusNotFound, Message: "Document not found"}
	}
	return content, nil
}

// browser はクッキーを保持し、リダイレクトを追わない HTTP クライアントです。
type browser struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, backend Backend) *browser {
	t.Helper()
	logger := quietLogger()

	router := gin.New()
	router.Use(sessions.Sessions("scrollforge_session", cookie.NewStore([]byte("test-secret"))))
	NewHandler(backend, CookieStores(logger), logger, Options{MaxFileSize: 1 << 20}).Install(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:      t,
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	status   int
	body     string
	location string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, body: string(data), location: resp.Header.Get("Location")}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.server.URL+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

// csrf は画面を開いてフォームの CSRF トークンを取り出します。
func (b *browser) csrf(path string) string {
	b.t.Helper()
	p := b.get(path)
	m := csrfPattern.FindStringSubmatch(p.body)
	require.Len(b.t, m, 2, "csrf token not found on %s", path)
	return m[1]
}

func (b *browser) loadToken(token string) page {
	b.t.Helper()
	return b.post("/load-previous", url.Values{
		"csrf_token": {b.csrf("/load-previous")},
		"token":      {token},
	})
}

// upload はアップロード画面の CSRF トークンを添えて PDF を送信します。
func (b *browser) upload(filename string, data []byte) page {
	b.t.Helper()
	token := b.csrf("/upload")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(b.t, mw.WriteField("csrf_token", token))
	fw, err := mw.CreateFormFile("pdf", filename)
	require.NoError(b.t, err)
	_, err = fw.Write(data)
	require.NoError(b.t, err)
	require.NoError(b.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.server.URL+"/upload", &body)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func TestHomeWithoutDocumentShowsLanding(t *testing.T) {
	b := newBrowser(t, newFakeBackend())

	p := b.get("/")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Why Choose ScrollForge?")
	assert.Contains(t, p.body, `href="/upload"`)
	assert.Contains(t, p.body, "theme-minimal")
}

func TestFormsRequireCSRFToken(t *testing.T) {
	b := newBrowser(t, newFakeBackend())

	p := b.post("/clear", url.Values{})
	assert.Equal(t, http.StatusForbidden, p.status)

	b.get("/")
	p = b.post("/clear", url.Values{"csrf_token": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, p.status)
	assert.Contains(t, p.body, "CSRF_INVALID")
}

func TestLoadPreviousAdoptsValidToken(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 45)
	b := newBrowser(t, backend)

	p := b.loadToken("  tok-1  ")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/page", p.location)

	p = b.get("/page")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Handbook.pdf")
	assert.Contains(t, p.body, "Pages 1-20")
	assert.Contains(t, p.body, "Pages 41-45")

	p = b.get("/page?group=2")
	assert.Contains(t, p.body, `href="/page/45"`)
	assert.NotContains(t, p.body, `href="/page/20"`)

	p = b.get("/")
	assert.Contains(t, p.body, "Continue Reading")
}

func TestLoadPreviousErrors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		metaErr error
		status  int
		message string
	}{
		{"empty token", "   ", nil, http.StatusBadRequest, "Please enter a valid access token"},
		{"unknown token", "missing", nil, http.StatusNotFound, tokenNotFoundMessage},
		{"forbidden", "tok", &api.Error{Kind: api.KindRequest, Status: http.StatusForbidden, Message: "forbidden"}, http.StatusBadGateway, accessDeniedMessage},
		{"timeout", "tok", api.NewTimeoutError(api.TimeoutMessage, context.DeadlineExceeded), http.StatusGatewayTimeout, api.TimeoutMessage},
		{"server error", "tok", &api.Error{Kind: api.KindRequest, Status: http.StatusInternalServerError, Message: "boom"}, http.StatusBadGateway, loadFailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.metaErr = tt.metaErr
			b := newBrowser(t, backend)

			p := b.loadToken(tt.token)
			assert.Equal(t, tt.status, p.status)
			assert.Contains(t, p.body, tt.message)

			// 失敗時は何も保存されない
			p = b.get("/")
			assert.Contains(t, p.body, "Why Choose ScrollForge?")
		})
	}
}

func TestPageRendersSanitizedContent(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 45)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	p := b.get("/page/1")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Page 1 body")
	assert.Contains(t, p.body, ".pg{color:red}")
	assert.NotContains(t, p.body, "alert(1)")
	assert.NotContains(t, p.body, "steal()")
	assert.Contains(t, p.body, "Page 1 of 45")
	assert.Contains(t, p.body, `href="/page/45"`)
	assert.Contains(t, p.body, "&hellip;")
	assert.NotContains(t, p.body, "title=\"Previous Page\"")
}

func TestPageRedirectsOutOfRange(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 10)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	p := b.get("/page/99?zoom=120")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/page/10?zoom=120", p.location)

	p = b.get("/page/0")
	assert.Equal(t, "/page/1", p.location)

	p = b.get("/page/abc")
	assert.Equal(t, "/page/1", p.location)
}

func TestPageWithoutDocument(t *testing.T) {
	b := newBrowser(t, newFakeBackend())

	p := b.get("/page/3")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "No Active Document")
	assert.Contains(t, p.body, noTokenMessage)
}

func TestPageContentNotFoundInvalidatesToken(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 3)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	backend.mu.Lock()
	delete(backend.pages, "tok-1/2")
	backend.mu.Unlock()

	p := b.get("/page/2")
	assert.Contains(t, p.body, session.InvalidTokenMessage)

	p = b.get("/")
	assert.Contains(t, p.body, "Why Choose ScrollForge?")
}

func TestPageTimeoutShowsMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 3)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	backend.mu.Lock()
	backend.pageErr = api.NewTimeoutError(api.TimeoutMessage, context.DeadlineExceeded)
	backend.mu.Unlock()

	p := b.get("/page/2")
	assert.Contains(t, p.body, api.TimeoutMessage)
	assert.Contains(t, p.body, "Try again")

	// 本文の失敗ではトークンを消さない
	p = b.get("/")
	assert.Contains(t, p.body, "Continue Reading")
}

func TestPageKeyNavigation(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 10)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	tests := []struct {
		path     string
		location string
	}{
		{"/page/2/key?k=ArrowRight", "/page/3"},
		{"/page/2/key?k=ArrowDown&zoom=150", "/page/3?zoom=150"},
		{"/page/2/key?k=ArrowLeft", "/page/1"},
		{"/page/1/key?k=ArrowUp", "/page/1"},
		{"/page/10/key?k=ArrowRight", "/page/10"},
		{"/page/4/key?k=Home", "/page/1"},
		{"/page/4/key?k=End", "/page/10"},
		{"/page/4/key?k=f&ctrl=1", "/page/4?fs=1"},
		{"/page/4/key?k=f&meta=1&fs=1", "/page/4"},
		{"/page/4/key?k=x", "/page/4"},
	}
	for _, tt := range tests {
		p := b.get(tt.path)
		assert.Equal(t, http.StatusSeeOther, p.status, tt.path)
		assert.Equal(t, tt.location, p.location, tt.path)
	}
}

func TestPageJump(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 10)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	p := b.get("/page/2/jump?to=7")
	assert.Equal(t, "/page/7", p.location)

	p = b.get("/page/2/jump?to=500")
	assert.Equal(t, "/page/10", p.location)

	p = b.get("/page/2/jump?to=seven")
	assert.Equal(t, "/page/2", p.location)

	p = b.get(p.location)
	assert.Contains(t, p.body, "Please enter a valid page number")

	// フラッシュは一度だけ表示される
	p = b.get("/page/2")
	assert.NotContains(t, p.body, "Please enter a valid page number")
}

func TestUploadStoresToken(t *testing.T) {
	backend := newFakeBackend()
	b := newBrowser(t, backend)
	p := b.upload("report.pdf", minimalPDF(2))

	require.Equal(t, http.StatusOK, p.status, p.body)
	assert.Contains(t, p.body, "uploaded-token")
	assert.Contains(t, p.body, `href="/page/1"`)
	require.Len(t, backend.uploads, 1)
	assert.Equal(t, "report.pdf", backend.uploads[0].Filename)

	// トークンがある状態でアップロード画面を開くと閲覧画面へ移動する
	p = b.get("/upload")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/page/1", p.location)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	backend := newFakeBackend()
	b := newBrowser(t, backend)
	p := b.upload("notes.txt", []byte("just some text"))

	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, api.InvalidFileMessage)
	assert.Empty(t, backend.uploads)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	backend := newFakeBackend()
	b := newBrowser(t, backend)

	data := append(minimalPDF(1), bytes.Repeat([]byte(" "), 1<<20)...)
	p := b.upload("huge.pdf", data)

	assert.Equal(t, http.StatusRequestEntityTooLarge, p.status)
	assert.Contains(t, p.body, "The selected file is too large (max 1 MB)")
	assert.Empty(t, backend.uploads)
}

func TestClearRemovesDocument(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 3)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	p := b.post("/clear", url.Values{"csrf_token": {b.csrf("/")}})
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/", p.location)

	p = b.get("/")
	assert.Contains(t, p.body, "Why Choose ScrollForge?")
}

func TestRetryRedirectsToLocalPathOnly(t *testing.T) {
	b := newBrowser(t, newFakeBackend())
	token := b.csrf("/")

	p := b.post("/retry", url.Values{"csrf_token": {token}, "next": {"/page"}})
	assert.Equal(t, "/page", p.location)

	p = b.post("/retry", url.Values{"csrf_token": {token}, "next": {"//evil.example"}})
	assert.Equal(t, "/", p.location)
}

func TestSetThemePersistsPreference(t *testing.T) {
	b := newBrowser(t, newFakeBackend())
	token := b.csrf("/")

	p := b.post("/theme", url.Values{"csrf_token": {token}, "theme": {"sepia"}, "next": {"/load-previous"}})
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/load-previous", p.location)

	p = b.get("/")
	assert.Contains(t, p.body, `class="sf-root theme-sepia"`)
	assert.NotContains(t, p.body, "theme-minimal\"")

	p = b.post("/theme", url.Values{"csrf_token": {token}, "theme": {"neon"}})
	assert.Equal(t, http.StatusBadRequest, p.status)
}

func TestThemeSearch(t *testing.T) {
	b := newBrowser(t, newFakeBackend())

	p := b.get("/theme/search?q=sep")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, `"name":"sepia"`)
}

func TestRecoveryRendersErrorPage(t *testing.T) {
	backend := newFakeBackend()
	backend.addDocument("tok-1", "Handbook.pdf", 3)
	b := newBrowser(t, backend)
	b.loadToken("tok-1")

	backend.mu.Lock()
	backend.panicMeta = true
	backend.mu.Unlock()

	p := b.get("/page?group=1")
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.Contains(t, p.body, "Something went wrong")
	assert.Contains(t, p.body, `href="/page?group=1"`)
	assert.Contains(t, p.body, "Go home")
}

// minimalPDF は pages ページの空白ページからなる PDF を組み立てます。
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n")
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
