// Package api は PDF 変換バックエンドとの通信と、クライアント側のエラー分類を提供します。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL はバックエンドの既定 URL です。
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout は各リクエストの既定の期限です。
	DefaultTimeout = 10 * time.Second

	maxRedirects    = 10
	maxContentBytes = 32 << 20

	fallbackUploadMessage   = "Failed to process PDF"
	fallbackMetadataMessage = "Failed to fetch document information"
	fallbackContentMessage  = "Failed to fetch page"
	notFoundMessage         = "Document not found"
	responseTooLargeMessage = "The server response is too large"
)

// UploadResult は POST /api/pdftohtml の成功レスポンスです。
type UploadResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Token      string `json:"token"`
	TotalPages int    `json:"total_pages"`
}

// DocumentMetadata は GET /api/pages/{token} の成功レスポンスです。
type DocumentMetadata struct {
	Success    bool   `json:"success"`
	PDFName    string `json:"pdf_name"`
	TotalPages int    `json:"total_pages"`
	PageCount  int    `json:"page_count"`
}

// Upload はアップロードするファイルです。
type Upload struct {
	Filename string
	Data     []byte
	Progress ProgressFunc
}

// Client はバックエンド API クライアントです。
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	maxBodySize   int64
	logger        *logrus.Logger
}

// Option は Client の設定を変更します。
type Option func(*Client)

// WithTimeout はメタデータ・ページ取得の期限を設定します。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUploadTimeout はアップロードの期限を設定します。未指定なら WithTimeout と同じです。
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// WithHTTPClient は利用する http.Client を差し替えます。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxBodySize は受け付けるレスポンス本文の上限を設定します。
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient は baseURL 向けの Client を作成します。空文字なら DefaultBaseURL を使います。
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// 期限はリクエストごとのコンテキストで管理する
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		timeout:     DefaultTimeout,
		maxBodySize: maxContentBytes,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = c.timeout
	}
	return c
}

// BaseURL はバックエンドの URL を返します。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadDocument は PDF をアップロードし、発行されたアクセストークンを返します。
func (c *Client) UploadDocument(ctx context.Context, up Upload) (*UploadResult, error) {
	body, contentType, err := encodeUpload(up)
	if err != nil {
		return nil, newError(KindProcessing, 0, fallbackUploadMessage, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	total := int64(body.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "pdftohtml"),
		newProgressReader(body, total, up.Progress))
	if err != nil {
		return nil, newError(KindProcessing, 0, fallbackUploadMessage, err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	status, data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		msg := errorDetail(data, fallbackUploadMessage)
		c.logger.WithFields(logrus.Fields{"status": status, "filename": up.Filename}).Warn("Upload rejected by backend")
		return nil, newError(KindProcessing, status, msg, nil)
	}

	var result UploadResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, newError(KindProcessing, status, fallbackUploadMessage, fmt.Errorf("failed to decode upload response: %w", err))
	}
	if strings.TrimSpace(result.Token) == "" {
		return nil, newError(KindProcessing, status, fallbackUploadMessage, errors.New("upload response has no token"))
	}

	c.logger.WithFields(logrus.Fields{
		"filename":    up.Filename,
		"total_pages": result.TotalPages,
	}).Info("Document uploaded")
	return &result, nil
}

// FetchDocumentMetadata はトークンに対応する文書情報を取得します。
// 404 は NotFound（トークン無効）として区別します。
func (c *Client) FetchDocumentMetadata(ctx context.Context, token string) (*DocumentMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("api", "pages", token), nil)
	if err != nil {
		return nil, newError(KindRequest, 0, fallbackMetadataMessage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, newError(KindNotFound, status, notFoundMessage, nil)
	}
	if !isSuccess(status) {
		return nil, newError(KindRequest, status, errorDetail(data, fallbackMetadataMessage), nil)
	}

	var meta DocumentMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, newError(KindRequest, status, fallbackMetadataMessage, fmt.Errorf("failed to decode metadata: %w", err))
	}
	return &meta, nil
}

// FetchPageContent は1ページ分の HTML を取得します。リダイレクトは追従します。
// 404 は NotFound として返すため、呼び出し側はトークンの再検証結果として扱えます。
func (c *Client) FetchPageContent(ctx context.Context, token string, page int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("api", "page", token, strconv.Itoa(page)), nil)
	if err != nil {
		return "", newError(KindRequest, 0, fallbackContentMessage, err)
	}
	req.Header.Set("Accept", "text/html")

	status, data, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", newError(KindNotFound, status, errorDetail(data, notFoundMessage), nil)
	}
	if !isSuccess(status) {
		return "", newError(KindRequest, status, errorDetail(data, fallbackContentMessage), nil)
	}
	return string(data), nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// do はリクエストを送信し、ボディまで読み切ります。通信エラーは型付きエラーに変換します。
// 本文が上限を超える場合は途中で切らずに RequestError を返します。
func (c *Client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, c.transportError(req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return 0, nil, c.transportError(req, err)
	}
	if int64(len(data)) > c.maxBodySize {
		c.logger.WithFields(logrus.Fields{
			"path":  req.URL.Path,
			"limit": c.maxBodySize,
		}).Warn("Backend response exceeded size limit")
		return 0, nil, newError(KindRequest, resp.StatusCode, responseTooLargeMessage,
			fmt.Errorf("response body exceeds %d bytes", c.maxBodySize))
	}

	c.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Backend request completed")
	return resp.StatusCode, data, nil
}

func (c *Client) transportError(req *http.Request, err error) error {
	ctxErr := req.Context().Err()
	switch {
	case errors.Is(ctxErr, context.Canceled):
		// ページ遷移などで呼び出し側が破棄したリクエスト
		return ctxErr
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctxErr, context.DeadlineExceeded), isNetTimeout(err):
		c.logger.WithField("path", req.URL.Path).Warn("Backend request timed out")
		return newError(KindTimeout, 0, TimeoutMessage, err)
	default:
		c.logger.WithError(err).WithField("path", req.URL.Path).Warn("Backend request failed")
		return newError(KindRequest, 0, "Could not reach the server. Please try again.", err)
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// errorDetail はエラーレスポンスの {error} または {detail} を取り出します。
func errorDetail(data []byte, fallback string) string {
	var body struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(body.Error); msg != "" {
		return msg
	}
	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil && strings.TrimSpace(detail) != "" {
		return strings.TrimSpace(detail)
	}
	return fallback
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeUpload(up Upload) (*bytes.Buffer, string, error) {
	filename := strings.TrimSpace(up.Filename)
	if filename == "" {
		filename = "document.pdf"
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
