// Package github は GitHub Contents API を使ったツリー取得とファイルダウンロードを提供する
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/repoid"
)

const (
	// DefaultAPIBase は GitHub API のベースURL
	DefaultAPIBase = "https://api.github.com"

	// DefaultDialTimeout は接続確立のタイムアウト
	DefaultDialTimeout = 3 * time.Second

	// DefaultResponseTimeout はレスポンスヘッダ受信までのタイムアウト
	DefaultResponseTimeout = 27 * time.Second

	// DefaultDownloadTimeout はファイル1件のダウンロードのタイムアウト
	DefaultDownloadTimeout = 10 * time.Second

	// DefaultMaxDownloadSize はダウンロードで読み込む最大バイト数
	DefaultMaxDownloadSize int64 = 10 << 20
)

var (
	// ErrMalformedListing は一覧レスポンスが配列でない場合のエラー
	// パスがファイルを指している場合などに返る
	ErrMalformedListing = errors.New("malformed directory listing")

	// ErrDownloadTooLarge はダウンロード内容が上限を超えた場合のエラー
	ErrDownloadTooLarge = errors.New("download exceeds size limit")
)

// StatusError は200以外の応答を表す
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Repository は一覧APIが返すリポジトリ情報
type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Private  bool   `json:"private"`
}

// Client は GitHub API クライアント
type Client struct {
	httpClient      *http.Client
	downloadClient  *http.Client
	apiBase         string
	token           string
	downloadTimeout time.Duration
	maxDownloadSize int64
	logger          *slog.Logger
}

// Option は Client のオプション
type Option func(*Client)

// WithAPIBase は API のベースURLを設定する（GitHub Enterprise やテスト用）
func WithAPIBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient は API 呼び出しとダウンロードに使う http.Client を設定する
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
			c.downloadClient = hc
		}
	}
}

// WithDownloadTimeout はダウンロード1件あたりのタイムアウトを設定する
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.downloadTimeout = d
		}
	}
}

// WithMaxDownloadSize はダウンロードの上限サイズを設定する
func WithMaxDownloadSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxDownloadSize = n
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient は新しい Client を作成する
func NewClient(token string, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultDialTimeout,
		ResponseHeaderTimeout: DefaultResponseTimeout,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
	hc := &http.Client{Transport: transport}

	c := &Client{
		httpClient:      hc,
		downloadClient:  hc,
		apiBase:         DefaultAPIBase,
		token:           token,
		downloadTimeout: DefaultDownloadTimeout,
		maxDownloadSize: DefaultMaxDownloadSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contentEntry は Contents API の1エントリ
type contentEntry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	Size        int64   `json:"size"`
	DownloadURL *string `json:"download_url"`
}

// ListDirectory はディレクトリの1ページ分の一覧を取得する
// page が空の場合は最初のページ、それ以外は前回の NextPage（完全なURL）を使う
func (c *Client) ListDirectory(ctx context.Context, repo repoid.Repository, dirPath, page string) (*ingestion.Listing, error) {
	requestURL := page
	if requestURL == "" {
		requestURL = c.contentsURL(repo, dirPath)
	}

	resp, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(requestURL, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing of %s: %w", requestURL, err)
	}

	var entries []contentEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedListing, requestURL, err)
	}

	listing := &ingestion.Listing{
		Entries:  make([]ingestion.FileDescriptor, 0, len(entries)),
		NextPage: nextLink(resp.Header.Get("Link")),
	}
	for _, e := range entries {
		d := ingestion.FileDescriptor{
			Name: e.Name,
			Path: e.Path,
			Type: ingestion.EntryType(e.Type),
			Size: e.Size,
		}
		if e.DownloadURL != nil {
			d.DownloadURL = *e.DownloadURL
		}
		listing.Entries = append(listing.Entries, d)
	}

	c.logger.Debug("ディレクトリ一覧を取得しました",
		"repository", repo.FullName(),
		"path", dirPath,
		"entries", len(listing.Entries),
		"hasNext", listing.NextPage != "")

	return listing, nil
}

// Download は download_url から内容を取得する
// raw ホストには認証ヘッダを付けない
func (c *Client) Download(ctx context.Context, d ingestion.FileDescriptor) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(d.DownloadURL, resp)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > c.maxDownloadSize {
		return nil, fmt.Errorf("%w: %s", ErrDownloadTooLarge, d.Path)
	}
	return content, nil
}

// ListRepositories はオーナーの公開リポジトリを全ページ分取得する
func (c *Client) ListRepositories(ctx context.Context, owner string) ([]Repository, error) {
	requestURL := fmt.Sprintf("%s/users/%s/repos?per_page=100", c.apiBase, url.PathEscape(owner))

	var repos []Repository
	for requestURL != "" {
		page, next, err := c.listRepositoriesPage(ctx, requestURL)
		if err != nil {
			return nil, err
		}
		repos = append(repos, page...)
		requestURL = next
	}
	return repos, nil
}

func (c *Client) listRepositoriesPage(ctx context.Context, requestURL string) ([]Repository, string, error) {
	resp, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", newStatusError(requestURL, resp)
	}

	var page []Repository
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("failed to decode repositories: %w", err)
	}
	return page, nextLink(resp.Header.Get("Link")), nil
}

func (c *Client) contentsURL(repo repoid.Repository, dirPath string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents", c.apiBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	if dirPath == "" {
		return u
	}
	segments := strings.Split(strings.Trim(dirPath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return u + "/" + strings.Join(segments, "/")
}

func (c *Client) get(ctx context.Context, requestURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func newStatusError(requestURL string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		URL:        requestURL,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

var linkPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="([^"]+)"`)

// nextLink は Link ヘッダから rel="next" のURLを取り出す
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		m := linkPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		for _, rel := range strings.Fields(m[2]) {
			if rel == "next" {
				return m[1]
			}
		}
	}
	return ""
}

// インターフェース実装の確認
var (
	_ ingestion.TreeSource = (*Client)(nil)
	_ ingestion.Downloader = (*Client)(nil)
)
