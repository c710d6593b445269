// Package git は go-git でリポジトリをメモリ上にクローンし、ツリー一覧と内容取得を提供する
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"
	giturls "github.com/whilp/git-urls"
	"golang.org/x/sync/singleflight"

	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/repoid"
)

// blobScheme はクローン済みリポジトリ内の blob を指す DownloadURL のスキーム
// 形式: gitblob://<owner>/<name>/<blob hash>
const blobScheme = "gitblob"

// ErrNotCloned は Download 対象のリポジトリがまだクローンされていない場合のエラー
var ErrNotCloned = errors.New("repository not cloned")

// Client は Git リポジトリ操作を提供する
//
// クローンは Acquire で取得したリースの間だけ保持され、最後のリースの解放で破棄される。
// リースのない状態から新たに Acquire すると、次の一覧取得で最新の HEAD をクローンし直す。
// 同じリポジトリへの同時要求は1回のクローンにまとめる。
type Client struct {
	baseURL     string
	token       string
	sshKeyPath  string
	sshPassword string
	depth       int
	urlFor      func(repo repoid.Repository) string
	logger      *slog.Logger

	mu     sync.Mutex
	clones map[string]*cloneEntry
	group  singleflight.Group
}

// cloneEntry はリポジトリ1件分のクローンと保持中のリース数
type cloneEntry struct {
	repo   *git.Repository
	leases int
}

// Option は Client のオプション
type Option func(*Client)

// WithBaseURL はクローン元のベースURLを設定する（例: https://github.com, git@github.com:）
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithToken は HTTPS クローン時のアクセストークンを設定する
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithSSHKey は SSH クローン時の秘密鍵とパスフレーズを設定する
func WithSSHKey(keyPath, password string) Option {
	return func(c *Client) {
		c.sshKeyPath = keyPath
		c.sshPassword = password
	}
}

// WithDepth はクローンの深さを設定する（0 は全履歴）
func WithDepth(depth int) Option {
	return func(c *Client) {
		if depth >= 0 {
			c.depth = depth
		}
	}
}

// WithURLResolver はリポジトリからクローンURLを組み立てる関数を設定する
func WithURLResolver(fn func(repo repoid.Repository) string) Option {
	return func(c *Client) {
		if fn != nil {
			c.urlFor = fn
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
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: "https://github.com",
		depth:   1,
		logger:  slog.Default(),
		clones:  make(map[string]*cloneEntry),
	}
	c.urlFor = c.defaultURL
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) defaultURL(repo repoid.Repository) string {
	base := c.baseURL
	// scp 形式（git@host:）はそのまま連結する
	if strings.HasSuffix(base, ":") {
		return base + repo.FullName() + ".git"
	}
	return strings.TrimRight(base, "/") + "/" + repo.FullName() + ".git"
}

// ListDirectory はクローン済みツリーの1ディレクトリ分を返す
// ツリーはメモリ上にあるため常に1ページで完結する
func (c *Client) ListDirectory(ctx context.Context, repo repoid.Repository, dirPath, page string) (*ingestion.Listing, error) {
	r, err := c.clone(ctx, repo)
	if err != nil {
		return nil, err
	}

	tree, err := headTree(r)
	if err != nil {
		return nil, err
	}

	dirPath = strings.Trim(dirPath, "/")
	if dirPath != "" {
		tree, err = tree.Tree(dirPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get tree %s: %w", dirPath, err)
		}
	}

	listing := &ingestion.Listing{Entries: make([]ingestion.FileDescriptor, 0, len(tree.Entries))}
	for _, entry := range tree.Entries {
		d := ingestion.FileDescriptor{
			Name: entry.Name,
			Path: path.Join(dirPath, entry.Name),
		}
		switch {
		case entry.Mode == filemode.Dir:
			d.Type = ingestion.EntryDir
		case entry.Mode == filemode.Submodule:
			d.Type = "submodule"
		case entry.Mode == filemode.Symlink:
			d.Type = "symlink"
		case entry.Mode.IsFile():
			size, err := r.Storer.EncodedObjectSize(entry.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to get size of %s: %w", d.Path, err)
			}
			d.Type = ingestion.EntryFile
			d.Size = size
			d.DownloadURL = blobURL(repo, entry.Hash)
		default:
			continue
		}
		listing.Entries = append(listing.Entries, d)
	}

	return listing, nil
}

// Download は gitblob URL が指す blob の内容を読み込む
func (c *Client) Download(ctx context.Context, d ingestion.FileDescriptor) ([]byte, error) {
	repoKey, hash, err := parseBlobURL(d.DownloadURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	var r *git.Repository
	if e, ok := c.clones[repoKey]; ok {
		r = e.repo
	}
	c.mu.Unlock()
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCloned, repoKey)
	}

	blob, err := r.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", hash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Acquire はリポジトリのクローンを保持するリースを取得する
// 返された関数でリースを解放する（複数回呼んでも1回分として扱う）
func (c *Client) Acquire(repo repoid.Repository) func() {
	key := repo.FullName()

	c.mu.Lock()
	e, ok := c.clones[key]
	if !ok {
		e = &cloneEntry{}
		c.clones[key] = e
	}
	if e.leases == 0 && e.repo != nil {
		// 前回の取り込み以降の更新を反映するため取り直す
		c.logger.Debug("キャッシュ済みのクローンを破棄します", "repository", key)
		e.repo = nil
	}
	e.leases++
	c.mu.Unlock()

	return sync.OnceFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		e.leases--
		if e.leases == 0 && c.clones[key] == e {
			delete(c.clones, key)
			c.logger.Debug("クローンを解放しました", "repository", key)
		}
	})
}

// Cached はメモリ上に保持しているクローンの数を返す
func (c *Client) Cached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.clones {
		if e.repo != nil {
			n++
		}
	}
	return n
}

// clone はリポジトリをメモリ上にクローンする（キャッシュ済みならそれを返す）
func (c *Client) clone(ctx context.Context, repo repoid.Repository) (*git.Repository, error) {
	key := repo.FullName()

	c.mu.Lock()
	if e, ok := c.clones[key]; ok && e.repo != nil {
		c.mu.Unlock()
		return e.repo, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		cloneURL := c.urlFor(repo)
		auth, err := c.auth(cloneURL)
		if err != nil {
			return nil, fmt.Errorf("failed to setup auth: %w", err)
		}

		c.logger.Info("リポジトリをクローンします", "repository", key)
		r, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
			URL:          cloneURL,
			Auth:         auth,
			Depth:        c.depth,
			SingleBranch: true,
			Tags:         git.NoTags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone repository %s: %w", key, err)
		}

		c.mu.Lock()
		e, ok := c.clones[key]
		if !ok {
			e = &cloneEntry{}
			c.clones[key] = e
		}
		e.repo = r
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*git.Repository), nil
}

// auth はクローンURLのスキームに応じた認証方式を返す
func (c *Client) auth(cloneURL string) (transport.AuthMethod, error) {
	u, err := giturls.Parse(cloneURL)
	if err == nil && u.Scheme == "ssh" {
		return c.getSSHAuth()
	}
	if c.token != "" && err == nil && strings.HasPrefix(u.Scheme, "http") {
		return &githttp.BasicAuth{Username: "x-access-token", Password: c.token}, nil
	}
	return nil, nil
}

func (c *Client) getSSHAuth() (transport.AuthMethod, error) {
	if c.sshKeyPath == "" {
		return nil, nil
	}

	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}

	return auth, nil
}

func headTree(r *git.Repository) (*object.Tree, error) {
	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := r.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return tree, nil
}

func blobURL(repo repoid.Repository, hash plumbing.Hash) string {
	return fmt.Sprintf("%s://%s/%s/%s", blobScheme, repo.Owner, repo.Name, hash.String())
}

func parseBlobURL(raw string) (string, plumbing.Hash, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != blobScheme {
		return "", plumbing.ZeroHash, fmt.Errorf("unsupported download url: %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || u.Host == "" {
		return "", plumbing.ZeroHash, fmt.Errorf("unsupported download url: %q", raw)
	}
	hash := plumbing.NewHash(parts[1])
	if hash.IsZero() {
		return "", plumbing.ZeroHash, fmt.Errorf("invalid blob hash in %q", raw)
	}
	return u.Host + "/" + parts[0], hash, nil
}

// インターフェース実装の確認
var (
	_ ingestion.TreeSource = (*Client)(nil)
	_ ingestion.Downloader = (*Client)(nil)
	_ ingestion.TreeLeaser = (*Client)(nil)
)
