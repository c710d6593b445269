// Package container は設定から各サービスを組み立てる
package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/classify"
	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/outline"
	"github.com/jinford/repo-outliner/internal/infra/detector"
	"github.com/jinford/repo-outliner/internal/infra/git"
	"github.com/jinford/repo-outliner/internal/infra/github"
	"github.com/jinford/repo-outliner/internal/infra/openai"
	"github.com/jinford/repo-outliner/internal/infra/tokenizer"
	"github.com/jinford/repo-outliner/internal/interface/httpapi"
	"github.com/jinford/repo-outliner/internal/platform/config"
	"github.com/jinford/repo-outliner/internal/platform/lock"
	"github.com/jinford/repo-outliner/internal/platform/ratelimit"
)

// lockNamespace は構築ロックの ID 生成に使う名前空間
const lockNamespace = "repo-outliner:build"

// assistantBackend はインデックス・アシスタント・スレッド実行をまとめたバックエンド
type assistantBackend interface {
	ingestion.IndexStore
	binding.IndexProvisioner
	binding.AssistantRegistry
	outline.Runtime
}

// treeBackend はツリー取得とダウンロードをまとめたバックエンド
type treeBackend interface {
	ingestion.TreeSource
	ingestion.Downloader
}

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config   *config.Config
	Ingest   *ingestion.IngestService
	Bindings *binding.Service
	Outlines *outline.Service
	GitHub   *github.Client

	logger  *slog.Logger
	closers []func()
}

type containerOptions struct {
	backend assistantBackend
	tree    treeBackend
	locker  lock.Locker
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerBackend はインデックス・アシスタントのバックエンドを差し替える
func WithContainerBackend(b assistantBackend) ContainerOption {
	return func(o *containerOptions) {
		o.backend = b
	}
}

// WithContainerTreeSource はツリー取得とダウンロードの実装を差し替える
func WithContainerTreeSource(t treeBackend) ContainerOption {
	return func(o *containerOptions) {
		o.tree = t
	}
}

// WithContainerLocker は構築ロックを差し替える
func WithContainerLocker(l lock.Locker) ContainerOption {
	return func(o *containerOptions) {
		o.locker = l
	}
}

// NewContainer は設定からコンテナを生成する
// 資格情報が不足していても生成は成功し、該当する操作の呼び出し時に ErrConfiguration を返す
func NewContainer(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := containerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	c := &ServiceContainer{Config: cfg, logger: logger}

	c.GitHub = github.NewClient(cfg.GitHub.APIKey,
		github.WithAPIBase(cfg.GitHub.APIBase),
		github.WithLogger(logger),
	)

	tree := options.tree
	if tree == nil {
		tree = c.newTreeBackend()
	}

	backend := options.backend
	if backend == nil {
		var err error
		if backend, err = c.newAssistantBackend(); err != nil {
			return nil, err
		}
	}

	locker := options.locker
	if locker == nil {
		var err error
		if locker, err = c.newLocker(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}

	classifier := classify.New(
		classify.WithMaxFileSize(cfg.Ingest.MaxFileSize),
		classify.WithExtraIgnore(cfg.Ingest.ExtraIgnore...),
		classify.WithLogger(logger),
	)

	walker := ingestion.NewWalker(tree, classifier,
		ingestion.WithWalkConcurrency(cfg.Ingest.WalkConcurrency),
		ingestion.WithMaxDepth(cfg.Ingest.MaxDepth),
		ingestion.WithWalkerLogger(logger),
	)

	uploadLimiter := ratelimit.New(cfg.OpenAI.UploadRPM)
	if uploadLimiter.Limited() {
		logger.Info("ファイルアップロードのレート制限を有効にします", "perMinute", cfg.OpenAI.UploadRPM)
	}
	uploaderOpts := []ingestion.UploaderOption{
		ingestion.WithUploadConcurrency(cfg.Ingest.UploadConcurrency),
		ingestion.WithTransientClassifier(openai.IsTransient),
		ingestion.WithContentTypeDetector(detector.New()),
		ingestion.WithRateLimiter(uploadLimiter),
		ingestion.WithUploaderLogger(logger),
	}
	if counter, err := tokenizer.NewTokenCounter(); err != nil {
		logger.Warn("トークンカウンタを初期化できないため、トークン数は集計しません", "error", err)
	} else {
		uploaderOpts = append(uploaderOpts, ingestion.WithTokenCounter(counter))
	}
	uploader := ingestion.NewUploader(ingestion.NewContentFetcher(tree, logger), backend, uploaderOpts...)

	c.Ingest = ingestion.NewIngestService(walker, uploader, ingestion.WithIngestLogger(logger))

	c.Bindings = binding.NewService(backend, backend, c.Ingest,
		binding.WithLocker(locker),
		binding.WithPreflight(cfg.ValidateSource),
		binding.WithModel(cfg.OpenAI.Model),
		binding.WithIndexExpiryDays(cfg.OpenAI.IndexTTL),
		binding.WithLogger(logger),
	)

	session := outline.NewSession(backend, outline.WithSessionLogger(logger))
	c.Outlines = outline.NewService(c.Bindings, session, logger)

	return c, nil
}

func (c *ServiceContainer) newTreeBackend() treeBackend {
	cfg := c.Config
	if cfg.Ingest.Provider == config.SourceProviderGit {
		return git.NewClient(
			git.WithBaseURL(cfg.Git.BaseURL),
			git.WithToken(cfg.GitHub.APIKey),
			git.WithSSHKey(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword),
			git.WithLogger(c.logger),
		)
	}
	return c.GitHub
}

func (c *ServiceContainer) newAssistantBackend() (assistantBackend, error) {
	cfg := c.Config
	if err := cfg.ValidateOpenAI(); err != nil {
		c.logger.Debug("OpenAI の資格情報が未設定です", "error", err)
		return unconfiguredBackend{err: err}, nil
	}

	client, err := openai.NewClient(cfg.OpenAI.APIKey,
		openai.WithTimeout(cfg.OpenAI.APITimeout),
		openai.WithLogger(c.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI クライアントの初期化に失敗: %w", err)
	}
	return client, nil
}

func (c *ServiceContainer) newLocker(ctx context.Context) (lock.Locker, error) {
	if c.Config.Database.URL == "" {
		return lock.NewKeyedMutex(), nil
	}

	pool, err := lock.Connect(ctx, c.Config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("ロック用データベースへの接続に失敗: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.logger.Info("Postgres のアドバイザリロックで構築を排他制御します")
	return lock.NewAdvisoryLocker(pool, lockNamespace, c.logger), nil
}

// HTTPServer は HTTP API サーバを返す
func (c *ServiceContainer) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(c.Config, c.Bindings, c.Outlines, c.GitHub, c.logger)
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close は保持しているリソースを解放する
func (c *ServiceContainer) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
