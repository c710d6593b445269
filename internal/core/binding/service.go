// Package binding はリポジトリ名をキーにインデックスとアシスタントを構築・再利用する
package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/repoid"
	"github.com/jinford/repo-outliner/internal/platform/lock"
	"github.com/jinford/repo-outliner/internal/platform/metrics"
)

const (
	// IndexNamePrefix はインデックス名の接頭辞
	IndexNamePrefix = "repo-outliner:"
	// DefaultIndexExpiryDays はインデックスの既定の有効期限（最終利用からの日数）
	DefaultIndexExpiryDays = 1
	// DefaultModel はアシスタントの既定モデル
	DefaultModel = "gpt-4o"
)

var (
	// ErrBindingNotFound はリポジトリ名に対応するアシスタントが存在しない場合のエラー
	ErrBindingNotFound = errors.New("binding not found")
	// ErrSourceUnavailable はリポジトリのルートを一覧できなかった場合のエラー
	// 空のインデックスにアシスタントを紐付けないよう、構築を中断する
	ErrSourceUnavailable = errors.New("repository tree unavailable")
)

// IndexName はリポジトリ名からインデックス名を決める
func IndexName(repositoryName string) string {
	return IndexNamePrefix + repositoryName
}

// Service はバインディングの検索と構築を行う
type Service struct {
	registry   AssistantRegistry
	indexes    IndexProvisioner
	ingester   Ingester
	locker     lock.Locker
	preflight  func() error
	model      string
	expiryDays int
	logger     *slog.Logger
}

type serviceOptions struct {
	preflight  func() error
	locker     lock.Locker
	model      string
	expiryDays int
	logger     *slog.Logger
}

// Option は Service のオプション設定
type Option func(*serviceOptions)

// WithLocker は構築の排他制御に使う Locker を設定する（既定はプロセス内ロック）
func WithLocker(l lock.Locker) Option {
	return func(o *serviceOptions) {
		o.locker = l
	}
}

// WithPreflight は構築の前に実行する検証を設定する
// 検証に失敗した場合はインデックスを作成せずにそのエラーを返す
func WithPreflight(fn func() error) Option {
	return func(o *serviceOptions) {
		o.preflight = fn
	}
}

// WithModel はアシスタントのモデルを設定する
func WithModel(model string) Option {
	return func(o *serviceOptions) {
		o.model = model
	}
}

// WithIndexExpiryDays はインデックスの有効期限を設定する
func WithIndexExpiryDays(days int) Option {
	return func(o *serviceOptions) {
		o.expiryDays = days
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(registry AssistantRegistry, indexes IndexProvisioner, ingester Ingester, opts ...Option) *Service {
	options := serviceOptions{
		model:      DefaultModel,
		expiryDays: DefaultIndexExpiryDays,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.locker == nil {
		options.locker = lock.NewKeyedMutex()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.model == "" {
		options.model = DefaultModel
	}
	if options.expiryDays <= 0 {
		options.expiryDays = DefaultIndexExpiryDays
	}

	return &Service{
		registry:   registry,
		indexes:    indexes,
		ingester:   ingester,
		locker:     options.locker,
		preflight:  options.preflight,
		model:      options.model,
		expiryDays: options.expiryDays,
		logger:     options.logger,
	}
}

// Lookup は名前が repositoryName と完全一致するアシスタントを探す
// 同名が複数ある場合は作成日時が新しいもの、同時刻なら ID が大きいものを返す
func (s *Service) Lookup(ctx context.Context, repositoryName string) (*Binding, error) {
	assistants, err := s.registry.ListAssistants(ctx)
	if err != nil {
		return nil, fmt.Errorf("アシスタント一覧の取得に失敗: %w", err)
	}

	var matches []Assistant
	for _, a := range assistants {
		if a.Name == repositoryName {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil, ErrBindingNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	chosen := matches[0]

	if len(matches) > 1 {
		s.logger.Warn("同名のアシスタントが複数存在します。最新のものを使用します",
			"repositoryName", repositoryName,
			"count", len(matches),
			"assistantID", chosen.ID,
		)
	}

	var indexID string
	if len(chosen.IndexIDs) > 0 {
		indexID = chosen.IndexIDs[0]
	}

	return &Binding{
		IndexID:        indexID,
		AssistantID:    chosen.ID,
		RepositoryName: repositoryName,
	}, nil
}

// Resolve は既存のバインディングを返すか、なければ構築する
//
// 同じリポジトリ名の Resolve はロックで直列化される。
// 構築は呼び出し元のキャンセルの影響を受けず、最後まで実行される。
func (s *Service) Resolve(ctx context.Context, repo repoid.Repository) (*BuildResult, error) {
	name := repo.Name

	unlock, err := s.locker.Lock(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("構築ロックの取得に失敗: %w", err)
	}
	defer unlock()

	existing, err := s.Lookup(ctx, name)
	switch {
	case err == nil:
		s.logger.Info("既存のバインディングを再利用します",
			"repositoryName", name,
			"assistantID", existing.AssistantID,
			"indexID", existing.IndexID,
		)
		metrics.RecordBuild("reused", 0)
		return &BuildResult{
			Binding:     *existing,
			Reused:      true,
			UploadedIDs: []string{},
			Errors:      []string{},
		}, nil
	case !errors.Is(err, ErrBindingNotFound):
		metrics.RecordBuild("error", 0)
		return nil, err
	}

	return s.build(context.WithoutCancel(ctx), repo)
}

func (s *Service) build(ctx context.Context, repo repoid.Repository) (*BuildResult, error) {
	start := time.Now()
	name := repo.Name
	buildID := uuid.NewString()

	logger := s.logger.With("buildID", buildID, "repository", repo.FullName())

	if s.preflight != nil {
		if err := s.preflight(); err != nil {
			metrics.RecordBuild("error", 0)
			return nil, err
		}
	}
	logger.Info("インデックスの構築を開始します")

	indexID, err := s.indexes.CreateIndex(ctx, IndexName(name), s.expiryDays)
	if err != nil {
		metrics.RecordBuild("error", time.Since(start))
		return nil, fmt.Errorf("インデックスの作成に失敗: %w", err)
	}
	logger.Info("インデックスを作成しました", "indexID", indexID)

	ingested := s.ingester.Ingest(ctx, repo, indexID)
	report := ingested.Report

	result := &BuildResult{
		Binding: Binding{
			IndexID:        indexID,
			RepositoryName: name,
		},
		BuildID:     buildID,
		UploadedIDs: report.AttachedIDs,
		Errors:      report.Errors,
		Skipped:     report.Skipped,
		Files:       ingested.Files,
		Message:     report.Message(),
	}

	if ingested.RootErr != nil {
		result.Duration = time.Since(start)
		metrics.RecordBuild("error", result.Duration)
		logger.Warn("ルートを一覧できないためアシスタントを作成しません", "indexID", indexID, "error", ingested.RootErr)
		return result, fmt.Errorf("%w: %w", ErrSourceUnavailable, ingested.RootErr)
	}

	assistantID, err := s.registry.CreateAssistant(ctx, AssistantSpec{
		Name:         name,
		Instructions: assistantInstructions(name),
		Model:        s.model,
		IndexID:      indexID,
	})
	result.Duration = time.Since(start)
	if err != nil {
		metrics.RecordBuild("error", result.Duration)
		// アップロード済みの結果は無駄にせず返す
		return result, fmt.Errorf("アシスタントの作成に失敗: %w", err)
	}
	result.AssistantID = assistantID

	metrics.RecordBuild("built", result.Duration)
	logger.Info("インデックスの構築が完了しました",
		"assistantID", assistantID,
		"indexID", indexID,
		"attached", len(result.UploadedIDs),
		"errors", len(result.Errors),
		"duration", result.Duration,
	)

	return result, nil
}

// ListFiles は取り込み対象となるファイル一覧を返す
func (s *Service) ListFiles(ctx context.Context, repo repoid.Repository) []ingestion.FileDescriptor {
	return s.ingester.ListFiles(ctx, repo)
}

func assistantInstructions(repositoryName string) string {
	return fmt.Sprintf(
		"You are a software engineer documenting the repository %q. "+
			"Answer using only the source files in the vector store attached to you, "+
			"and cite concrete modules, technologies, and design decisions.",
		repositoryName,
	)
}
