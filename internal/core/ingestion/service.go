package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/jinford/repo-outliner/internal/core/repoid"
)

// IngestResult はツリー走査とアップロードをまとめた結果
type IngestResult struct {
	Files  []FileDescriptor
	Report *UploadReport
	// RootErr はルートの一覧取得に失敗した場合のエラー（このときアップロードは行わない）
	RootErr  error
	Duration time.Duration
}

// IngestService はリポジトリの取り込みユースケースを提供する
// 走査フェーズが完了してからアップロードフェーズを開始する
type IngestService struct {
	walker   *Walker
	uploader *Uploader
	logger   *slog.Logger
}

type ingestServiceOptions struct {
	logger *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// NewIngestService は新しい IngestService を作成する
func NewIngestService(walker *Walker, uploader *Uploader, opts ...IngestServiceOption) *IngestService {
	options := ingestServiceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &IngestService{
		walker:   walker,
		uploader: uploader,
		logger:   options.logger,
	}
}

// ListFiles はリポジトリの取り込み対象ファイル一覧を返す
func (s *IngestService) ListFiles(ctx context.Context, repo repoid.Repository) []FileDescriptor {
	defer s.acquire(repo)()

	return s.walker.Walk(ctx, repo, "")
}

// Ingest はリポジトリを走査し、対象ファイルを indexID のインデックスへ取り込む
func (s *IngestService) Ingest(ctx context.Context, repo repoid.Repository, indexID string) *IngestResult {
	start := time.Now()
	// アップロードが終わるまでツリーを保持する
	defer s.acquire(repo)()

	files, err := s.walker.walkRoot(ctx, repo, "")
	if err != nil {
		s.logger.Warn("ルートの一覧取得に失敗したためアップロードを行いません", "repository", repo.FullName(), "error", err)
		return &IngestResult{
			Report:   &UploadReport{AttachedIDs: []string{}, Errors: []string{}},
			RootErr:  err,
			Duration: time.Since(start),
		}
	}

	s.logger.Info("アップロードを開始します",
		"repository", repo.FullName(),
		"indexID", indexID,
		"files", len(files),
	)

	report := s.uploader.UploadAll(ctx, indexID, files)

	return &IngestResult{
		Files:    files,
		Report:   report,
		Duration: time.Since(start),
	}
}

// acquire はツリーが TreeLeaser ならリースを取得し、その解放関数を返す
func (s *IngestService) acquire(repo repoid.Repository) func() {
	if l, ok := s.walker.source.(TreeLeaser); ok {
		return l.Acquire(repo)
	}
	return func() {}
}
