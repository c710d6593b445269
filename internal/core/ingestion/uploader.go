package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jinford/repo-outliner/internal/platform/metrics"
	"github.com/jinford/repo-outliner/internal/platform/workpool"
)

const (
	// DefaultUploadConcurrency はファイル処理ワーカーの既定数
	DefaultUploadConcurrency = 20
)

// RetryConfig はアップロードのリトライ設定
type RetryConfig struct {
	MaxAttempts     int           // 初回を含む試行回数
	InitialInterval time.Duration // 初回リトライまでの待機
	MaxInterval     time.Duration // 待機時間の上限
}

// DefaultRetryConfig はデフォルトのリトライ設定を返す（3回、2秒から倍々で最大10秒）
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
	}
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	retries := c.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Uploader はファイルを取得してリモートインデックスへアップロード・紐付けする
//
// 各ファイルは fetch → upload → attach を独立に実行し、
// 失敗はファイル単位のエラーとして集計する（バッチ全体は中断しない）。
type Uploader struct {
	fetcher     *ContentFetcher
	store       IndexStore
	detector    ContentTypeDetector
	tokens      TokenCounter
	limiter     RateLimiter
	concurrency int
	retry       RetryConfig
	isTransient func(error) bool
	logger      *slog.Logger
}

// UploaderOption は Uploader のオプション
type UploaderOption func(*Uploader)

// WithUploadConcurrency はワーカー数の上限を設定する
func WithUploadConcurrency(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithRetryConfig はリトライ設定を上書きする
func WithRetryConfig(cfg RetryConfig) UploaderOption {
	return func(u *Uploader) {
		u.retry = cfg
	}
}

// WithTransientClassifier はリトライ対象とするエラーの判定関数を設定する
func WithTransientClassifier(fn func(error) bool) UploaderOption {
	return func(u *Uploader) {
		if fn != nil {
			u.isTransient = fn
		}
	}
}

// WithContentTypeDetector は拡張子テーブルにないファイルのMIME検出器を設定する
func WithContentTypeDetector(d ContentTypeDetector) UploaderOption {
	return func(u *Uploader) {
		u.detector = d
	}
}

// WithTokenCounter はアップロード内容のトークン数集計に使うカウンタを設定する
func WithTokenCounter(tc TokenCounter) UploaderOption {
	return func(u *Uploader) {
		u.tokens = tc
	}
}

// WithRateLimiter はアップロード呼び出しのレート制限を設定する
func WithRateLimiter(rl RateLimiter) UploaderOption {
	return func(u *Uploader) {
		if rl != nil {
			u.limiter = rl
		}
	}
}

// WithUploaderLogger はロガーを設定する
func WithUploaderLogger(logger *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUploader は新しい Uploader を作成する
func NewUploader(fetcher *ContentFetcher, store IndexStore, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		fetcher:     fetcher,
		store:       store,
		limiter:     noopLimiter{},
		concurrency: DefaultUploadConcurrency,
		retry:       DefaultRetryConfig(),
		isTransient: defaultTransient,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadAll は files を並列に処理し、結果を集計して返す
// 全てのファイルについて結果がちょうど1件得られる
func (u *Uploader) UploadAll(ctx context.Context, indexID string, files []FileDescriptor) *UploadReport {
	results := workpool.Map(ctx, u.concurrency, files, func(ctx context.Context, d FileDescriptor) UploadResult {
		return u.process(ctx, indexID, d)
	})

	report := &UploadReport{AttachedIDs: []string{}, Errors: []string{}}
	for _, res := range results {
		report.add(res)
	}

	if len(report.Errors) > 0 {
		u.logger.Warn("アップロード完了（一部失敗あり）",
			"indexID", indexID,
			"attached", len(report.AttachedIDs),
			"errors", len(report.Errors),
			"skipped", report.Skipped,
		)
	} else {
		u.logger.Info("アップロード完了",
			"indexID", indexID,
			"attached", len(report.AttachedIDs),
			"skipped", report.Skipped,
			"tokens", report.TotalTokens,
		)
	}

	return report
}

// process は1ファイル分の fetch → upload → attach を実行する
func (u *Uploader) process(ctx context.Context, indexID string, d FileDescriptor) UploadResult {
	res := UploadResult{Path: d.Path}

	content, skip, err := u.fetcher.Fetch(ctx, d)
	if err != nil {
		u.logger.Warn("ファイルの取得に失敗しました", "path", d.Path, "error", err)
		res.Error = describeFailure(d.Path, err)
		metrics.RecordUpload("error", 0)
		return res
	}
	if skip != SkipNone {
		res.Skipped = skip
		metrics.RecordUpload("skipped", 0)
		return res
	}

	contentType := contentTypeFor(d.Path, content, u.detector)
	fileID, err := u.uploadWithRetry(ctx, content, d.Filename(), contentType)
	if err != nil {
		u.logger.Warn("ファイルのアップロードに失敗しました", "path", d.Path, "error", err)
		res.Error = describeFailure(d.Path, err)
		metrics.RecordUpload("error", 0)
		return res
	}
	u.logger.Debug("ファイルをアップロードしました", "path", d.Path, "fileID", fileID, "contentType", contentType)

	if err := u.store.AttachFile(ctx, indexID, fileID); err != nil {
		u.logger.Warn("ファイルのインデックスへの紐付けに失敗しました", "path", d.Path, "fileID", fileID, "error", err)
		res.Error = attachFailure(d.Path, fileID, err)
		metrics.RecordUpload("error", 0)
		return res
	}

	res.ArtifactID = fileID
	if u.tokens != nil {
		res.Tokens = u.tokens.CountTokens(string(content))
	}
	metrics.RecordUpload("attached", len(content))
	return res
}

// uploadWithRetry は一時的な失敗に限り指数バックオフでリトライする
func (u *Uploader) uploadWithRetry(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	var fileID string

	op := func() error {
		if err := u.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		id, err := u.store.UploadFile(ctx, content, filename, contentType)
		if err != nil {
			if !u.isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		fileID = id
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.RecordUploadRetry()
		u.logger.Debug("アップロードをリトライします", "filename", filename, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, u.retry.backOff(ctx), notify); err != nil {
		return "", err
	}
	return fileID, nil
}

// defaultTransient はキャンセル以外の失敗を一時的なものとみなす
func defaultTransient(err error) bool {
	return !errors.Is(err, context.Canceled)
}

type noopLimiter struct{}

func (noopLimiter) Wait(ctx context.Context) error { return ctx.Err() }
