package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// ContentFetcher はファイル内容を取得し、取り込み可能かを検証する
//
// 空ファイル・非UTF-8・ダウンロードURLなしはスキップ扱いで、エラーにはしない。
type ContentFetcher struct {
	downloader Downloader
	logger     *slog.Logger
}

// NewContentFetcher は新しい ContentFetcher を作成する
func NewContentFetcher(downloader Downloader, logger *slog.Logger) *ContentFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentFetcher{downloader: downloader, logger: logger}
}

// Fetch はファイル内容を返す
// スキップの場合は (nil, 理由, nil)、取得失敗の場合は (nil, SkipNone, err) を返す
func (f *ContentFetcher) Fetch(ctx context.Context, d FileDescriptor) ([]byte, SkipReason, error) {
	if d.DownloadURL == "" {
		f.logger.Debug("ダウンロードURLがないためスキップします", "path", d.Path)
		return nil, SkipNoDownloadURL, nil
	}

	content, err := f.downloader.Download(ctx, d)
	if err != nil {
		return nil, SkipNone, fmt.Errorf("download %s: %w", d.Path, err)
	}

	if len(content) == 0 {
		f.logger.Debug("空ファイルのためスキップします", "path", d.Path)
		return nil, SkipEmpty, nil
	}

	if !utf8.Valid(content) {
		f.logger.Debug("UTF-8ではないためスキップします", "path", d.Path)
		return nil, SkipNonUTF8, nil
	}

	return content, SkipNone, nil
}
