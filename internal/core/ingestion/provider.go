package ingestion

import (
	"context"

	"github.com/jinford/repo-outliner/internal/core/repoid"
)

// テスト時のモック用に消費者側でインターフェースを定義

// TreeSource はリポジトリツリーのディレクトリ一覧を提供する
// dirPath が空文字列の場合はルートを表す。page は前ページの Listing.NextPage
type TreeSource interface {
	ListDirectory(ctx context.Context, repo repoid.Repository, dirPath, page string) (*Listing, error)
}

// TreeLeaser は走査から内容取得までの間だけツリーの状態を保持する TreeSource
// Acquire が返す関数で解放する。全て解放された後の走査は最新の状態を取り直す
type TreeLeaser interface {
	Acquire(repo repoid.Repository) (release func())
}

// Downloader はファイル内容を取得する
// 200以外の応答はエラーとして返すこと
type Downloader interface {
	Download(ctx context.Context, d FileDescriptor) ([]byte, error)
}

// IndexStore はリモートインデックスへのアップロードと紐付けを行う
type IndexStore interface {
	UploadFile(ctx context.Context, content []byte, filename, contentType string) (string, error)
	AttachFile(ctx context.Context, indexID, fileID string) error
}

// ContentTypeDetector はファイルのMIMEタイプを推定する
// 推定できない場合は空文字列を返す
type ContentTypeDetector interface {
	DetectContentType(path string, content []byte) string
}

// TokenCounter はテキストのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// RateLimiter はアップロード呼び出しを間引く
type RateLimiter interface {
	Wait(ctx context.Context) error
}
