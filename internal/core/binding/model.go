package binding

import (
	"context"
	"time"

	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/repoid"
)

// Binding はリポジトリ名とインデックス・アシスタントの対応
type Binding struct {
	IndexID        string `json:"index_id"`
	AssistantID    string `json:"assistant_id"`
	RepositoryName string `json:"repository_name"`
}

// BuildResult は Resolve の結果
// Reused が true の場合は既存のバインディングを返しただけで、アップロード関連のフィールドは空
type BuildResult struct {
	Binding
	BuildID     string                     `json:"build_id,omitempty"`
	Reused      bool                       `json:"reused"`
	UploadedIDs []string                   `json:"attached_file_ids"`
	Errors      []string                   `json:"errors"`
	Skipped     int                        `json:"skipped"`
	Files       []ingestion.FileDescriptor `json:"-"`
	Message     string                     `json:"message"`
	Duration    time.Duration              `json:"-"`
}

// Assistant はアシスタントレジストリ上のエントリ
type Assistant struct {
	ID        string
	Name      string
	CreatedAt time.Time
	IndexIDs  []string
}

// AssistantSpec はアシスタント作成時の指定
type AssistantSpec struct {
	Name         string
	Instructions string
	Model        string
	IndexID      string
}

// テスト時のモック用に消費者側でインターフェースを定義

// AssistantRegistry はアシスタントの一覧取得と作成を行う
// ListAssistants は全ページを取得して返すこと
type AssistantRegistry interface {
	ListAssistants(ctx context.Context) ([]Assistant, error)
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
}

// IndexProvisioner はリモートインデックスを作成する
// expiryDays は最終利用から失効するまでの日数
type IndexProvisioner interface {
	CreateIndex(ctx context.Context, name string, expiryDays int) (string, error)
}

// Ingester はリポジトリを走査してインデックスへ取り込む
type Ingester interface {
	ListFiles(ctx context.Context, repo repoid.Repository) []ingestion.FileDescriptor
	Ingest(ctx context.Context, repo repoid.Repository, indexID string) *ingestion.IngestResult
}
