// Package httpapi はフロントエンド向けの HTTP API を提供する
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/ingestion"
	"github.com/jinford/repo-outliner/internal/core/outline"
	"github.com/jinford/repo-outliner/internal/core/repoid"
	"github.com/jinford/repo-outliner/internal/infra/github"
	"github.com/jinford/repo-outliner/internal/platform/config"
	"github.com/jinford/repo-outliner/internal/platform/metrics"
)

const (
	// maxRequestBody はリクエストボディの上限
	maxRequestBody = 1 << 20

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// テスト時のモック用に消費者側でインターフェースを定義

// Binder はインデックスの構築とファイル一覧を提供する
type Binder interface {
	Resolve(ctx context.Context, repo repoid.Repository) (*binding.BuildResult, error)
	ListFiles(ctx context.Context, repo repoid.Repository) []ingestion.FileDescriptor
}

// Outliner はアウトラインとトピック展開のストリームを提供する
type Outliner interface {
	GenerateOutline(ctx context.Context, repo repoid.Repository) iter.Seq[outline.StreamEvent]
	ExpandTopic(ctx context.Context, repo repoid.Repository, topic string) iter.Seq[outline.StreamEvent]
}

// RepositoryLister はオーナーのリポジトリ一覧を提供する
type RepositoryLister interface {
	ListRepositories(ctx context.Context, owner string) ([]github.Repository, error)
}

// Server は HTTP API サーバ
type Server struct {
	cfg      *config.Config
	binder   Binder
	outliner Outliner
	repos    RepositoryLister
	logger   *slog.Logger
}

// NewServer は新しい Server を作成する
// repos が nil の場合、/api/repos は 403 を返す
func NewServer(cfg *config.Config, binder Binder, outliner Outliner, repos RepositoryLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		binder:   binder,
		outliner: outliner,
		repos:    repos,
		logger:   logger,
	}
}

// Handler はミドルウェアを適用した HTTP ハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/keys", s.handleKeys)
	mux.HandleFunc("GET /api/repos", s.handleRepos)
	mux.HandleFunc("POST /api/files", s.handleFiles)
	mux.HandleFunc("POST /api/upload_to_vs", s.handleUpload)
	mux.HandleFunc("POST /api/generate_outline", s.handleGenerateOutline)
	mux.HandleFunc("POST /api/dynamic_expand_topic", s.handleExpandTopic)

	// メトリクスはルーティングパターンを参照するため ServeMux の直前に置く
	var h http.Handler = metrics.Middleware(mux)
	h = s.logRequests(h)
	h = cors(h)
	h = requestID(h)
	return h
}

// Run は addr で待ち受け、ctx がキャンセルされたらグレースフルに停止する
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバを起動します", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
