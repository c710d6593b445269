package ingestion

import (
	"context"
	"log/slog"

	"github.com/jinford/repo-outliner/internal/core/classify"
	"github.com/jinford/repo-outliner/internal/core/repoid"
	"github.com/jinford/repo-outliner/internal/platform/metrics"
	"github.com/jinford/repo-outliner/internal/platform/workpool"
)

const (
	// DefaultWalkConcurrency はディレクトリ一覧取得の既定の同時実行数
	DefaultWalkConcurrency = 10
	// DefaultMaxDepth は再帰の既定の最大深さ（ルートは深さ0）
	DefaultMaxDepth = 8
)

// Walker はリモートツリーを再帰的に走査し、取り込み対象のファイル一覧を返す
type Walker struct {
	source     TreeSource
	classifier *classify.Classifier
	pool       *workpool.Pool
	fanout     int
	maxDepth   int
	logger     *slog.Logger
}

// WalkerOption は Walker のオプション
type WalkerOption func(*Walker)

// WithWalkConcurrency はディレクトリ一覧取得の同時実行数を設定する
func WithWalkConcurrency(n int) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.fanout = n
		}
	}
}

// WithMaxDepth は再帰の最大深さを設定する
func WithMaxDepth(depth int) WalkerOption {
	return func(w *Walker) {
		if depth > 0 {
			w.maxDepth = depth
		}
	}
}

// WithWalkPool は一覧取得に使う Pool を設定する（既定は fanout と同じサイズ）
func WithWalkPool(pool *workpool.Pool) WalkerOption {
	return func(w *Walker) {
		w.pool = pool
	}
}

// WithWalkerLogger はロガーを設定する
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalker は新しい Walker を作成する
func NewWalker(source TreeSource, classifier *classify.Classifier, opts ...WalkerOption) *Walker {
	w := &Walker{
		source:     source,
		classifier: classifier,
		fanout:     DefaultWalkConcurrency,
		maxDepth:   DefaultMaxDepth,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pool == nil {
		w.pool = workpool.New(w.fanout)
	}
	return w
}

// Walk は root 配下の取り込み対象ファイルを返す
// 個々のディレクトリの失敗はログに残して続行するため、エラーは返さない
func (w *Walker) Walk(ctx context.Context, repo repoid.Repository, root string) []FileDescriptor {
	files, _ := w.walkRoot(ctx, repo, root)
	return files
}

// walkRoot は Walk と同じ走査を行い、root 自体の最初のページを取得できなかった場合はそのエラーを返す
func (w *Walker) walkRoot(ctx context.Context, repo repoid.Repository, root string) ([]FileDescriptor, error) {
	files, err := w.walk(ctx, repo, root, 0)

	w.logger.Info("ツリー走査完了",
		"repository", repo.FullName(),
		"root", root,
		"files", len(files),
	)
	return files, err
}

// walk は dirPath 配下を走査する
// 返すエラーは dirPath の最初のページの取得失敗のみで、それ以外の失敗はログに残して続行する
func (w *Walker) walk(ctx context.Context, repo repoid.Repository, dirPath string, depth int) ([]FileDescriptor, error) {
	if depth > w.maxDepth {
		w.logger.Warn("最大深さを超えたため走査を打ち切ります",
			"repository", repo.FullName(),
			"path", dirPath,
			"maxDepth", w.maxDepth,
		)
		return nil, nil
	}

	var files []FileDescriptor
	var dirs []string
	var firstErr error

	// 同じ階層のページを全て読み切ってから下位へ進む
	page := ""
	for {
		var listing *Listing
		err := w.pool.Do(ctx, func(ctx context.Context) error {
			var err error
			listing, err = w.source.ListDirectory(ctx, repo, dirPath, page)
			return err
		})
		metrics.RecordDirectoryListing(err == nil)
		if err != nil {
			w.logger.Warn("ディレクトリ一覧の取得に失敗しました",
				"repository", repo.FullName(),
				"path", dirPath,
				"error", err,
			)
			if page == "" {
				firstErr = err
			}
			break
		}

		for _, entry := range listing.Entries {
			switch entry.Type {
			case EntryDir:
				d := w.classifier.ClassifyDirectory(entry.Path)
				metrics.RecordClassification(string(EntryDir), string(d.Reason))
				if d.Skip {
					w.logger.Debug("ディレクトリをスキップします", "path", entry.Path, "reason", d.Reason, "category", d.Category)
					continue
				}
				dirs = append(dirs, entry.Path)
			case EntryFile:
				d := w.classifier.ClassifyFile(entry.Path, entry.Size)
				metrics.RecordClassification(string(EntryFile), string(d.Reason))
				if d.Skip {
					w.logger.Debug("ファイルをスキップします", "path", entry.Path, "size", entry.Size, "reason", d.Reason)
					continue
				}
				files = append(files, entry)
			default:
				w.logger.Debug("未対応のエントリ種別を無視します", "path", entry.Path, "type", entry.Type)
			}
		}

		if listing.NextPage == "" {
			break
		}
		page = listing.NextPage
	}

	children := workpool.Map(ctx, w.fanout, dirs, func(ctx context.Context, child string) []FileDescriptor {
		sub, _ := w.walk(ctx, repo, child, depth+1)
		return sub
	})
	for _, c := range children {
		files = append(files, c...)
	}

	return files, firstErr
}
