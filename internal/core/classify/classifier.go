// Package classify はリポジトリツリーのエントリを取り込むかどうかを判定する
//
// 判定は純粋関数で、パスとサイズのみに依存する。
package classify

import (
	"log/slog"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultMaxFileSize は取り込むファイルサイズの上限（バイト）
const DefaultMaxFileSize int64 = 1_000_000

// Reason は判定理由
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonExcludedDirectory   Reason = "excluded-directory"
	ReasonExcludedPattern     Reason = "excluded-pattern"
	ReasonDisallowedExtension Reason = "disallowed-extension"
	ReasonOversized           Reason = "oversized"
	ReasonDependencyMarker    Reason = "dependency-marker"
)

// Decision は判定結果
type Decision struct {
	Skip     bool
	Reason   Reason
	Category Category // ルールに一致した場合のみ設定される
}

func keep() Decision {
	return Decision{Reason: ReasonOK}
}

func skip(reason Reason, category Category) Decision {
	return Decision{Skip: true, Reason: reason, Category: category}
}

// Classifier はパス判定を行う
type Classifier struct {
	maxFileSize int64
	extra       *gitignore.GitIgnore
	logger      *slog.Logger
}

// Option は Classifier のオプション
type Option func(*Classifier)

// WithMaxFileSize はファイルサイズの上限を設定する
func WithMaxFileSize(n int64) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// WithExtraIgnore は gitignore 形式の追加除外パターンを設定する
// 組み込みルールの後に評価される
func WithExtraIgnore(patterns ...string) Option {
	return func(c *Classifier) {
		if len(patterns) > 0 {
			c.extra = gitignore.CompileIgnoreLines(patterns...)
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New は新しい Classifier を作成する
func New(opts ...Option) *Classifier {
	c := &Classifier{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxFileSize はファイルサイズの上限を返す
func (c *Classifier) MaxFileSize() int64 {
	return c.maxFileSize
}

// ClassifyDirectory はディレクトリを走査するかどうかを判定する
func (c *Classifier) ClassifyDirectory(dirPath string) Decision {
	lower := strings.ToLower(dirPath)
	for _, r := range DirectoryRules {
		if r.Pattern.MatchString(lower) {
			return skip(ReasonExcludedDirectory, r.Category)
		}
	}

	if c.extra != nil && c.extra.MatchesPath(strings.TrimSuffix(dirPath, "/")+"/") {
		return skip(ReasonExcludedPattern, "")
	}

	return keep()
}

// ClassifyFile はファイルを取り込むかどうかを判定する
// 判定順: サイズ → 除外パターン → 依存物マーカー → 拡張子 → 追加パターン
func (c *Classifier) ClassifyFile(filePath string, size int64) Decision {
	if size > c.maxFileSize {
		return skip(ReasonOversized, "")
	}

	lower := strings.ToLower(filePath)
	for _, r := range FileRules {
		if r.Pattern.MatchString(lower) {
			return skip(ReasonExcludedPattern, r.Category)
		}
	}

	components := strings.Split(lower, "/")
	// 最後の要素はファイル名なので、ディレクトリ要素だけを見る
	for _, component := range components[:len(components)-1] {
		if category, ok := DependencyMarkers[component]; ok {
			return skip(ReasonDependencyMarker, category)
		}
	}

	ext := path.Ext(lower)
	if _, ok := BinaryExtensions[ext]; ok {
		return skip(ReasonDependencyMarker, CategoryBinary)
	}

	if _, ok := AllowedExtensions[ext]; !ok {
		return skip(ReasonDisallowedExtension, "")
	}

	if c.extra != nil && c.extra.MatchesPath(filePath) {
		return skip(ReasonExcludedPattern, "")
	}

	return keep()
}

// ShouldSkipDirectory はディレクトリを走査しない場合に true を返す
func (c *Classifier) ShouldSkipDirectory(dirPath string) bool {
	d := c.ClassifyDirectory(dirPath)
	if d.Skip {
		c.logger.Debug("ディレクトリをスキップします", "path", dirPath, "reason", d.Reason, "category", d.Category)
	}
	return d.Skip
}

// ShouldSkipFile はファイルを取り込まない場合に true を返す
func (c *Classifier) ShouldSkipFile(filePath string, size int64) bool {
	d := c.ClassifyFile(filePath, size)
	if d.Skip {
		c.logger.Debug("ファイルをスキップします", "path", filePath, "size", size, "reason", d.Reason, "category", d.Category)
	}
	return d.Skip
}
