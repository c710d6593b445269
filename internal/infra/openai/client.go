// Package openai は OpenAI のベクトルストア・ファイル・アシスタント API を使ったアダプタを提供する
package openai

import (
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 27 * time.Second

	// DefaultListPageSize はアシスタント一覧の1ページあたりの件数
	DefaultListPageSize = 100
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Client は OpenAI API クライアント
// インデックス（ベクトルストア）、アシスタント、スレッド実行の各操作を提供する
type Client struct {
	client  openai.Client
	timeout time.Duration
	logger  *slog.Logger
}

type clientOptions struct {
	timeout    time.Duration
	baseURL    string
	maxRetries int
	logger     *slog.Logger
}

// Option は Client のオプション
type Option func(*clientOptions)

// WithTimeout はAPIコールのタイムアウトを設定する
// ストリーミング実行には適用しない
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBaseURL は API のベースURLを設定する（互換サーバやテスト用）
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxRetries は SDK 内部のリトライ回数を設定する
// アップロードのリトライは取り込み側で行うため、既定は0
func WithMaxRetries(n int) Option {
	return func(o *clientOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewClient はAPIキーを指定して Client を作成する
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := clientOptions{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(o.baseURL))
	}

	return &Client{
		client:  openai.NewClient(requestOpts...),
		timeout: o.timeout,
		logger:  o.logger,
	}, nil
}
