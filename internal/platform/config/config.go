package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration は必須設定が不足している場合のエラー
// ネットワーク呼び出しの前に検出し、即座に呼び出し元へ返す
var ErrConfiguration = errors.New("configuration error")

// SourceProvider はリポジトリツリーの取得元
type SourceProvider string

const (
	// SourceProviderGitHub は GitHub Contents API を使用する
	SourceProviderGitHub SourceProvider = "github"
	// SourceProviderGit は go-git でメモリ上にクローンして走査する
	SourceProviderGit SourceProvider = "git"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	GitHub   GitHubConfig
	OpenAI   OpenAIConfig
	Ingest   IngestConfig
	Git      GitConfig
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
}

// GitHubConfig は GitHub API 設定
type GitHubConfig struct {
	APIKey  string
	Owner   string // リポジトリ名だけが指定された場合に補完するオーナー
	APIBase string
}

// OpenAIConfig は OpenAI API 設定（インデックス・アシスタント用）
type OpenAIConfig struct {
	APIKey     string
	Model      string
	UploadRPM  int // ファイルアップロードの1分あたり上限（0は無制限）
	IndexTTL   int // インデックスの有効期限（最終利用からの日数）
	APITimeout time.Duration
}

// IngestConfig はツリー走査とアップロードの設定
type IngestConfig struct {
	MaxFileSize       int64
	MaxDepth          int
	WalkConcurrency   int
	UploadConcurrency int
	ExtraIgnore       []string // gitignore 形式の追加除外パターン
	Provider          SourceProvider
}

// GitConfig は go-git プロバイダ用の設定
type GitConfig struct {
	BaseURL     string
	SSHKeyPath  string
	SSHPassword string // SSH秘密鍵のパスフレーズ
}

// ServerConfig は HTTP サーバ設定
type ServerConfig struct {
	Port int
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig はビルドロック用のデータベース設定（任意）
type DatabaseConfig struct {
	URL string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			APIKey:  getEnv("GITHUB_API_KEY", ""),
			Owner:   getEnv("GITHUB_OWNER", ""),
			APIBase: getEnv("GITHUB_API_BASE", "https://api.github.com"),
		},
		OpenAI: OpenAIConfig{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Model:      getEnv("OPENAI_MODEL", "gpt-4o"),
			UploadRPM:  getEnvAsInt("OPENAI_UPLOAD_RPM", 0),
			IndexTTL:   getEnvAsInt("OPENAI_INDEX_TTL_DAYS", 1),
			APITimeout: getEnvAsDuration("OPENAI_API_TIMEOUT", 27*time.Second),
		},
		Ingest: IngestConfig{
			MaxFileSize:       int64(getEnvAsInt("INGEST_MAX_FILE_SIZE", 1_000_000)),
			MaxDepth:          getEnvAsInt("INGEST_MAX_DEPTH", 8),
			WalkConcurrency:   getEnvAsInt("INGEST_WALK_CONCURRENCY", 10),
			UploadConcurrency: getEnvAsInt("INGEST_UPLOAD_CONCURRENCY", 20),
			ExtraIgnore:       getEnvAsList("INGEST_EXTRA_IGNORE"),
			Provider:          SourceProvider(getEnv("SOURCE_PROVIDER", string(SourceProviderGitHub))),
		},
		Git: GitConfig{
			BaseURL:     getEnv("GIT_BASE_URL", "https://github.com"),
			SSHKeyPath:  getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword: getEnv("GIT_SSH_PASSWORD", ""),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 5000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
	}

	if err := cfg.validateShape(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateShape は値の範囲・列挙値を検証します（資格情報の有無は見ない）
func (c *Config) validateShape() error {
	switch c.Ingest.Provider {
	case SourceProviderGitHub, SourceProviderGit:
	default:
		return fmt.Errorf("%w: SOURCE_PROVIDER が不正です: %q", ErrConfiguration, c.Ingest.Provider)
	}
	if c.Ingest.MaxFileSize <= 0 {
		return fmt.Errorf("%w: INGEST_MAX_FILE_SIZE は正の値が必要です", ErrConfiguration)
	}
	if c.Ingest.MaxDepth <= 0 {
		return fmt.Errorf("%w: INGEST_MAX_DEPTH は正の値が必要です", ErrConfiguration)
	}
	if c.Ingest.WalkConcurrency <= 0 || c.Ingest.UploadConcurrency <= 0 {
		return fmt.Errorf("%w: 並列数は正の値が必要です", ErrConfiguration)
	}
	if c.OpenAI.IndexTTL <= 0 {
		return fmt.Errorf("%w: OPENAI_INDEX_TTL_DAYS は正の値が必要です", ErrConfiguration)
	}
	return nil
}

// ValidateSource はツリー取得に必要な資格情報を検証します
func (c *Config) ValidateSource() error {
	if c.Ingest.Provider == SourceProviderGitHub && c.GitHub.APIKey == "" {
		return fmt.Errorf("%w: GITHUB_API_KEY が設定されていません", ErrConfiguration)
	}
	return nil
}

// ValidateOwner はリポジトリ一覧取得に必要なオーナー設定を検証します
func (c *Config) ValidateOwner() error {
	if c.GitHub.Owner == "" {
		return fmt.Errorf("%w: GITHUB_OWNER が設定されていません", ErrConfiguration)
	}
	return nil
}

// ValidateOpenAI はインデックス・アシスタント操作に必要な資格情報を検証します
func (c *Config) ValidateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY が設定されていません", ErrConfiguration)
	}
	return nil
}

// KeyStatus は資格情報の有無をまとめたもの
type KeyStatus struct {
	GitHubAPIKey bool `json:"github_api_key"`
	OpenAIAPIKey bool `json:"openai_api_key"`
	GitHubOwner  bool `json:"github_owner"`
}

// Keys は資格情報の設定状況を返します（値そのものは返さない）
func (c *Config) Keys() KeyStatus {
	return KeyStatus{
		GitHubAPIKey: c.GitHub.APIKey != "",
		OpenAIAPIKey: c.OpenAI.APIKey != "",
		GitHubOwner:  c.GitHub.Owner != "",
	}
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
