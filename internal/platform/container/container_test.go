package container

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-outliner/internal/core/binding"
	"github.com/jinford/repo-outliner/internal/core/outline"
	"github.com/jinford/repo-outliner/internal/core/repoid"
	"github.com/jinford/repo-outliner/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{
		GitHub: config.GitHubConfig{APIBase: "http://127.0.0.1:0"},
		OpenAI: config.OpenAIConfig{Model: "gpt-4o", IndexTTL: 1, APITimeout: time.Second},
		Ingest: config.IngestConfig{
			MaxFileSize:       1_000_000,
			MaxDepth:          8,
			WalkConcurrency:   2,
			UploadConcurrency: 2,
			Provider:          config.SourceProviderGitHub,
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewContainer_WithoutCredentials(t *testing.T) {
	c, err := NewContainer(context.Background(), discard(), testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Ingest)
	assert.NotNil(t, c.Bindings)
	assert.NotNil(t, c.Outlines)
	assert.NotNil(t, c.HTTPServer())

	// バックエンドは設定エラーを返す
	_, err = c.Bindings.Resolve(context.Background(), repoid.Repository{Owner: "octocat", Name: "hello"})
	assert.ErrorIs(t, err, config.ErrConfiguration)

	var events []string
	for e := range c.Outlines.GenerateOutline(context.Background(), repoid.Repository{Owner: "octocat", Name: "hello"}) {
		require.True(t, e.IsError())
		events = append(events, e.Error)
	}
	assert.Len(t, events, 1)
}

func TestNewContainer_GitProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.Provider = config.SourceProviderGit

	c, err := NewContainer(context.Background(), discard(), cfg)
	require.NoError(t, err)
	c.Close()
	c.Close()
}

func TestNewContainer_InvalidDatabaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.Database.URL = "postgres://invalid host:bad/db"

	_, err := NewContainer(context.Background(), discard(), cfg)
	assert.Error(t, err)
}

// countingBackend はアシスタントが存在しない状態を返し、作成系の呼び出し回数を数える
type countingBackend struct {
	mu         sync.Mutex
	indexes    int
	assistants int
	threads    int
}

func (b *countingBackend) UploadFile(context.Context, []byte, string, string) (string, error) {
	return "file_1", nil
}

func (b *countingBackend) AttachFile(context.Context, string, string) error { return nil }

func (b *countingBackend) CreateIndex(context.Context, string, int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexes++
	return "vs_1", nil
}

func (b *countingBackend) ListAssistants(context.Context) ([]binding.Assistant, error) {
	return nil, nil
}

func (b *countingBackend) CreateAssistant(context.Context, binding.AssistantSpec) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assistants++
	return "asst_1", nil
}

func (b *countingBackend) CreateThread(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threads++
	return "thread_1", nil
}

func (b *countingBackend) PostMessage(context.Context, string, string) error { return nil }

func (b *countingBackend) StreamRun(context.Context, string, string, string, outline.RunHandler) error {
	return nil
}

func TestContainer_OutlineWithoutSourceKeyDoesNotBuild(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.GitHub.Owner = "octocat"
	backend := &countingBackend{}

	c, err := NewContainer(context.Background(), discard(), cfg, WithContainerBackend(backend))
	require.NoError(t, err)
	defer c.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/generate_outline", strings.NewReader(`{"repo":{"name":"hello"}}`))
	rec := httptest.NewRecorder()
	c.HTTPServer().Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.Contains(t, rec.Body.String(), "GITHUB_API_KEY")
	assert.Equal(t, 0, backend.indexes)
	assert.Equal(t, 0, backend.assistants)
	assert.Equal(t, 0, backend.threads)

	_, err = c.Bindings.Resolve(context.Background(), repoid.Repository{Owner: "octocat", Name: "hello"})
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, 0, backend.indexes)
}
