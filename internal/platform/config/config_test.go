package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SOURCE_PROVIDER", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(1_000_000), cfg.Ingest.MaxFileSize)
	assert.Equal(t, 8, cfg.Ingest.MaxDepth)
	assert.Equal(t, 10, cfg.Ingest.WalkConcurrency)
	assert.Equal(t, 20, cfg.Ingest.UploadConcurrency)
	assert.Equal(t, SourceProviderGitHub, cfg.Ingest.Provider)
	assert.Equal(t, 1, cfg.OpenAI.IndexTTL)
	assert.Equal(t, 27*time.Second, cfg.OpenAI.APITimeout)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBase)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "GITHUB_OWNER=octocat\nINGEST_EXTRA_IGNORE=*.snap, generated/ ,\nINGEST_MAX_DEPTH=3\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	// godotenv は既存の環境変数を上書きしないため、事前に空にしておく
	t.Setenv("GITHUB_OWNER", "")
	os.Unsetenv("GITHUB_OWNER")
	t.Setenv("INGEST_EXTRA_IGNORE", "")
	os.Unsetenv("INGEST_EXTRA_IGNORE")
	t.Setenv("INGEST_MAX_DEPTH", "")
	os.Unsetenv("INGEST_MAX_DEPTH")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "octocat", cfg.GitHub.Owner)
	assert.Equal(t, []string{"*.snap", "generated/"}, cfg.Ingest.ExtraIgnore)
	assert.Equal(t, 3, cfg.Ingest.MaxDepth)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("SOURCE_PROVIDER", "svn")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Ingest: IngestConfig{Provider: SourceProviderGitHub}}

	assert.ErrorIs(t, cfg.ValidateSource(), ErrConfiguration)
	assert.ErrorIs(t, cfg.ValidateOpenAI(), ErrConfiguration)
	assert.ErrorIs(t, cfg.ValidateOwner(), ErrConfiguration)

	cfg.GitHub.APIKey = "ghp_x"
	cfg.OpenAI.APIKey = "sk-x"
	cfg.GitHub.Owner = "octocat"
	assert.NoError(t, cfg.ValidateSource())
	assert.NoError(t, cfg.ValidateOpenAI())
	assert.NoError(t, cfg.ValidateOwner())
}

func TestConfig_ValidateSource_GitProviderWithoutToken(t *testing.T) {
	cfg := &Config{Ingest: IngestConfig{Provider: SourceProviderGit}}
	assert.NoError(t, cfg.ValidateSource())
}

func TestConfig_Keys(t *testing.T) {
	cfg := &Config{
		GitHub: GitHubConfig{APIKey: "ghp_x"},
	}

	keys := cfg.Keys()
	assert.True(t, keys.GitHubAPIKey)
	assert.False(t, keys.OpenAIAPIKey)
	assert.False(t, keys.GitHubOwner)
}
