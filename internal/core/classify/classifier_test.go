package classify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier(opts ...Option) *Classifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func TestClassifyFile_ComponentVersusSubstring(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		path string
		skip bool
	}{
		{"vendor component", "pkg/vendor/x.py", true},
		{"leading vendor component", "vendor/x.py", true},
		{"node_modules component", "web/node_modules/lib/index.js", true},
		{"venv component", "service/.venv/lib/site.py", true},
		{"env component", "env/bin_helper.py", true},
		{"substring in file name", "myenvironment.py", false},
		{"env suffix in file name", "benv.py", false},
		{"vendor as file stem", "src/vendor.py", false},
		{"venv in dir name only as substring", "src/venvtools/run.py", false},
		{"plain source file", "src/main.py", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.skip, c.ShouldSkipFile(tt.path, 100), tt.path)
		})
	}
}

func TestClassifyFile_Oversized(t *testing.T) {
	c := newTestClassifier()

	for _, p := range []string{"readme.md", "src/main.py", "image.png", "noext"} {
		d := c.ClassifyFile(p, DefaultMaxFileSize+1)
		assert.True(t, d.Skip, p)
		assert.Equal(t, ReasonOversized, d.Reason, p)
	}

	// 上限ちょうどは取り込み対象
	assert.False(t, c.ShouldSkipFile("src/main.py", DefaultMaxFileSize))
}

func TestClassifyFile_Reasons(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		path     string
		reason   Reason
		category Category
	}{
		{"src/main.py", ReasonOK, ""},
		{"README.MD", ReasonOK, ""},
		{"package.json", ReasonExcludedPattern, CategoryConfig},
		{"web/yarn.lock", ReasonExcludedPattern, CategoryLockfile},
		{"LICENSE", ReasonExcludedPattern, CategoryProjectDoc},
		{"docs2/CHANGELOG.md", ReasonExcludedPattern, CategoryProjectDoc},
		{"assets/app.min.js", ReasonExcludedPattern, CategoryMinified},
		{"logo.SVG", ReasonExcludedPattern, CategoryMedia},
		{"config.yaml", ReasonExcludedPattern, CategoryData},
		{".DS_Store", ReasonExcludedPattern, CategoryOSMetadata},
		{"server.log", ReasonExcludedPattern, CategoryLog},
		{"lib/module.pyc", ReasonDependencyMarker, CategoryBinary},
		{"native/lib.so", ReasonDependencyMarker, CategoryBinary},
		{"main.rs", ReasonDisallowedExtension, ""},
		{"Makefile", ReasonDisallowedExtension, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d := c.ClassifyFile(tt.path, 10)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.category, d.Category)
			assert.Equal(t, tt.reason != ReasonOK, d.Skip)
		})
	}
}

func TestClassifyDirectory(t *testing.T) {
	c := newTestClassifier()

	skipped := []string{"node_modules", "web/dist", "Build", "target", "bin", "public", "static",
		"test", "tests", "doc", "docs", "example", "examples", "myenv", "src/__pycache__", "vendor", ".venv"}
	for _, p := range skipped {
		d := c.ClassifyDirectory(p)
		assert.True(t, d.Skip, p)
		assert.Equal(t, ReasonExcludedDirectory, d.Reason, p)
	}

	for _, p := range []string{"src", "internal/core", "app/models"} {
		assert.False(t, c.ShouldSkipDirectory(p), p)
	}
}

func TestExtraIgnore(t *testing.T) {
	c := newTestClassifier(WithExtraIgnore("*.generated.go", "fixtures/"))

	d := c.ClassifyFile("api/types.generated.go", 10)
	assert.True(t, d.Skip)
	assert.Equal(t, ReasonExcludedPattern, d.Reason)

	assert.False(t, c.ShouldSkipFile("api/types.go", 10))

	dir := c.ClassifyDirectory("src/fixtures")
	assert.True(t, dir.Skip)
	assert.Equal(t, ReasonExcludedPattern, dir.Reason)
}

func TestWithMaxFileSize(t *testing.T) {
	c := newTestClassifier(WithMaxFileSize(10))
	assert.Equal(t, int64(10), c.MaxFileSize())
	assert.True(t, c.ShouldSkipFile("src/main.py", 11))

	// 0以下は無視してデフォルトを維持
	assert.Equal(t, DefaultMaxFileSize, newTestClassifier(WithMaxFileSize(0)).MaxFileSize())
}
