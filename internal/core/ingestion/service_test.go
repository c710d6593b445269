package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-outliner/internal/core/repoid"
)

func TestIngestService_WalksThenUploads(t *testing.T) {
	tree := newStubTree().
		add("", []FileDescriptor{dir("src"), dir("node_modules"), file("readme.md", 4_000_000), file("README.md", 100)}).
		add("src", []FileDescriptor{file("src/main.py", 120), file("src/util.py", 80)})
	downloader := &stubDownloader{errs: map[string]error{"src/util.py": errors.New("unexpected status 403")}}
	store := newStubStore()

	svc := NewIngestService(
		newTestWalker(tree),
		newTestUploader(downloader, store),
		WithIngestLogger(discardLogger()),
	)

	result := svc.Ingest(context.Background(), testRepo, "vs_42")

	assert.Equal(t, []string{"README.md", "src/main.py", "src/util.py"}, paths(result.Files))
	require.Len(t, result.Report.Errors, 1)
	assert.Contains(t, result.Report.Errors[0], "src/util.py")
	assert.Len(t, result.Report.AttachedIDs, 2)
	assert.ElementsMatch(t, result.Report.AttachedIDs, store.attached["vs_42"])
}

func TestIngestService_ListFiles(t *testing.T) {
	tree := newStubTree().add("", []FileDescriptor{file("main.py", 1), file("package.json", 1)})

	svc := NewIngestService(newTestWalker(tree), newTestUploader(&stubDownloader{}, newStubStore()))

	assert.Equal(t, []string{"main.py"}, paths(svc.ListFiles(context.Background(), testRepo)))
}

func TestIngestService_RootFailureSkipsUpload(t *testing.T) {
	tree := newStubTree().add("", []FileDescriptor{file("main.py", 1)})
	tree.failAt[""] = 0
	store := newStubStore()

	svc := NewIngestService(newTestWalker(tree), newTestUploader(&stubDownloader{}, store), WithIngestLogger(discardLogger()))

	result := svc.Ingest(context.Background(), testRepo, "vs_42")

	require.Error(t, result.RootErr)
	assert.Empty(t, result.Files)
	assert.Empty(t, result.Report.AttachedIDs)
	assert.Empty(t, store.uploads)
}

func TestIngestService_SubdirectoryFailureIsNotRootFailure(t *testing.T) {
	tree := newStubTree().
		add("", []FileDescriptor{file("main.py", 1), dir("src")}).
		add("src", []FileDescriptor{file("src/a.py", 1)})
	tree.failAt["src"] = 0

	svc := NewIngestService(newTestWalker(tree), newTestUploader(&stubDownloader{}, newStubStore()), WithIngestLogger(discardLogger()))

	result := svc.Ingest(context.Background(), testRepo, "vs_42")

	assert.NoError(t, result.RootErr)
	assert.Equal(t, []string{"main.py"}, paths(result.Files))
}

// leasingTree はリースの取得と解放を記録する stubTree
type leasingTree struct {
	*stubTree
	acquired int
	released int
	active   int // ListDirectory 呼び出し時点で保持中のリース数
}

func (l *leasingTree) Acquire(repo repoid.Repository) func() {
	l.acquired++
	return func() { l.released++ }
}

func (l *leasingTree) ListDirectory(ctx context.Context, repo repoid.Repository, dirPath, page string) (*Listing, error) {
	l.active = l.acquired - l.released
	return l.stubTree.ListDirectory(ctx, repo, dirPath, page)
}

func TestIngestService_HoldsTreeLeaseDuringIngest(t *testing.T) {
	tree := &leasingTree{stubTree: newStubTree().add("", []FileDescriptor{file("main.py", 1)})}
	svc := NewIngestService(newTestWalker(tree.stubTree), newTestUploader(&stubDownloader{}, newStubStore()), WithIngestLogger(discardLogger()))
	svc.walker.source = tree

	result := svc.Ingest(context.Background(), testRepo, "vs_42")
	require.NoError(t, result.RootErr)
	assert.Equal(t, 1, tree.active)

	svc.ListFiles(context.Background(), testRepo)
	assert.Equal(t, 2, tree.acquired)
	assert.Equal(t, 2, tree.released)
}
