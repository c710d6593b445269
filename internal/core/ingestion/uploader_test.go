package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("invalid file")

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newTestUploader(downloader Downloader, store IndexStore, opts ...UploaderOption) *Uploader {
	base := []UploaderOption{
		WithUploaderLogger(discardLogger()),
		WithRetryConfig(fastRetry()),
		WithTransientClassifier(func(err error) bool { return !errors.Is(err, errPermanent) }),
	}
	return NewUploader(NewContentFetcher(downloader, discardLogger()), store, append(base, opts...)...)
}

func TestUploader_PartialFailure(t *testing.T) {
	downloader := &stubDownloader{
		errs: map[string]error{"src/b.py": errors.New("unexpected status 500")},
	}
	store := newStubStore()
	files := []FileDescriptor{file("src/a.py", 10), file("src/b.py", 10), file("src/c.py", 10), file("src/d.py", 10)}

	report := newTestUploader(downloader, store).UploadAll(context.Background(), "vs_1", files)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "src/b.py")
	assert.Len(t, report.AttachedIDs, 3)
	assert.Equal(t, 4, report.Processed)
	assert.Len(t, store.attached["vs_1"], 3)
	assert.Equal(t, messageFinished, report.Message())
}

func TestUploader_SkipsAreNotErrors(t *testing.T) {
	downloader := &stubDownloader{
		content: map[string][]byte{
			"empty.py": {},
			"bin.txt":  {0xc3, 0x28},
		},
	}
	files := []FileDescriptor{file("empty.py", 0), file("bin.txt", 2), {Path: "nourl.py", Type: EntryFile}}

	report := newTestUploader(downloader, newStubStore()).UploadAll(context.Background(), "vs_1", files)

	assert.Empty(t, report.Errors)
	assert.Empty(t, report.AttachedIDs)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 1, report.SkipCounts[SkipEmpty])
	assert.Equal(t, 1, report.SkipCounts[SkipNonUTF8])
	assert.Equal(t, 1, report.SkipCounts[SkipNoDownloadURL])
	assert.Equal(t, messageNothingUploaded, report.Message())
}

func TestUploader_RetriesTransientFailures(t *testing.T) {
	store := newStubStore()
	store.uploadErrs = []error{errors.New("503 service unavailable"), errors.New("429 too many requests")}

	report := newTestUploader(&stubDownloader{}, store).UploadAll(context.Background(), "vs_1", []FileDescriptor{file("main.py", 10)})

	assert.Empty(t, report.Errors)
	assert.Len(t, report.AttachedIDs, 1)
	assert.Len(t, store.uploads, 3)
}

func TestUploader_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newStubStore()
	store.uploadErrs = []error{errors.New("502"), errors.New("502"), errors.New("502"), nil}

	report := newTestUploader(&stubDownloader{}, store).UploadAll(context.Background(), "vs_1", []FileDescriptor{file("main.py", 10)})

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Unexpected error with main.py")
	assert.Empty(t, report.AttachedIDs)
	assert.Len(t, store.uploads, 3)
}

func TestUploader_DoesNotRetryPermanentFailures(t *testing.T) {
	store := newStubStore()
	store.uploadErrs = []error{fmt.Errorf("upload: %w", errPermanent)}

	report := newTestUploader(&stubDownloader{}, store).UploadAll(context.Background(), "vs_1", []FileDescriptor{file("main.py", 10)})

	require.Len(t, report.Errors, 1)
	assert.Len(t, store.uploads, 1)
}

func TestUploader_AttachFailureNamesArtifact(t *testing.T) {
	store := newStubStore()
	store.attachErr["file-broken.py"] = errors.New("vector store not found")
	files := []FileDescriptor{file("src/broken.py", 10), file("src/fine.py", 10)}

	report := newTestUploader(&stubDownloader{}, store).UploadAll(context.Background(), "vs_1", files)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Failed to attach file 'src/broken.py' (file_id=file-broken.py-")
	assert.Contains(t, report.Errors[0], "to Vector Store: vector store not found")
	assert.Len(t, report.AttachedIDs, 1)
}

func TestUploader_ContentTypes(t *testing.T) {
	store := newStubStore()
	files := []FileDescriptor{file("main.py", 1), file("index.ts", 1), file("app.rs", 1), file("notes", 1)}

	newTestUploader(&stubDownloader{}, store,
		WithContentTypeDetector(stubDetector{contentType: "text/rust"}),
	).UploadAll(context.Background(), "vs_1", files)

	assert.Equal(t, "text/x-python", store.contentTypes["main.py"])
	assert.Equal(t, "text/x-typescript", store.contentTypes["index.ts"])
	assert.Equal(t, "text/rust", store.contentTypes["app.rs"])
	assert.Equal(t, "text/rust", store.contentTypes["notes"])

	assert.Equal(t, defaultContentType, contentTypeFor("notes", nil, stubDetector{}))
}

func TestUploader_CountsTokensOfAttachedFiles(t *testing.T) {
	downloader := &stubDownloader{content: map[string][]byte{"a.py": []byte("12345")}}

	report := newTestUploader(downloader, newStubStore(), WithTokenCounter(stubTokenCounter{})).
		UploadAll(context.Background(), "vs_1", []FileDescriptor{file("a.py", 5)})

	assert.Equal(t, 5, report.TotalTokens)
}

func TestUploader_EmptyBatch(t *testing.T) {
	report := newTestUploader(&stubDownloader{}, newStubStore()).UploadAll(context.Background(), "vs_1", nil)

	assert.NotNil(t, report.AttachedIDs)
	assert.NotNil(t, report.Errors)
	assert.Equal(t, messageNothingUploaded, report.Message())
}

func TestDescribeFailure(t *testing.T) {
	timeoutErr := &net.OpError{Op: "read", Err: context.DeadlineExceeded}
	connErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}

	assert.Contains(t, describeFailure("a.py", context.DeadlineExceeded), "Timeout occurred for a.py")
	assert.Contains(t, describeFailure("a.py", fmt.Errorf("get: %w", timeoutErr)), "Timeout occurred for a.py")
	assert.Contains(t, describeFailure("a.py", connErr), "Connection failed for a.py")
	assert.Contains(t, describeFailure("a.py", errors.New("boom")), "Unexpected error with a.py: boom")
}
