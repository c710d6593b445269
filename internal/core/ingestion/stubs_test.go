package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jinford/repo-outliner/internal/core/repoid"
)

var testRepo = repoid.Repository{Owner: "octocat", Name: "hello"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func file(p string, size int64) FileDescriptor {
	return FileDescriptor{Path: p, Type: EntryFile, Size: size, DownloadURL: "https://raw.example.com/" + p}
}

func dir(p string) FileDescriptor {
	return FileDescriptor{Path: p, Type: EntryDir}
}

// stubTree はディレクトリごとのページ列を返すツリー
type stubTree struct {
	mu      sync.Mutex
	pages   map[string][][]FileDescriptor
	failAt  map[string]int // ディレクトリ → 失敗させるページ番号
	listed  []string
	active  atomic.Int32
	peak    atomic.Int32
	hold    chan struct{} // 指定時は一覧取得ごとにここで待つ
	callCnt atomic.Int32
}

func newStubTree() *stubTree {
	return &stubTree{
		pages:  make(map[string][][]FileDescriptor),
		failAt: make(map[string]int),
	}
}

func (s *stubTree) add(dirPath string, pages ...[]FileDescriptor) *stubTree {
	s.pages[dirPath] = pages
	return s
}

func (s *stubTree) ListDirectory(ctx context.Context, repo repoid.Repository, dirPath, page string) (*Listing, error) {
	s.callCnt.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.hold != nil {
		<-s.hold
	}

	s.mu.Lock()
	s.listed = append(s.listed, dirPath)
	s.mu.Unlock()

	idx := 0
	if page != "" {
		fmt.Sscanf(page, "page-%d", &idx)
	}
	if at, ok := s.failAt[dirPath]; ok && at == idx {
		return nil, fmt.Errorf("listing %q: unexpected status 500", dirPath)
	}

	pages, ok := s.pages[dirPath]
	if !ok || idx >= len(pages) {
		return nil, errors.New("not found")
	}

	listing := &Listing{Entries: pages[idx]}
	if idx+1 < len(pages) {
		listing.NextPage = fmt.Sprintf("page-%d", idx+1)
	}
	return listing, nil
}

func (s *stubTree) listedDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.listed...)
}

// stubDownloader はパスごとの内容・エラーを返す
type stubDownloader struct {
	content map[string][]byte
	errs    map[string]error
}

func (d *stubDownloader) Download(ctx context.Context, fd FileDescriptor) ([]byte, error) {
	if err, ok := d.errs[fd.Path]; ok {
		return nil, err
	}
	if c, ok := d.content[fd.Path]; ok {
		return c, nil
	}
	return []byte("print('hello')\n"), nil
}

// stubStore はアップロード・紐付けを記録する
type stubStore struct {
	mu           sync.Mutex
	uploadErrs   []error // 呼び出し順に返すエラー（尽きたら成功）
	attachErr    map[string]error
	uploads      []string
	contentTypes map[string]string
	attached     map[string][]string
	seq          int
}

func newStubStore() *stubStore {
	return &stubStore{
		attachErr:    make(map[string]error),
		contentTypes: make(map[string]string),
		attached:     make(map[string][]string),
	}
}

func (s *stubStore) UploadFile(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads = append(s.uploads, filename)
	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]
		if err != nil {
			return "", err
		}
	}
	s.seq++
	id := fmt.Sprintf("file-%s-%d", filename, s.seq)
	s.contentTypes[filename] = contentType
	return id, nil
}

func (s *stubStore) AttachFile(ctx context.Context, indexID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for prefix, err := range s.attachErr {
		if len(fileID) >= len(prefix) && fileID[:len(prefix)] == prefix {
			return err
		}
	}
	s.attached[indexID] = append(s.attached[indexID], fileID)
	return nil
}

type stubTokenCounter struct{}

func (stubTokenCounter) CountTokens(text string) int { return len(text) }

type stubDetector struct{ contentType string }

func (d stubDetector) DetectContentType(path string, content []byte) string { return d.contentType }
