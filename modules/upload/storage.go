package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domain "github.com/example/codecollab/domain/room"
)

// DiskStore writes uploads into a single flat directory.
type DiskStore struct {
	dir     string
	maxSize int64
	now     func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// StoreOption configures a DiskStore.
type StoreOption func(*DiskStore)

// WithMaxSize limits the size of a single upload. Zero means unlimited.
func WithMaxSize(n int64) StoreOption {
	return func(s *DiskStore) {
		s.maxSize = n
	}
}

// WithStoreClock overrides the time source used for filename stamps.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *DiskStore) {
		s.now = now
	}
}

// NewDiskStore creates a store rooted at dir.
func NewDiskStore(dir string, opts ...StoreOption) *DiskStore {
	s := &DiskStore{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the upload directory if it does not exist.
func (s *DiskStore) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Dir returns the upload directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save streams r into a new file named "<unix-ms>-<name>" and returns its
// descriptor. The descriptor keeps the client's original name untouched.
func (s *DiskStore) Save(ctx context.Context, originalName string, r io.Reader) (domain.ChatFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatFile{}, err
	}

	filename := fmt.Sprintf("%d-%s", s.nextStamp(), sanitizeFilename(originalName))
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.ChatFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}

	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && size > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrFileTooLarge) {
			return domain.ChatFile{}, err
		}
		return domain.ChatFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return domain.ChatFile{
		Filename:     filename,
		OriginalName: originalName,
		Size:         size,
	}, nil
}

// nextStamp returns the current unix-ms time, bumped so that it is strictly
// greater than any stamp handed out before.
func (s *DiskStore) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

// sanitizeFilename removes path separators and dangerous characters from filename.
func sanitizeFilename(filename string) string {
	clean := strings.ReplaceAll(filename, "\\", "/")
	clean = filepath.Base(filepath.Clean(clean))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}
