package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestDiskStore_SaveWritesFile(t *testing.T) {
	dir := t.TempDir()
	at := time.UnixMilli(1700000000123)
	store := NewDiskStore(dir, WithStoreClock(func() time.Time { return at }))

	file, err := store.Save(context.Background(), "notes.txt", strings.NewReader("hello world!"))
	require.NoError(t, err)

	assert.Equal(t, "1700000000123-notes.txt", file.Filename)
	assert.Equal(t, "notes.txt", file.OriginalName)
	assert.Equal(t, int64(12), file.Size)

	content, err := os.ReadFile(filepath.Join(dir, file.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(content))
}

func TestDiskStore_SameMillisecondNamesDiffer(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	store := NewDiskStore(t.TempDir(), WithStoreClock(func() time.Time { return at }))

	first, err := store.Save(context.Background(), "notes.txt", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "notes.txt", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Filename, second.Filename)
	assert.Equal(t, "1700000000000-notes.txt", first.Filename)
	assert.Equal(t, "1700000000001-notes.txt", second.Filename)
	assert.Equal(t, second.OriginalName, first.OriginalName)
}

func TestDiskStore_ClockGoingBackwards(t *testing.T) {
	times := []time.Time{time.UnixMilli(2000), time.UnixMilli(1000)}
	i := 0
	store := NewDiskStore(t.TempDir(), WithStoreClock(func() time.Time {
		at := times[i]
		i++
		return at
	}))

	first, err := store.Save(context.Background(), "a", strings.NewReader(""))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "a", strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "2000-a", first.Filename)
	assert.Equal(t, "2001-a", second.Filename)
}

func TestDiskStore_PathTraversalStaysInDir(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)

	file, err := store.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)

	assert.Equal(t, "../../etc/passwd", file.OriginalName)
	assert.True(t, strings.HasSuffix(file.Filename, "-passwd"))
	_, err = os.Stat(filepath.Join(dir, file.Filename))
	assert.NoError(t, err)
}

func TestDiskStore_TooLargeRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, WithMaxSize(4))

	_, err := store.Save(context.Background(), "big.bin", strings.NewReader("0123456789"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_ReadErrorRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)

	_, err := store.Save(context.Background(), "broken.txt", failingReader{})
	assert.ErrorIs(t, err, ErrWriteFailed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_MissingDirectory(t *testing.T) {
	store := NewDiskStore(filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := store.Save(context.Background(), "notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestDiskStore_InitCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	store := NewDiskStore(dir)

	require.NoError(t, store.Init())
	require.NoError(t, store.Init())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDiskStore_CancelledContext(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, "notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"notes.txt", "notes.txt"},
		{"my report.pdf", "my report.pdf"},
		{"../secret.txt", "secret.txt"},
		{"..\\..\\windows\\win.ini", "win.ini"},
		{"dir/sub/file.go", "file.go"},
		{"", "unnamed"},
		{"..", "unnamed"},
		{"bad\x00name.txt", "badname.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.input))
		})
	}
}
