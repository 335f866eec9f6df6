package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) handle(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, paths...)
}

func (c *collector) seen(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.paths {
		if p == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string) *collector {
	t.Helper()

	w, err := New(nil, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Add(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := &collector{}
	go func() { done <- w.Run(ctx, c.handle) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, w.Close())
	})
	return c
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "add.go")
	require.NoError(t, os.WriteFile(src, []byte("package p\n"), 0o644))
	c := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(src, []byte("package p\n\nfunc f() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return c.seen(src) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.seen(filepath.Join(dir, "notes.txt")))
}

func TestWatcherNewDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := startWatcher(t, dir)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	src := filepath.Join(sub, "loop.go")
	assert.Eventually(t, func() bool {
		// the new directory is added asynchronously; rewrite until seen
		_ = os.WriteFile(src, []byte("package sub\n"), 0o644)
		return c.seen(src)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIsSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"a/add.go", true},
		{"a/add_test.go", false},
		{"a/add.go.swp", false},
		{".hoare.yaml", false},
		{"go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSource(tt.path), tt.path)
	}
}

func TestWatcherSingleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "add.go")
	other := filepath.Join(dir, "other.go")
	for _, p := range []string{src, other} {
		require.NoError(t, os.WriteFile(p, []byte("package p\n"), 0o644))
	}
	c := startWatcher(t, src)

	require.NoError(t, os.WriteFile(other, []byte("package p\n\nfunc g() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("package p\n\nfunc f() {}\n"), 0o644))

	assert.Eventually(t, func() bool { return c.seen(src) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.seen(other))
}

func TestAddMissingRoot(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "missing")))
}
