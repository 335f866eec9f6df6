package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Functions []string
	Verified  bool
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "add.go")
	writeFile(t, src, "package p\n")

	c, err := Open[report](filepath.Join(dir, "cache"), Options{})
	require.NoError(t, err)

	t.Run("miss", func(t *testing.T) {
		_, ok := c.Get(filepath.Join(dir, "other.go"))
		assert.False(t, ok)
	})

	want := report{Functions: []string{"add"}, Verified: true}
	require.NoError(t, c.Set(src, want))

	t.Run("hit", func(t *testing.T) {
		got, ok := c.Get(src)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("persisted", func(t *testing.T) {
		reopened, err := Open[report](filepath.Join(dir, "cache"), Options{})
		require.NoError(t, err)
		got, ok := reopened.Get(src)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("file modified", func(t *testing.T) {
		writeFile(t, src, "package p\n\nfunc f() {}\n")
		_, ok := c.Get(src)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "add.go")
	writeFile(t, src, "package p\n")

	c, err := Open[report](dir, Options{MaxAge: time.Hour})
	require.NoError(t, err)

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(src, report{Verified: true}))

	now = now.Add(30 * time.Minute)
	_, ok := c.Get(src)
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = c.Get(src)
	assert.False(t, ok)
}

func TestCacheInvalidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reopen func(t *testing.T, dir, config string) Options
		keeps  bool
	}{
		{
			name: "same settings",
			reopen: func(t *testing.T, dir, config string) Options {
				return Options{Dependencies: []string{config}, Fingerprint: "smtlib"}
			},
			keeps: true,
		},
		{
			name: "config changed",
			reopen: func(t *testing.T, dir, config string) Options {
				writeFile(t, config, "jobs: 4\n")
				return Options{Dependencies: []string{config}, Fingerprint: "smtlib"}
			},
		},
		{
			name: "fingerprint changed",
			reopen: func(t *testing.T, dir, config string) Options {
				return Options{Dependencies: []string{config}, Fingerprint: "z3"}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			src := filepath.Join(dir, "add.go")
			config := filepath.Join(dir, ".hoare.yaml")
			writeFile(t, src, "package p\n")
			writeFile(t, config, "jobs: 1\n")

			opts := Options{Dependencies: []string{config}, Fingerprint: "smtlib"}
			c, err := Open[report](filepath.Join(dir, "cache"), opts)
			require.NoError(t, err)
			require.NoError(t, c.Set(src, report{Verified: true}))

			reopened, err := Open[report](filepath.Join(dir, "cache"), tt.reopen(t, dir, config))
			require.NoError(t, err)
			_, ok := reopened.Get(src)
			assert.Equal(t, tt.keeps, ok)
		})
	}
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	writeFile(t, a, "package a\n")
	writeFile(t, b, "package b\n")

	c, err := Open[report](dir, Options{})
	require.NoError(t, err)
	require.NoError(t, c.Set(a, report{}))
	require.NoError(t, c.Set(b, report{}))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Invalidate(a))
	_, ok := c.Get(a)
	assert.False(t, ok)
	_, ok = c.Get(b)
	assert.True(t, ok)

	require.NoError(t, c.InvalidateAll())
	assert.Equal(t, 0, c.Len())
}

func TestOpenMissingDependency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Open[report](dir, Options{Dependencies: []string{filepath.Join(dir, "missing.yaml")}})
	assert.Error(t, err)
}

func TestOpenCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, cacheFileName), "not gob")

	c, err := Open[report](dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}
