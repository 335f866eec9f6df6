// Package cache keeps verification reports of source files between runs.
//
// Entries are keyed by file path and dropped when the file content
// changes, when they grow older than the configured age, or when one of
// the dependency files (the configuration, typically) or the settings
// fingerprint differs from the one the cache was written with.
package cache

import (
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	cacheFileName = "verify_cache.gob"
	// DefaultMaxAge is used when Options.MaxAge is zero.
	DefaultMaxAge = 24 * time.Hour
)

type fileMetadata struct {
	Hash         string
	LastModified time.Time
}

type entry[V any] struct {
	Metadata     fileMetadata
	Value        V
	CreatedAt    time.Time
	LastAccessed time.Time
}

// snapshot is the on-disk form of a cache.
type snapshot[V any] struct {
	Fingerprint  string
	Dependencies map[string]string
	Entries      map[string]entry[V]
}

// Options configures a cache.
type Options struct {
	MaxAge time.Duration
	// Dependencies are files whose change invalidates every entry.
	Dependencies []string
	// Fingerprint describes the settings the entries were computed with.
	Fingerprint string
}

// Cache maps source files to values of type V. It is safe for
// concurrent use.
type Cache[V any] struct {
	dir          string
	mu           sync.Mutex
	entries      map[string]entry[V]
	maxAge       time.Duration
	fingerprint  string
	dependencies map[string]string
	now          func() time.Time
}

// Open loads the cache stored in dir, creating dir when needed. A missing
// or unreadable cache file yields an empty cache.
func Open[V any](dir string, opts Options) (*Cache[V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}

	c := &Cache[V]{
		dir:          dir,
		entries:      make(map[string]entry[V]),
		maxAge:       opts.MaxAge,
		fingerprint:  opts.Fingerprint,
		dependencies: make(map[string]string),
		now:          time.Now,
	}
	for _, dep := range opts.Dependencies {
		hash, err := fileHash(dep)
		if err != nil {
			return nil, fmt.Errorf("hashing dependency %s: %w", dep, err)
		}
		c.dependencies[dep] = hash
	}

	stored, err := c.load()
	if err != nil {
		return c, nil
	}
	if stored.Fingerprint == c.fingerprint && sameHashes(stored.Dependencies, c.dependencies) {
		c.entries = stored.Entries
	}
	return c, nil
}

func (c *Cache[V]) path() string {
	return filepath.Join(c.dir, cacheFileName)
}

func (c *Cache[V]) load() (snapshot[V], error) {
	var s snapshot[V]
	f, err := os.Open(c.path())
	if err != nil {
		return s, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return s, err
	}
	if s.Entries == nil {
		return s, errors.New("empty cache file")
	}
	return s, nil
}

// save writes the cache through a temporary file. The caller holds mu.
func (c *Cache[V]) save() error {
	tmp, err := os.CreateTemp(c.dir, cacheFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	s := snapshot[V]{
		Fingerprint:  c.fingerprint,
		Dependencies: c.dependencies,
		Entries:      c.entries,
	}
	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path())
}

// Get returns the value stored for path when the file is unchanged and
// the entry has not expired.
func (c *Cache[V]) Get(path string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[path]
	if !ok {
		return zero, false
	}
	if c.isEntryInvalid(path, e) {
		delete(c.entries, path)
		return zero, false
	}
	e.LastAccessed = c.now()
	c.entries[path] = e
	return e.Value, true
}

// Set stores value for the current content of path and persists the
// cache.
func (c *Cache[V]) Set(path string, value V) error {
	metadata, err := getFileMetadata(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[path] = entry[V]{
		Metadata:     metadata,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return c.save()
}

// Invalidate drops the entry of path.
func (c *Cache[V]) Invalidate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; !ok {
		return nil
	}
	delete(c.entries, path)
	return c.save()
}

// InvalidateAll drops every entry.
func (c *Cache[V]) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
	return c.save()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) isEntryInvalid(path string, e entry[V]) bool {
	if c.now().Sub(e.CreatedAt) > c.maxAge {
		return true
	}
	current, err := getFileMetadata(path)
	if err != nil {
		return true
	}
	return current.Hash != e.Metadata.Hash || !current.LastModified.Equal(e.Metadata.LastModified)
}

func getFileMetadata(path string) (fileMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileMetadata{}, err
	}
	hash, err := fileHash(path)
	if err != nil {
		return fileMetadata{}, err
	}
	return fileMetadata{Hash: hash, LastModified: info.ModTime()}, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sameHashes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
