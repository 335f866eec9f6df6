package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Run(ctx context.Context, path string) (FileReport, error) {
	args := m.Called(path)
	return args.Get(0).(FileReport), args.Error(1)
}

func (m *mockEngine) RunSource(ctx context.Context, name string, src []byte) (FileReport, error) {
	args := m.Called(name, src)
	return args.Get(0).(FileReport), args.Error(1)
}

func createTempFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("package p\n"), 0o644))
		paths[i] = path
	}
	return paths
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	logger := zap.NewNop()
	ctx := context.Background()

	dir := t.TempDir()
	paths := createTempFiles(t, dir, "b.go", "a.go", "sub/c.go", "a_test.go", "notes.txt")

	engine := new(mockEngine)
	for _, p := range paths[:3] {
		engine.On("Run", p).Return(FileReport{File: p}, nil)
	}

	reports, err := ProcessPath(ctx, logger, engine, dir, ProcessFile)
	require.NoError(t, err)

	files := make([]string, len(reports))
	for i, r := range reports {
		files[i] = r.File
	}
	assert.Equal(t, []string{paths[1], paths[0], paths[2]}, files)
	engine.AssertExpectations(t)
	engine.AssertNotCalled(t, "Run", paths[3])
	engine.AssertNotCalled(t, "Run", paths[4])
}

func TestProcessPathErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := createTempFiles(t, dir, "a.go", "b.go")

	boom := errors.New("boom")
	engine := new(mockEngine)
	engine.On("Run", paths[0]).Return(FileReport{File: paths[0]}, nil)
	engine.On("Run", paths[1]).Return(FileReport{}, boom)

	reports, err := ProcessPath(context.Background(), nil, engine, dir, ProcessFile)
	assert.ErrorIs(t, err, boom)
	require.Len(t, reports, 1)
	assert.Equal(t, paths[0], reports[0].File)
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := createTempFiles(t, dir, "a.go", "notes.txt")

	engine := new(mockEngine)
	engine.On("Run", paths[0]).Return(FileReport{File: paths[0]}, nil)

	reports, err := ProcessPath(context.Background(), nil, engine, paths[0], ProcessFile)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	reports, err = ProcessPath(context.Background(), nil, engine, paths[1], ProcessFile)
	require.NoError(t, err)
	assert.Empty(t, reports)

	_, err = ProcessPath(context.Background(), nil, engine, filepath.Join(dir, "missing.go"), ProcessFile)
	assert.Error(t, err)
}

func TestProcessPathCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTempFiles(t, dir, "a.go", "b.go")
	engine := new(mockEngine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessPath(ctx, nil, engine, dir, ProcessFile)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()
	logger := zap.NewNop()

	dir := t.TempDir()
	paths := createTempFiles(t, dir, "a.go", "b.go")

	engine := new(mockEngine)
	engine.On("Run", paths[0]).Return(FileReport{File: paths[0]}, nil)
	engine.On("Run", paths[1]).Return(FileReport{File: paths[1]}, nil)

	reports, err := ProcessFiles(context.Background(), logger, engine, []string{paths[1], paths[0]}, ProcessFile)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, paths[1], reports[0].File)
	assert.Equal(t, paths[0], reports[1].File)

	_, err = ProcessFiles(context.Background(), logger, engine, []string{paths[0], filepath.Join(dir, "missing")}, ProcessFile)
	assert.Error(t, err)
}
