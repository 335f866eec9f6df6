package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Processor verifies one file with engine.
type Processor func(ctx context.Context, engine Runner, path string) (FileReport, error)

// ProcessFile is the default Processor.
func ProcessFile(ctx context.Context, engine Runner, path string) (FileReport, error) {
	return engine.Run(ctx, path)
}

// ProgressOutput receives the progress bar drawn while processing a
// directory. Set it to io.Discard to hide the bar.
var ProgressOutput io.Writer = os.Stderr

// ProcessFiles processes every path in order. Reports gathered before an
// error are returned with it.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Runner,
	paths []string,
	processor Processor,
) ([]FileReport, error) {
	var all []FileReport
	for _, path := range paths {
		reports, err := ProcessPath(ctx, logger, engine, path, processor)
		all = append(all, reports...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return all, err
		}
	}
	return all, nil
}

// ProcessPath processes a file, or every .go file under a directory. Files
// of a directory are processed concurrently and reported in path order;
// their errors are joined.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Runner,
	path string,
	processor Processor,
) ([]FileReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		report, err := processor(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		return []FileReport{report}, nil
	}

	files, err := sourceFiles(path)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(ProgressOutput),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	reports := make([]FileReport, len(files))
	errs := make([]error, len(files))
	done := make([]bool, len(files))

	// limit the number of workers
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

launch:
	for i, fp := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, fp string) {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := processor(ctx, engine, fp)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				errs[i] = err
			} else {
				reports[i] = report
				done[i] = true
			}
			_ = bar.Add(1)
		}(i, fp)
	}
	wg.Wait()
	_ = bar.Finish()

	var out []FileReport
	for i := range files {
		if done[i] {
			out = append(out, reports[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, errors.Join(errs...)
}

func sourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasDesiredExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

var desiredExtensions = map[string]bool{
	".go": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)] && !strings.HasSuffix(path, "_test.go")
}
