// Package verify checks annotated Go files against their contracts.
//
// An Engine loads a file, verifies every function in it and reports the
// outcome per function. Reports of unchanged files are served from a
// cache between runs.
package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/cache"
	"github.com/gnolang/hoare/internal/loader"
	"github.com/gnolang/hoare/internal/logic"
	"github.com/gnolang/hoare/internal/smt"
	"github.com/gnolang/hoare/internal/verifier"
)

// Runner verifies files and sources.
type Runner interface {
	Run(ctx context.Context, path string) (FileReport, error)
	RunSource(ctx context.Context, name string, src []byte) (FileReport, error)
}

// FunctionReport is the outcome of verifying one function.
type FunctionReport struct {
	Function string `json:"function"`
	Line     int    `json:"line,omitempty"`
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	// Inconclusive is set when the solver answered unknown.
	Inconclusive bool `json:"inconclusive,omitempty"`
	// Model is the counterexample of a disproved function.
	Model   map[string]string `json:"model,omitempty"`
	VC      string            `json:"vc,omitempty"`
	Elapsed time.Duration     `json:"elapsed"`
}

// FileReport is the outcome of verifying one file. Error is set when the
// file could not be loaded; Functions is empty then.
type FileReport struct {
	File      string           `json:"file"`
	Functions []FunctionReport `json:"functions"`
	Error     string           `json:"error,omitempty"`
	Cached    bool             `json:"cached,omitempty"`
}

// Verified reports whether the file loaded and every function verified.
func (r FileReport) Verified() bool {
	return r.Error == "" && len(r.Failed()) == 0
}

// Failed returns the functions that were not verified, in declaration
// order.
func (r FileReport) Failed() []string {
	var failed []string
	for _, f := range r.Functions {
		if !f.Verified {
			failed = append(failed, f.Function)
		}
	}
	return failed
}

// Explanation is the verification condition of one function and the
// SMT-LIB2 script that checks it.
type Explanation struct {
	Function string `json:"function"`
	VC       string `json:"vc,omitempty"`
	Script   string `json:"script,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrNoFunction is returned by Explain for a name the file does not
// declare.
var ErrNoFunction = errors.New("no such function")

// Engine verifies files with one configuration. It is safe for
// concurrent use.
type Engine struct {
	config   Config
	verifier *verifier.Verifier
	cache    *cache.Cache[FileReport]
	logger   *zap.Logger
}

var _ Runner = (*Engine)(nil)

// New reads the configuration at configPath and returns an engine for it.
func New(configPath string, logger *zap.Logger) (*Engine, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(config, configPath, logger)
}

// NewWithConfig returns an engine for config. A non-empty configPath
// invalidates cached reports whenever that file changes.
func NewWithConfig(config Config, configPath string, logger *zap.Logger) (*Engine, error) {
	return newEngine(config, configPath, logger, nil)
}

func newEngine(config Config, configPath string, logger *zap.Logger, factory smt.Factory) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{config: config, logger: logger}
	e.verifier = verifier.New(verifier.Config{
		Backend: config.Solver.Backend,
		Solver: smt.Options{
			SolverPath: config.Solver.Path,
			Args:       config.Solver.Args,
			Timeout:    config.Solver.Timeout,
			Logger:     logger,
		},
		Jobs:    config.Jobs,
		Factory: factory,
	}, logger)

	if config.Cache.Disabled {
		return e, nil
	}
	dir := config.Cache.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			logger.Warn("no user cache directory; caching disabled", zap.Error(err))
			return e, nil
		}
		dir = filepath.Join(base, "hoare")
	}
	var deps []string
	if configPath != "" {
		deps = append(deps, configPath)
	}
	c, err := cache.Open[FileReport](dir, cache.Options{
		MaxAge:       config.Cache.MaxAge,
		Dependencies: deps,
		Fingerprint:  config.fingerprint(),
	})
	if err != nil {
		return nil, err
	}
	e.cache = c
	return e, nil
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config {
	return e.config
}

// Run verifies the file at path. A file that does not load yields a
// report with Error set and a nil error; only I/O failures and a done
// context are returned as errors.
func (e *Engine) Run(ctx context.Context, path string) (FileReport, error) {
	if e.cache != nil {
		if report, ok := e.cache.Get(path); ok {
			e.logger.Debug("cache hit", zap.String("file", path))
			report.Cached = true
			return report, nil
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return FileReport{File: path}, err
	}
	report, err := e.RunSource(ctx, path, src)
	if err != nil {
		return report, err
	}

	if e.cache != nil {
		if err := e.cache.Set(path, report); err != nil {
			e.logger.Warn("caching report", zap.String("file", path), zap.Error(err))
		}
	}
	return report, nil
}

// RunSource verifies src, named name in positions. It never uses the
// cache.
func (e *Engine) RunSource(ctx context.Context, name string, src []byte) (FileReport, error) {
	report := FileReport{File: name}
	mod, err := loader.Load(name, src)
	if err != nil {
		report.Error = err.Error()
		return report, nil
	}

	results, err := e.verifier.VerifyModule(ctx, mod)
	var failure *verifier.FailureError
	if err != nil && !errors.As(err, &failure) {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Functions = make([]FunctionReport, len(results))
	for i, res := range results {
		report.Functions[i] = functionReport(res, mod.Functions[i].Line)
	}
	e.logger.Info("file verified",
		zap.String("file", name),
		zap.Int("functions", len(results)),
		zap.Strings("failed", report.Failed()))
	return report, nil
}

// Explain loads the file at path and explains the named function, or
// every function when name is empty.
func (e *Engine) Explain(path, name string) ([]Explanation, error) {
	mod, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}

	fns := mod.Functions
	if name != "" {
		fn, ok := mod.Function(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoFunction, name)
		}
		fns = []logic.Function{*fn}
	}

	out := make([]Explanation, len(fns))
	for i := range fns {
		vc, script, err := e.verifier.Explain(&fns[i], mod)
		out[i] = Explanation{Function: fns[i].Name, Script: script}
		if vc != nil {
			out[i].VC = vc.String()
		}
		if err != nil {
			out[i].Error = err.Error()
		}
	}
	return out, nil
}

// Invalidate drops the cached report of path.
func (e *Engine) Invalidate(path string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(path)
}

func functionReport(res verifier.Result, line int) FunctionReport {
	fr := FunctionReport{
		Function: res.Function,
		Line:     line,
		Verified: res.Verified,
		Status:   res.Status.String(),
		Error:    res.Message(),
		Elapsed:  res.Elapsed,

		Inconclusive: errors.Is(res.Error, verifier.ErrInconclusive),
	}
	if res.VC != nil {
		fr.VC = res.VC.String()
	}
	if res.Model != nil {
		fr.Model = make(map[string]string, len(res.Model.Assignments))
		for _, a := range res.Model.Assignments {
			fr.Model[a.Name] = a.Value
		}
	}
	return fr
}

// ModelNames returns the constants of a counterexample in sorted order.
func (f FunctionReport) ModelNames() []string {
	names := make([]string, 0, len(f.Model))
	for name := range f.Model {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
