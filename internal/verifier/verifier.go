// Package verifier runs the verification pipeline over every function of
// a module: environment, verification condition, encoding and one solver
// check per function.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/hoare/internal/encode"
	"github.com/gnolang/hoare/internal/logic"
	"github.com/gnolang/hoare/internal/smt"
	"github.com/gnolang/hoare/internal/smt/smtlib"
	"github.com/gnolang/hoare/internal/wp"
)

var (
	// ErrCounterexample is recorded when the solver disproves a function.
	ErrCounterexample = errors.New("counterexample found")
	// ErrInconclusive is recorded when the solver answers unknown.
	ErrInconclusive = errors.New("solver returned unknown")
	// ErrInternal wraps a panic recovered while verifying one function.
	ErrInternal = errors.New("internal error")
)

// checkGrace is added to the solver timeout for the check deadline.
const checkGrace = 2 * time.Second

// Result is the outcome of verifying one function.
type Result struct {
	Function string
	Verified bool
	Status   smt.Status
	// Error is nil exactly when Verified is true.
	Error error
	// Model is the counterexample of a disproved function.
	Model   *smt.Model
	VC      logic.Pred
	Elapsed time.Duration
}

// Message describes why the function was not verified.
func (r Result) Message() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// FailureError lists every function that was not verified, in
// declaration order.
type FailureError struct {
	Functions []string
}

func (e *FailureError) Error() string {
	return "verification failed for: " + strings.Join(e.Functions, ", ")
}

// Config selects the solver backend and how functions are scheduled.
type Config struct {
	// Backend names a registered smt backend. Empty means smtlib.
	Backend string
	// Solver is passed to the backend. Its Timeout is the per-function
	// solver deadline.
	Solver smt.Options
	// Jobs bounds how many functions are verified at once. Values below 2
	// verify sequentially.
	Jobs int
	// Factory overrides Backend when set.
	Factory smt.Factory
}

// Verifier verifies modules. It is safe for concurrent use.
type Verifier struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "" {
		cfg.Backend = smtlib.Name
	}
	if cfg.Solver.Logger == nil {
		cfg.Solver.Logger = logger
	}
	return &Verifier{cfg: cfg, logger: logger}
}

// VerifyModule verifies every function of mod. The results follow
// declaration order. When a function is not verified the results are
// returned together with a *FailureError naming all such functions.
func (v *Verifier) VerifyModule(ctx context.Context, mod *logic.Module) ([]Result, error) {
	results := make([]Result, len(mod.Functions))

	if v.cfg.Jobs < 2 {
		for i := range mod.Functions {
			results[i] = v.VerifyFunction(ctx, &mod.Functions[i], mod)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(v.cfg.Jobs)
		for i := range mod.Functions {
			i := i
			g.Go(func() error {
				results[i] = v.VerifyFunction(ctx, &mod.Functions[i], mod)
				return nil
			})
		}
		_ = g.Wait()
	}

	var failed []string
	for _, r := range results {
		if !r.Verified {
			failed = append(failed, r.Function)
		}
	}
	if len(failed) > 0 {
		return results, &FailureError{Functions: failed}
	}
	return results, nil
}

// VerifyFunction verifies fn in a solver context of its own. Every error,
// including a panic, ends up in the result.
func (v *Verifier) VerifyFunction(ctx context.Context, fn *logic.Function, mod *logic.Module) (res Result) {
	start := time.Now()
	logger := v.logger.With(zap.String("function", fn.Name))
	res = Result{Function: fn.Name}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("verification panicked", zap.Any("panic", r))
			res.Verified = false
			res.Status = smt.Unknown
			res.Model = nil
			res.Error = fmt.Errorf("%w: %v", ErrInternal, r)
		}
		res.Elapsed = time.Since(start)
	}()

	sctx, err := v.open()
	if err != nil {
		res.Error = err
		return res
	}
	defer func() {
		if err := sctx.Close(); err != nil {
			logger.Warn("closing solver context", zap.Error(err))
		}
	}()

	solver, err := v.prepare(sctx, fn, mod, logger, &res)
	if err != nil {
		logger.Debug("contract setup failed", zap.Error(err))
		res.Error = err
		return res
	}

	checkCtx := ctx
	if timeout := v.cfg.Solver.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, timeout+checkGrace)
		defer cancel()
	}

	status, err := solver.Check(checkCtx)
	if err != nil {
		res.Error = fmt.Errorf("solver: %w", err)
		return res
	}
	res.Status = status

	switch status {
	case smt.Unsat:
		res.Verified = true
	case smt.Sat:
		res.Error = ErrCounterexample
		model, err := solver.Model()
		if err != nil {
			logger.Warn("reading counterexample", zap.Error(err))
		}
		res.Model = model
	default:
		res.Error = ErrInconclusive
	}

	logger.Info("verified",
		zap.Bool("ok", res.Verified),
		zap.Stringer("status", status),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

// prepare builds the environment and the verification condition, then
// asserts the negated condition on a fresh solver.
func (v *Verifier) prepare(sctx smt.Context, fn *logic.Function, mod *logic.Module, logger *zap.Logger, res *Result) (smt.Solver, error) {
	env, err := encode.BuildEnvironment(sctx, fn)
	if err != nil {
		return nil, err
	}
	vc, err := wp.BuildVC(fn, mod)
	if err != nil {
		return nil, err
	}
	res.VC = vc
	logger.Debug("verification condition", zap.Stringer("vc", vc))

	solver := sctx.NewSolver()
	term, err := encode.New(sctx, solver, mod, logger).Pred(vc, env)
	if err != nil {
		return nil, err
	}
	solver.Add(sctx.Not(term))
	return solver, nil
}

func (v *Verifier) open() (smt.Context, error) {
	if v.cfg.Factory != nil {
		return v.cfg.Factory(v.cfg.Solver)
	}
	return smt.Open(v.cfg.Backend, v.cfg.Solver)
}

// Explain returns the verification condition of fn and the SMT-LIB2
// script that checks it, without running a solver.
func (v *Verifier) Explain(fn *logic.Function, mod *logic.Module) (logic.Pred, string, error) {
	sctx := smtlib.NewContext(v.cfg.Solver, nil)
	defer sctx.Close()

	var res Result
	solver, err := v.prepare(sctx, fn, mod, v.logger, &res)
	if err != nil {
		return res.VC, "", err
	}
	return res.VC, solver.(*smtlib.Solver).Script(), nil
}
