//go:build z3

package z3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	z3 "github.com/Z3Prover/z3/src/api/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/smt"
)

// Name is the registry name of this backend.
const Name = "z3"

func init() {
	smt.Register(Name, func(opts smt.Options) (smt.Context, error) {
		return NewContext(opts)
	})
}

type term struct {
	e *z3.Expr
}

func (t term) String() string { return t.e.String() }

// Context adapts a z3.Context to smt.Context.
type Context struct {
	z      *z3.Context
	ints   *z3.Sort
	opts   smt.Options
	logger *zap.Logger

	mu    sync.Mutex
	funcs map[string]*z3.FuncDecl
}

// NewContext creates a fresh Z3 context. It is released by Close.
func NewContext(opts smt.Options) (c *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("z3: creating context: %v", r)
		}
	}()

	cfg := z3.NewConfig()
	cfg.SetParamValue("model", "true")
	zc := z3.NewContextWithConfig(cfg)
	if opts.Timeout > 0 {
		zc.SetParam("timeout", fmt.Sprintf("%d", opts.Timeout.Milliseconds()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		z:      zc,
		ints:   zc.MkIntSort(),
		opts:   opts,
		logger: logger,
		funcs:  make(map[string]*z3.FuncDecl),
	}, nil
}

func expr(t smt.Term) *z3.Expr {
	tt, ok := t.(term)
	if !ok {
		panic(fmt.Sprintf("z3: foreign term %T", t))
	}
	return tt.e
}

func exprs(ts []smt.Term) []*z3.Expr {
	out := make([]*z3.Expr, len(ts))
	for i, t := range ts {
		out[i] = expr(t)
	}
	return out
}

func (c *Context) IntConst(name string) smt.Term { return term{c.z.MkIntConst(name)} }
func (c *Context) Int(v int64) smt.Term { return term{c.z.MkInt64(v, c.ints)} }
func (c *Context) Bool(v bool) smt.Term { return term{c.z.MkBool(v)} }
func (c *Context) Not(t smt.Term) smt.Term { return term{c.z.MkNot(expr(t))} }

func (c *Context) And(ts ...smt.Term) smt.Term {
	switch len(ts) {
	case 0:
		return c.Bool(true)
	case 1:
		return ts[0]
	}
	return term{c.z.MkAnd(exprs(ts)...)}
}

func (c *Context) Or(ts ...smt.Term) smt.Term {
	switch len(ts) {
	case 0:
		return c.Bool(false)
	case 1:
		return ts[0]
	}
	return term{c.z.MkOr(exprs(ts)...)}
}

func (c *Context) Implies(l, r smt.Term) smt.Term {
	return term{c.z.MkImplies(expr(l), expr(r))}
}

func (c *Context) Eq(l, r smt.Term) smt.Term { return term{c.z.MkEq(expr(l), expr(r))} }
func (c *Context) Ne(l, r smt.Term) smt.Term { return term{c.z.MkDistinct(expr(l), expr(r))} }
func (c *Context) Lt(l, r smt.Term) smt.Term { return term{c.z.MkLt(expr(l), expr(r))} }
func (c *Context) Le(l, r smt.Term) smt.Term { return term{c.z.MkLe(expr(l), expr(r))} }
func (c *Context) Gt(l, r smt.Term) smt.Term { return term{c.z.MkGt(expr(l), expr(r))} }
func (c *Context) Ge(l, r smt.Term) smt.Term { return term{c.z.MkGe(expr(l), expr(r))} }
func (c *Context) Add(l, r smt.Term) smt.Term { return term{c.z.MkAdd(expr(l), expr(r))} }
func (c *Context) Sub(l, r smt.Term) smt.Term { return term{c.z.MkSub(expr(l), expr(r))} }
func (c *Context) Mul(l, r smt.Term) smt.Term { return term{c.z.MkMul(expr(l), expr(r))} }
func (c *Context) Div(l, r smt.Term) smt.Term { return term{c.z.MkDiv(expr(l), expr(r))} }

// Neg is encoded as 0 - t; the binding has no unary minus.
func (c *Context) Neg(t smt.Term) smt.Term {
	return term{c.z.MkSub(c.z.MkInt64(0, c.ints), expr(t))}
}

func (c *Context) Forall(bound []smt.Term, body smt.Term) smt.Term {
	if len(bound) == 0 {
		return body
	}
	return term{c.z.MkForall(exprs(bound), expr(body))}
}

func (c *Context) Exists(bound []smt.Term, body smt.Term) smt.Term {
	if len(bound) == 0 {
		return body
	}
	return term{c.z.MkExists(exprs(bound), expr(body))}
}

func (c *Context) Apply(fn string, args ...smt.Term) smt.Term {
	c.mu.Lock()
	decl, ok := c.funcs[fn]
	if !ok {
		domain := make([]*z3.Sort, len(args))
		for i := range domain {
			domain[i] = c.ints
		}
		decl = c.z.MkFuncDecl(c.z.MkStringSymbol(fn), domain, c.ints)
		c.funcs[fn] = decl
	}
	c.mu.Unlock()
	return term{c.z.MkApp(decl, exprs(args)...)}
}

func (c *Context) NewSolver() smt.Solver {
	return &Solver{ctx: c, s: c.z.NewSolver()}
}

// Close drops the context; the binding frees it once unreachable.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = nil
	return nil
}

// Solver adapts a z3.Solver to smt.Solver.
type Solver struct {
	ctx *Context
	s   *z3.Solver
}

func (s *Solver) Add(t smt.Term) {
	s.s.Assert(expr(t))
}

// Check runs the solver in its own goroutine so that a cancelled ctx can
// interrupt it. A check stopped by a deadline reports Unknown; an
// explicit cancel returns the context error.
func (s *Solver) Check(ctx context.Context) (status smt.Status, err error) {
	done := make(chan z3.Status, 1)
	panics := make(chan any, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				panics <- r
			}
		}()
		done <- s.s.Check()
	}()

	select {
	case st := <-done:
		return convertStatus(s, st), nil
	case r := <-panics:
		return smt.Unknown, errors.Errorf("z3: check failed: %v", r)
	case <-ctx.Done():
		s.s.Interrupt()
		select {
		case <-done:
		case <-panics:
		}
		s.ctx.logger.Debug("z3 check interrupted", zap.Error(ctx.Err()))
		if ctx.Err() == context.DeadlineExceeded {
			return smt.Unknown, nil
		}
		return smt.Unknown, ctx.Err()
	}
}

func convertStatus(s *Solver, st z3.Status) smt.Status {
	switch st {
	case z3.Satisfiable:
		return smt.Sat
	case z3.Unsatisfiable:
		return smt.Unsat
	default:
		s.ctx.logger.Debug("z3 returned unknown", zap.String("reason", s.s.ReasonUnknown()))
		return smt.Unknown
	}
}

func (s *Solver) Model() (*smt.Model, error) {
	m := s.s.Model()
	if m == nil {
		return nil, errors.New("z3: no model available")
	}
	var assignments []smt.Assignment
	for i := uint(0); i < m.NumConsts(); i++ {
		decl := m.GetConstDecl(i)
		value := m.GetConstInterp(decl)
		if value == nil {
			continue
		}
		assignments = append(assignments, smt.Assignment{
			Name:  decl.GetName().String(),
			Value: formatValue(value.String()),
		})
	}
	return smt.NewModel(assignments), nil
}

// formatValue renders Z3's (- 3) as -3.
func formatValue(v string) string {
	if strings.HasPrefix(v, "(- ") && strings.HasSuffix(v, ")") {
		return "-" + strings.TrimSuffix(strings.TrimPrefix(v, "(- "), ")")
	}
	return v
}
