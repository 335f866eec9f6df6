// Package smtlib is a solver backend that writes SMT-LIB2 scripts and runs
// an external solver process (z3 by default) on them.
package smtlib

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/consensys/go-corset/pkg/util/source/sexp"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/smt"
)

// Name is the registry name of this backend.
const Name = "smtlib"

func init() {
	smt.Register(Name, func(opts smt.Options) (smt.Context, error) {
		return NewContext(opts, nil), nil
	})
}

// term is an SMT-LIB2 term kept as an s-expression until the script is
// printed.
type term struct {
	node sexp.SExp
}

func (t term) String() string { return t.node.String(false) }

func symbol(name string) term { return term{sexp.NewSymbol(name)} }

// expr returns the s-expression of t. Terms of other backends are carried
// over as printed.
func expr(t smt.Term) sexp.SExp {
	switch t := t.(type) {
	case nil:
		return sexp.NewSymbol("<nil>")
	case term:
		return t.node
	default:
		return sexp.NewSymbol(t.String())
	}
}

func text(t smt.Term) string {
	return expr(t).String(false)
}

// Context builds SMT-LIB2 terms and records the declarations they need.
type Context struct {
	opts   smt.Options
	runner Runner
	logger *zap.Logger

	mu     sync.Mutex
	consts []string
	seen   map[string]bool
	bound  map[string]bool
	funcs  map[string]int
	order  []string
	closed bool
}

// NewContext returns a Context. A nil runner runs opts.SolverPath
// (or z3 from PATH).
func NewContext(opts smt.Options, runner Runner) *Context {
	if runner == nil {
		runner = ExecRunner{Path: opts.SolverPath, Args: opts.Args}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		opts:   opts,
		runner: runner,
		logger: logger,
		seen:   make(map[string]bool),
		bound:  make(map[string]bool),
		funcs:  make(map[string]int),
	}
}

var simpleSymbol = regexp.MustCompile(`^[A-Za-z~!@$%^&*_+=<>.?/-][0-9A-Za-z~!@$%^&*_+=<>.?/-]*$`)

var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "true": true, "false": true,
	"let": true, "forall": true, "exists": true, "ite": true, "div": true,
	"mod": true, "abs": true, "distinct": true, "par": true, "as": true,
	"!": true, "_": true,
}

// quote renders name as an SMT-LIB symbol.
func quote(name string) string {
	if simpleSymbol.MatchString(name) && !reserved[name] {
		return name
	}
	name = strings.NewReplacer("|", "_", `\`, "_").Replace(name)
	return "|" + name + "|"
}

func (c *Context) IntConst(name string) smt.Term {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen[name] {
		c.seen[name] = true
		c.consts = append(c.consts, name)
	}
	return symbol(quote(name))
}

func (c *Context) Int(v int64) smt.Term {
	if v < 0 {
		// -v overflows for MinInt64, so print the digits directly
		digits := strings.TrimPrefix(strconv.FormatInt(v, 10), "-")
		return term{sexp.NewList([]sexp.SExp{sexp.NewSymbol("-"), sexp.NewSymbol(digits)})}
	}
	return symbol(strconv.FormatInt(v, 10))
}

func (c *Context) Bool(v bool) smt.Term {
	if v {
		return symbol("true")
	}
	return symbol("false")
}

func app(op string, args ...smt.Term) smt.Term {
	list := sexp.NewList([]sexp.SExp{sexp.NewSymbol(op)})
	for _, a := range args {
		list.Append(expr(a))
	}
	return term{list}
}

func (c *Context) Not(t smt.Term) smt.Term { return app("not", t) }

func (c *Context) And(ts ...smt.Term) smt.Term {
	switch len(ts) {
	case 0:
		return c.Bool(true)
	case 1:
		return ts[0]
	}
	return app("and", ts...)
}

func (c *Context) Or(ts ...smt.Term) smt.Term {
	switch len(ts) {
	case 0:
		return c.Bool(false)
	case 1:
		return ts[0]
	}
	return app("or", ts...)
}

func (c *Context) Implies(l, r smt.Term) smt.Term { return app("=>", l, r) }
func (c *Context) Eq(l, r smt.Term) smt.Term { return app("=", l, r) }
func (c *Context) Ne(l, r smt.Term) smt.Term { return app("distinct", l, r) }
func (c *Context) Lt(l, r smt.Term) smt.Term { return app("<", l, r) }
func (c *Context) Le(l, r smt.Term) smt.Term { return app("<=", l, r) }
func (c *Context) Gt(l, r smt.Term) smt.Term { return app(">", l, r) }
func (c *Context) Ge(l, r smt.Term) smt.Term { return app(">=", l, r) }
func (c *Context) Add(l, r smt.Term) smt.Term { return app("+", l, r) }
func (c *Context) Sub(l, r smt.Term) smt.Term { return app("-", l, r) }
func (c *Context) Mul(l, r smt.Term) smt.Term { return app("*", l, r) }
func (c *Context) Div(l, r smt.Term) smt.Term { return app("div", l, r) }
func (c *Context) Neg(t smt.Term) smt.Term { return app("-", t) }

func (c *Context) Forall(bound []smt.Term, body smt.Term) smt.Term {
	return c.quantifier("forall", bound, body)
}

func (c *Context) Exists(bound []smt.Term, body smt.Term) smt.Term {
	return c.quantifier("exists", bound, body)
}

func (c *Context) quantifier(kind string, bound []smt.Term, body smt.Term) smt.Term {
	if len(bound) == 0 {
		return body
	}
	c.mu.Lock()
	vars := sexp.EmptyList()
	for _, b := range bound {
		name := expr(b)
		c.bound[unquote(text(b))] = true
		vars.Append(sexp.NewList([]sexp.SExp{name, sexp.NewSymbol("Int")}))
	}
	c.mu.Unlock()
	return term{sexp.NewList([]sexp.SExp{sexp.NewSymbol(kind), vars, expr(body)})}
}

func unquote(sym string) string {
	if len(sym) >= 2 && sym[0] == '|' && sym[len(sym)-1] == '|' {
		return sym[1 : len(sym)-1]
	}
	return sym
}

func (c *Context) Apply(fn string, args ...smt.Term) smt.Term {
	c.mu.Lock()
	if _, ok := c.funcs[fn]; !ok {
		c.order = append(c.order, fn)
	}
	c.funcs[fn] = len(args)
	c.mu.Unlock()
	if len(args) == 0 {
		return symbol(quote(fn))
	}
	return app(quote(fn), args...)
}

func (c *Context) NewSolver() smt.Solver {
	return &Solver{ctx: c}
}

// Close releases the context. Solvers created from it stop accepting checks.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// declarations returns the declare-const and declare-fun commands for every
// free constant and uninterpreted function built so far.
func (c *Context) declarations() []sexp.SExp {
	c.mu.Lock()
	defer c.mu.Unlock()
	intSort := sexp.NewSymbol("Int")
	var out []sexp.SExp
	for _, name := range c.consts {
		if c.bound[name] {
			continue
		}
		out = append(out, sexp.NewList([]sexp.SExp{
			sexp.NewSymbol("declare-const"),
			sexp.NewSymbol(quote(name)),
			intSort,
		}))
	}
	for _, fn := range c.order {
		domain := sexp.EmptyList()
		for i := 0; i < c.funcs[fn]; i++ {
			domain.Append(intSort)
		}
		out = append(out, sexp.NewList([]sexp.SExp{
			sexp.NewSymbol("declare-fun"),
			sexp.NewSymbol(quote(fn)),
			domain,
			intSort,
		}))
	}
	return out
}
