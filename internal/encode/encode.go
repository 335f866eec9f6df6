// Package encode translates predicates into solver terms.
//
// Array element reads and function call results have no direct solver
// counterpart. They are modeled by witness constants, memoized per run,
// and the contracts of called functions are asserted about those
// witnesses as axioms.
package encode

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/logic"
	"github.com/gnolang/hoare/internal/smt"
	"github.com/gnolang/hoare/internal/wp"
)

var (
	// ErrUnknownIdentifier reports a variable missing from the environment.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrUnsupportedRecursion reports a recursive contract whose shape
	// cannot be axiomatized.
	ErrUnsupportedRecursion = errors.New("unsupported recursive contract")
	// ErrCallArity reports a call whose argument or result count does not
	// match the callee.
	ErrCallArity = errors.New("call does not match callee signature")
)

type cellKey struct {
	array string
	index logic.Key
}

// Encoder converts predicates of one verification run. Axioms about
// called functions go to the solver given to New.
type Encoder struct {
	ctx    smt.Context
	solver smt.Solver
	mod    *logic.Module
	logger *zap.Logger

	cells       map[cellKey]smt.Term
	calls       map[string]smt.Term
	names       map[string]bool
	axiomatized map[string]bool
	inProgress  map[string]bool
	fresh       int
}

// New returns an Encoder. mod resolves called functions and formula
// references; it may be nil.
func New(ctx smt.Context, solver smt.Solver, mod *logic.Module, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		ctx:         ctx,
		solver:      solver,
		mod:         mod,
		logger:      logger,
		cells:       make(map[cellKey]smt.Term),
		calls:       make(map[string]smt.Term),
		names:       make(map[string]bool),
		axiomatized: make(map[string]bool),
		inProgress:  make(map[string]bool),
	}
}

// Pred encodes p as a boolean term under env.
func (e *Encoder) Pred(p logic.Pred, env *Env) (smt.Term, error) {
	if err := logic.CheckDepth(p); err != nil {
		return nil, err
	}
	return e.pred(p, env)
}

// Expr encodes x as an integer term under env.
func (e *Encoder) Expr(x logic.Expr, env *Env) (smt.Term, error) {
	return e.expr(x, env)
}

func (e *Encoder) pred(p logic.Pred, env *Env) (smt.Term, error) {
	switch p := p.(type) {
	case logic.TruePred:
		return e.ctx.Bool(true), nil
	case logic.FalsePred:
		return e.ctx.Bool(false), nil

	case logic.ComparePred:
		return e.compare(p, env)

	case logic.NotPred:
		t, err := e.pred(p.P, env)
		if err != nil {
			return nil, err
		}
		return e.ctx.Not(t), nil

	case logic.AndPred:
		l, r, err := e.predPair(p.Left, p.Right, env)
		if err != nil {
			return nil, err
		}
		return e.ctx.And(l, r), nil

	case logic.OrPred:
		l, r, err := e.predPair(p.Left, p.Right, env)
		if err != nil {
			return nil, err
		}
		return e.ctx.Or(l, r), nil

	case logic.ImpliesPred:
		l, r, err := e.predPair(p.Left, p.Right, env)
		if err != nil {
			return nil, err
		}
		return e.ctx.Implies(l, r), nil

	case logic.ParenPred:
		return e.pred(p.P, env)

	case logic.QuantPred:
		return e.quantifier(p, env)

	case logic.FormulaRef:
		expanded, err := wp.Expand(p, e.mod)
		if err != nil {
			return nil, err
		}
		return e.Pred(expanded, env)

	default:
		return nil, fmt.Errorf("%w: predicate %T", wp.ErrUnknownNode, p)
	}
}

func (e *Encoder) predPair(l, r logic.Pred, env *Env) (smt.Term, smt.Term, error) {
	left, err := e.pred(l, env)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.pred(r, env)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (e *Encoder) compare(p logic.ComparePred, env *Env) (smt.Term, error) {
	l, r, err := e.exprPair(p.Left, p.Right, env)
	if err != nil {
		return nil, err
	}
	switch p.Op {
	case logic.OpEq:
		return e.ctx.Eq(l, r), nil
	case logic.OpNe:
		return e.ctx.Ne(l, r), nil
	case logic.OpLt:
		return e.ctx.Lt(l, r), nil
	case logic.OpLe:
		return e.ctx.Le(l, r), nil
	case logic.OpGt:
		return e.ctx.Gt(l, r), nil
	case logic.OpGe:
		return e.ctx.Ge(l, r), nil
	default:
		return nil, fmt.Errorf("%w: comparison %v", wp.ErrUnknownNode, p.Op)
	}
}

// quantifier binds the variable to a fresh constant, so it never clashes
// with a free constant of the same name.
func (e *Encoder) quantifier(p logic.QuantPred, env *Env) (smt.Term, error) {
	if p.Type != logic.Int {
		return nil, fmt.Errorf("%w: %s %s in %s", ErrUnsupportedType, p.Var, p.Type, p.Kind)
	}
	v := e.ctx.IntConst(e.freshName(p.Var))
	body, err := e.pred(p.Body, env.withBound(p.Var, v))
	if err != nil {
		return nil, err
	}
	if p.Kind == logic.Exists {
		return e.ctx.Exists([]smt.Term{v}, body), nil
	}
	return e.ctx.Forall([]smt.Term{v}, body), nil
}

func (e *Encoder) expr(x logic.Expr, env *Env) (smt.Term, error) {
	switch x := x.(type) {
	case logic.NumExpr:
		return e.ctx.Int(x.Value), nil

	case logic.VarExpr:
		t, ok := env.Lookup(x.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, x.Name)
		}
		return t, nil

	case logic.NegExpr:
		t, err := e.expr(x.Arg, env)
		if err != nil {
			return nil, err
		}
		return e.ctx.Neg(t), nil

	case logic.BinaryExpr:
		l, r, err := e.exprPair(x.Left, x.Right, env)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case logic.OpAdd:
			return e.ctx.Add(l, r), nil
		case logic.OpSub:
			return e.ctx.Sub(l, r), nil
		case logic.OpMul:
			return e.ctx.Mul(l, r), nil
		case logic.OpDiv:
			return e.ctx.Div(l, r), nil
		default:
			return nil, fmt.Errorf("%w: operator %v", wp.ErrUnknownNode, x.Op)
		}

	case logic.IndexExpr:
		return e.cell(x, env)

	case logic.CallExpr:
		return e.call(x, env)

	default:
		return nil, fmt.Errorf("%w: expression %T", wp.ErrUnknownNode, x)
	}
}

func (e *Encoder) exprPair(l, r logic.Expr, env *Env) (smt.Term, smt.Term, error) {
	left, err := e.expr(l, env)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.expr(r, env)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// cell returns the witness of an array element read. Reads with the same
// canonical index share one constant. A read whose index depends on a
// quantified variable cannot be a constant and becomes an application of
// the array's read function instead.
func (e *Encoder) cell(x logic.IndexExpr, env *Env) (smt.Term, error) {
	idx, err := e.expr(x.Index, env)
	if err != nil {
		return nil, err
	}
	if mentionsBound(x.Index, env) {
		return e.ctx.Apply(x.Array+"[]", idx), nil
	}

	key := cellKey{array: x.Array, index: logic.KeyOf(x.Index)}
	if t, ok := e.cells[key]; ok {
		return t, nil
	}
	t := e.ctx.IntConst(e.uniqueName(x.String()))
	e.cells[key] = t
	return t, nil
}

func (e *Encoder) call(x logic.CallExpr, env *Env) (smt.Term, error) {
	args := make([]smt.Term, len(x.Args))
	for i, a := range x.Args {
		t, err := e.expr(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}

	var fn *logic.Function
	if e.mod != nil {
		fn, _ = e.mod.Function(x.Name)
	}
	if fn != nil {
		if len(fn.Params) != len(args) {
			return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrCallArity, fn.Name, len(fn.Params), len(args))
		}
		if logic.ContainsCall(logic.Conjoin(fn.Ensures), fn.Name) {
			if err := e.axiomatizeRecursive(fn); err != nil {
				return nil, err
			}
			return e.ctx.Apply(fn.Name, args...), nil
		}
		if len(fn.Returns) != 1 {
			return nil, fmt.Errorf("%w: %s has %d results, want 1", ErrCallArity, fn.Name, len(fn.Returns))
		}
	}

	if anyMentionsBound(x.Args, env) {
		if fn != nil {
			if err := e.axiomatizeUniversal(fn); err != nil {
				return nil, err
			}
		}
		return e.ctx.Apply(x.Name, args...), nil
	}

	key := callKey(x.Name, args)
	if w, ok := e.calls[key]; ok {
		return w, nil
	}
	w := e.ctx.IntConst(e.uniqueName(key))
	e.calls[key] = w
	if fn != nil {
		if err := e.axiomatizeCall(fn, args, w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func callKey(name string, args []smt.Term) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// axiomatizeCall asserts the postcondition of fn with its parameters bound
// to args and its result bound to the witness w.
func (e *Encoder) axiomatizeCall(fn *logic.Function, args []smt.Term, w smt.Term) error {
	if len(fn.Ensures) == 0 || e.inProgress[fn.Name] {
		return nil
	}
	e.inProgress[fn.Name] = true
	defer delete(e.inProgress, fn.Name)

	env := NewEnv()
	for i, p := range fn.Params {
		env = env.With(p.Name, args[i])
	}
	env = env.With(fn.Returns[0].Name, w)

	axiom, err := e.contract(fn, env)
	if err != nil {
		return err
	}
	e.solver.Add(axiom)
	e.logger.Debug("call axiom",
		zap.String("function", fn.Name),
		zap.Stringer("witness", w))
	return nil
}

// axiomatizeUniversal asserts, once per function, the postcondition of fn
// for all arguments, with the result written as an application of fn.
func (e *Encoder) axiomatizeUniversal(fn *logic.Function) error {
	if len(fn.Ensures) == 0 || e.axiomatized[fn.Name] || e.inProgress[fn.Name] {
		return nil
	}
	e.axiomatized[fn.Name] = true
	e.inProgress[fn.Name] = true
	defer delete(e.inProgress, fn.Name)

	env := NewEnv()
	bound := make([]smt.Term, len(fn.Params))
	for i, p := range fn.Params {
		bound[i] = e.ctx.IntConst(e.freshName(p.Name))
		env = env.withBound(p.Name, bound[i])
	}
	env = env.With(fn.Returns[0].Name, e.ctx.Apply(fn.Name, bound...))

	body, err := e.contract(fn, env)
	if err != nil {
		return err
	}
	e.solver.Add(e.ctx.Forall(bound, body))
	e.logger.Debug("universal call axiom", zap.String("function", fn.Name))
	return nil
}

// axiomatizeRecursive asserts, once per function, the base and step axioms
// of a function whose contract refers to itself:
//
//	forall n. n == 0 ==> f(n) == base
//	forall n. n > 0  ==> f(n) == n * f(n - 1)
func (e *Encoder) axiomatizeRecursive(fn *logic.Function) error {
	if e.axiomatized[fn.Name] {
		return nil
	}
	if len(fn.Params) != 1 || len(fn.Returns) != 1 ||
		fn.Params[0].Type != logic.Int || fn.Returns[0].Type != logic.Int {
		return fmt.Errorf("%w: %s must take and return exactly one int", ErrUnsupportedRecursion, fn.Name)
	}
	e.axiomatized[fn.Name] = true

	base, ok := recursionBase(logic.Conjoin(fn.Ensures), fn.Params[0].Name, fn.Returns[0].Name)
	if !ok {
		base = 1
	}

	n := e.ctx.IntConst(e.freshName(fn.Params[0].Name))
	zero, one := e.ctx.Int(0), e.ctx.Int(1)
	f := func(arg smt.Term) smt.Term { return e.ctx.Apply(fn.Name, arg) }

	e.solver.Add(e.ctx.Forall([]smt.Term{n},
		e.ctx.Implies(e.ctx.Eq(n, zero), e.ctx.Eq(f(n), e.ctx.Int(base)))))
	e.solver.Add(e.ctx.Forall([]smt.Term{n},
		e.ctx.Implies(e.ctx.Gt(n, zero), e.ctx.Eq(f(n), e.ctx.Mul(n, f(e.ctx.Sub(n, one)))))))

	e.logger.Debug("recursive axioms",
		zap.String("function", fn.Name),
		zap.Int64("base", base))
	return nil
}

func (e *Encoder) contract(fn *logic.Function, env *Env) (smt.Term, error) {
	post, err := wp.Expand(logic.Conjoin(fn.Ensures), e.mod)
	if err != nil {
		return nil, fmt.Errorf("postcondition of %s: %w", fn.Name, err)
	}
	t, err := e.Pred(post, env)
	if err != nil {
		return nil, fmt.Errorf("postcondition of %s: %w", fn.Name, err)
	}
	return t, nil
}

// recursionBase finds a disjunct of the form param == 0 && ret == K and
// returns K.
func recursionBase(p logic.Pred, param, ret string) (int64, bool) {
	switch p := p.(type) {
	case logic.ParenPred:
		return recursionBase(p.P, param, ret)
	case logic.OrPred:
		if k, ok := recursionBase(p.Left, param, ret); ok {
			return k, true
		}
		return recursionBase(p.Right, param, ret)
	case logic.AndPred:
		if k, ok := baseCase(conjuncts(p), param, ret); ok {
			return k, true
		}
		if k, ok := recursionBase(p.Left, param, ret); ok {
			return k, true
		}
		return recursionBase(p.Right, param, ret)
	}
	return 0, false
}

func baseCase(preds []logic.Pred, param, ret string) (int64, bool) {
	var zero, found bool
	var k int64
	for _, p := range preds {
		if v, ok := varEqualsNum(p, param); ok && v == 0 {
			zero = true
		}
		if v, ok := varEqualsNum(p, ret); ok {
			k, found = v, true
		}
	}
	return k, zero && found
}

func conjuncts(p logic.Pred) []logic.Pred {
	switch p := p.(type) {
	case logic.AndPred:
		return append(conjuncts(p.Left), conjuncts(p.Right)...)
	case logic.ParenPred:
		return conjuncts(p.P)
	}
	return []logic.Pred{p}
}

// varEqualsNum matches name == K and K == name.
func varEqualsNum(p logic.Pred, name string) (int64, bool) {
	cmp, ok := p.(logic.ComparePred)
	if !ok || cmp.Op != logic.OpEq {
		return 0, false
	}
	l, r := cmp.Left, cmp.Right
	if _, ok := r.(logic.VarExpr); ok {
		l, r = r, l
	}
	v, ok := l.(logic.VarExpr)
	if !ok || v.Name != name {
		return 0, false
	}
	n, ok := logic.SimplifyExpr(r).(logic.NumExpr)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

func mentionsBound(x logic.Expr, env *Env) bool {
	switch x := x.(type) {
	case logic.VarExpr:
		return env.isBound(x.Name)
	case logic.NegExpr:
		return mentionsBound(x.Arg, env)
	case logic.BinaryExpr:
		return mentionsBound(x.Left, env) || mentionsBound(x.Right, env)
	case logic.CallExpr:
		return anyMentionsBound(x.Args, env)
	case logic.IndexExpr:
		return mentionsBound(x.Index, env)
	}
	return false
}

func anyMentionsBound(xs []logic.Expr, env *Env) bool {
	for _, x := range xs {
		if mentionsBound(x, env) {
			return true
		}
	}
	return false
}

func (e *Encoder) freshName(base string) string {
	e.fresh++
	return fmt.Sprintf("%s!%d", base, e.fresh)
}

// uniqueName returns name, or name with a numeric suffix when a witness
// already uses it.
func (e *Encoder) uniqueName(name string) string {
	candidate := name
	for i := 1; e.names[candidate]; i++ {
		candidate = fmt.Sprintf("%s!w%d", name, i)
	}
	e.names[candidate] = true
	return candidate
}
