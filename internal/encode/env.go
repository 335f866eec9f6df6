package encode

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/hoare/internal/logic"
	"github.com/gnolang/hoare/internal/smt"
)

var (
	// ErrArrayNotImplemented reports an int[] parameter, return or local.
	ErrArrayNotImplemented = errors.New("int[] variables are not implemented")
	// ErrUnsupportedType reports a quantifier over a non-int variable.
	ErrUnsupportedType = errors.New("unsupported variable type")
)

type binding struct {
	term  smt.Term
	bound bool
}

// Env maps program names to solver terms. Scopes chain to their parent;
// extending an Env never changes it.
type Env struct {
	vars   map[string]binding
	parent *Env
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]binding)}
}

// With returns a child of e in which name maps to t.
func (e *Env) With(name string, t smt.Term) *Env {
	return e.child(name, binding{term: t})
}

// withBound is With for a quantifier-bound variable.
func (e *Env) withBound(name string, t smt.Term) *Env {
	return e.child(name, binding{term: t, bound: true})
}

func (e *Env) child(name string, b binding) *Env {
	return &Env{vars: map[string]binding{name: b}, parent: e}
}

// Lookup returns the term bound to name in the innermost scope.
func (e *Env) Lookup(name string) (smt.Term, bool) {
	b, ok := e.lookup(name)
	return b.term, ok
}

func (e *Env) lookup(name string) (binding, bool) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.vars[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// isBound reports whether name refers to a quantifier-bound variable.
func (e *Env) isBound(name string) bool {
	b, ok := e.lookup(name)
	return ok && b.bound
}

// Names returns every visible name, sorted.
func (e *Env) Names() []string {
	seen := make(map[string]struct{})
	for s := e; s != nil; s = s.parent {
		for k := range s.vars {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (e *Env) String() string {
	names := e.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		t, _ := e.Lookup(n)
		parts[i] = n + ": " + t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// BuildEnvironment declares one integer constant for every parameter,
// return and local of fn.
func BuildEnvironment(ctx smt.Context, fn *logic.Function) (*Env, error) {
	env := NewEnv()
	groups := []struct {
		kind   string
		params []logic.Param
	}{
		{"parameter", fn.Params},
		{"return", fn.Returns},
		{"local", fn.Locals},
	}
	for _, g := range groups {
		for _, p := range g.params {
			if p.Type != logic.Int {
				return nil, fmt.Errorf("%w: %s %s of %s", ErrArrayNotImplemented, g.kind, p.Name, fn.Name)
			}
			env.vars[p.Name] = binding{term: ctx.IntConst(p.Name)}
		}
	}
	return env, nil
}
