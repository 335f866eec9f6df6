// Package smt describes the solver capability used to decide verification
// conditions, and keeps the registry of available solver backends.
//
// A backend provides a Context, a term factory over integers and booleans,
// and Solvers created from it. Every verification run opens its own
// Context and closes it when done; no solver state is shared between runs.
package smt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Term is an opaque solver term.
type Term interface {
	String() string
}

// Context builds terms and solvers for one verification run.
type Context interface {
	IntConst(name string) Term
	Int(v int64) Term
	Bool(v bool) Term

	Not(t Term) Term
	And(ts ...Term) Term
	Or(ts ...Term) Term
	Implies(l, r Term) Term

	Eq(l, r Term) Term
	Ne(l, r Term) Term
	Lt(l, r Term) Term
	Le(l, r Term) Term
	Gt(l, r Term) Term
	Ge(l, r Term) Term

	Add(l, r Term) Term
	Sub(l, r Term) Term
	Mul(l, r Term) Term
	Div(l, r Term) Term
	Neg(t Term) Term

	// Forall and Exists quantify over bound constants created by IntConst.
	Forall(bound []Term, body Term) Term
	Exists(bound []Term, body Term) Term

	// Apply applies the uninterpreted function fn : Int^len(args) -> Int.
	Apply(fn string, args ...Term) Term

	NewSolver() Solver
	Close() error
}

// Solver accumulates assertions and checks their satisfiability.
type Solver interface {
	Add(t Term)
	// Check decides the asserted formulas. A deadline on ctx that expires
	// before the solver answers yields Unknown, not an error.
	Check(ctx context.Context) (Status, error)
	// Model returns the assignment found by the last Sat check.
	Model() (*Model, error)
}

// Status is the answer of a satisfiability check.
type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// ParseStatus maps a solver answer line to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	case "unknown", "timeout":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unexpected solver answer %q", s)
	}
}

// Assignment is one constant of a model.
type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Model is a counterexample: the values a solver chose for the constants
// of a satisfiable formula.
type Model struct {
	Assignments []Assignment `json:"assignments"`
}

// NewModel returns a model with assignments sorted by name.
func NewModel(assignments []Assignment) *Model {
	sorted := append([]Assignment(nil), assignments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Model{Assignments: sorted}
}

// Lookup returns the value assigned to name.
func (m *Model) Lookup(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, a := range m.Assignments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (m *Model) String() string {
	if m == nil {
		return ""
	}
	parts := make([]string, len(m.Assignments))
	for i, a := range m.Assignments {
		parts[i] = a.Name + " = " + a.Value
	}
	return strings.Join(parts, ", ")
}

// Options configures a backend.
type Options struct {
	// SolverPath is the solver executable for process backends.
	SolverPath string
	// Args are extra solver arguments.
	Args []string
	// Timeout bounds each Check; zero means no limit besides ctx.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Factory opens a Context for one verification run.
type Factory func(opts Options) (Context, error)

var (
	mu       sync.RWMutex
	backends = make(map[string]Factory)
)

// Register makes a backend available by name. It panics when name is
// registered twice.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := backends[name]; dup {
		panic("smt: Register called twice for backend " + name)
	}
	backends[name] = f
}

// Open opens a Context on the named backend.
func Open(name string, opts Options) (Context, error) {
	mu.RLock()
	f, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("smt: unknown backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return f(opts)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
