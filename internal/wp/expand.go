package wp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gnolang/hoare/internal/logic"
)

var (
	ErrUnknownFormula = errors.New("unknown formula")
	ErrFormulaArity   = errors.New("wrong number of formula arguments")
	ErrFormulaCycle   = errors.New("formula refers to itself")
)

// Expand replaces every formula reference in p by the body of the macro it
// names, with the macro parameters bound to the reference arguments.
func Expand(p logic.Pred, mod *logic.Module) (logic.Pred, error) {
	e := expander{mod: mod}
	return e.pred(p)
}

type expander struct {
	mod   *logic.Module
	stack []string
}

func (e *expander) pred(p logic.Pred) (logic.Pred, error) {
	switch p := p.(type) {
	case logic.TruePred, logic.FalsePred, logic.ComparePred:
		return p, nil

	case logic.NotPred:
		inner, err := e.pred(p.P)
		if err != nil {
			return nil, err
		}
		return logic.NotPred{P: inner}, nil

	case logic.AndPred:
		l, r, err := e.pair(p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return logic.AndPred{Left: l, Right: r}, nil

	case logic.OrPred:
		l, r, err := e.pair(p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return logic.OrPred{Left: l, Right: r}, nil

	case logic.ImpliesPred:
		l, r, err := e.pair(p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return logic.ImpliesPred{Left: l, Right: r}, nil

	case logic.ParenPred:
		inner, err := e.pred(p.P)
		if err != nil {
			return nil, err
		}
		return logic.ParenPred{P: inner}, nil

	case logic.QuantPred:
		body, err := e.pred(p.Body)
		if err != nil {
			return nil, err
		}
		return logic.QuantPred{Kind: p.Kind, Var: p.Var, Type: p.Type, Body: body}, nil

	case logic.FormulaRef:
		return e.ref(p)

	default:
		return nil, fmt.Errorf("%w: predicate %T", ErrUnknownNode, p)
	}
}

func (e *expander) pair(l, r logic.Pred) (logic.Pred, logic.Pred, error) {
	left, err := e.pred(l)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.pred(r)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (e *expander) ref(ref logic.FormulaRef) (logic.Pred, error) {
	if e.mod == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormula, ref.Name)
	}
	f, ok := e.mod.Formula(ref.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormula, ref.Name)
	}
	if len(f.Params) != len(ref.Args) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrFormulaArity, ref.Name, len(f.Params), len(ref.Args))
	}
	for _, name := range e.stack {
		if name == ref.Name {
			return nil, fmt.Errorf("%w: %s", ErrFormulaCycle, strings.Join(append(e.stack, ref.Name), " -> "))
		}
	}

	bindings := make(map[string]logic.Expr, len(f.Params))
	for i, param := range f.Params {
		bindings[param.Name] = ref.Args[i]
	}

	e.stack = append(e.stack, ref.Name)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	return e.pred(logic.SubstituteAll(f.Body, bindings))
}
