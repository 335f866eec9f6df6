package logic

import (
	"errors"
	"fmt"
)

// MaxDepth bounds the nesting depth of predicates and expressions
// accepted by the recursive walkers built on this package.
const MaxDepth = 2048

// ErrTooDeep is returned by CheckDepth for trees nested beyond MaxDepth.
var ErrTooDeep = errors.New("formula nested too deeply")

// Mentions reports whether name occurs in e, as a variable or as the
// array of an element read.
func Mentions(e Expr, name string) bool {
	switch e := e.(type) {
	case NumExpr:
		return false
	case VarExpr:
		return e.Name == name
	case NegExpr:
		return Mentions(e.Arg, name)
	case BinaryExpr:
		return Mentions(e.Left, name) || Mentions(e.Right, name)
	case CallExpr:
		return anyMentions(e.Args, name)
	case IndexExpr:
		return e.Array == name || Mentions(e.Index, name)
	default:
		panic(fmt.Sprintf("logic: unknown expression %T", e))
	}
}

func anyMentions(args []Expr, name string) bool {
	for _, a := range args {
		if Mentions(a, name) {
			return true
		}
	}
	return false
}

// OccursIn reports whether name occurs anywhere in p, bound or free.
func OccursIn(p Pred, name string) bool {
	found := false
	walkPred(p, func(q Pred) {
		switch q := q.(type) {
		case ComparePred:
			found = found || Mentions(q.Left, name) || Mentions(q.Right, name)
		case QuantPred:
			found = found || q.Var == name
		case FormulaRef:
			found = found || anyMentions(q.Args, name)
		}
	})
	return found
}

// ContainsCall reports whether p calls the function fn anywhere.
func ContainsCall(p Pred, fn string) bool {
	found := false
	walkPred(p, func(q Pred) {
		switch q := q.(type) {
		case ComparePred:
			found = found || exprCalls(q.Left, fn) || exprCalls(q.Right, fn)
		case FormulaRef:
			for _, a := range q.Args {
				found = found || exprCalls(a, fn)
			}
		}
	})
	return found
}

func exprCalls(e Expr, fn string) bool {
	switch e := e.(type) {
	case NumExpr, VarExpr:
		return false
	case NegExpr:
		return exprCalls(e.Arg, fn)
	case BinaryExpr:
		return exprCalls(e.Left, fn) || exprCalls(e.Right, fn)
	case CallExpr:
		if e.Name == fn {
			return true
		}
		for _, a := range e.Args {
			if exprCalls(a, fn) {
				return true
			}
		}
		return false
	case IndexExpr:
		return exprCalls(e.Index, fn)
	default:
		panic(fmt.Sprintf("logic: unknown expression %T", e))
	}
}

// walkPred calls visit on p and every predicate nested in it.
func walkPred(p Pred, visit func(Pred)) {
	visit(p)
	switch p := p.(type) {
	case NotPred:
		walkPred(p.P, visit)
	case AndPred:
		walkPred(p.Left, visit)
		walkPred(p.Right, visit)
	case OrPred:
		walkPred(p.Left, visit)
		walkPred(p.Right, visit)
	case ImpliesPred:
		walkPred(p.Left, visit)
		walkPred(p.Right, visit)
	case ParenPred:
		walkPred(p.P, visit)
	case QuantPred:
		walkPred(p.Body, visit)
	}
}

// CheckDepth returns ErrTooDeep when p nests deeper than MaxDepth.
func CheckDepth(p Pred) error {
	if predDepth(p, 0) > MaxDepth {
		return fmt.Errorf("%w (limit %d)", ErrTooDeep, MaxDepth)
	}
	return nil
}

// predDepth stops descending once the limit is exceeded, so the walk
// itself stays bounded.
func predDepth(p Pred, depth int) int {
	if depth > MaxDepth {
		return depth
	}
	switch p := p.(type) {
	case ComparePred:
		return max(exprDepth(p.Left, depth+1), exprDepth(p.Right, depth+1))
	case NotPred:
		return predDepth(p.P, depth+1)
	case AndPred:
		return max(predDepth(p.Left, depth+1), predDepth(p.Right, depth+1))
	case OrPred:
		return max(predDepth(p.Left, depth+1), predDepth(p.Right, depth+1))
	case ImpliesPred:
		return max(predDepth(p.Left, depth+1), predDepth(p.Right, depth+1))
	case ParenPred:
		return predDepth(p.P, depth+1)
	case QuantPred:
		return predDepth(p.Body, depth+1)
	case FormulaRef:
		d := depth + 1
		for _, a := range p.Args {
			d = max(d, exprDepth(a, depth+1))
		}
		return d
	default:
		return depth + 1
	}
}

func exprDepth(e Expr, depth int) int {
	if depth > MaxDepth {
		return depth
	}
	switch e := e.(type) {
	case NegExpr:
		return exprDepth(e.Arg, depth+1)
	case BinaryExpr:
		return max(exprDepth(e.Left, depth+1), exprDepth(e.Right, depth+1))
	case CallExpr:
		d := depth + 1
		for _, a := range e.Args {
			d = max(d, exprDepth(a, depth+1))
		}
		return d
	case IndexExpr:
		return exprDepth(e.Index, depth+1)
	default:
		return depth + 1
	}
}
