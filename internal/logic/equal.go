package logic

import (
	"fmt"
	"sort"
	"strings"
)

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expr) bool {
	switch left := a.(type) {
	case NumExpr:
		right, ok := b.(NumExpr)
		return ok && left.Value == right.Value
	case VarExpr:
		right, ok := b.(VarExpr)
		return ok && left.Name == right.Name
	case NegExpr:
		right, ok := b.(NegExpr)
		return ok && Equal(left.Arg, right.Arg)
	case BinaryExpr:
		right, ok := b.(BinaryExpr)
		if !ok || left.Op != right.Op {
			return false
		}
		return Equal(left.Left, right.Left) && Equal(left.Right, right.Right)
	case CallExpr:
		right, ok := b.(CallExpr)
		return ok && left.Name == right.Name && equalArgs(left.Args, right.Args)
	case IndexExpr:
		right, ok := b.(IndexExpr)
		return ok && left.Array == right.Array && Equal(left.Index, right.Index)
	default:
		panic(fmt.Sprintf("logic: unknown expression %T", a))
	}
}

func equalArgs(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// EqualPred reports whether two predicates are structurally identical.
func EqualPred(a, b Pred) bool {
	switch left := a.(type) {
	case TruePred:
		_, ok := b.(TruePred)
		return ok
	case FalsePred:
		_, ok := b.(FalsePred)
		return ok
	case ComparePred:
		right, ok := b.(ComparePred)
		return ok && left.Op == right.Op && Equal(left.Left, right.Left) && Equal(left.Right, right.Right)
	case NotPred:
		right, ok := b.(NotPred)
		return ok && EqualPred(left.P, right.P)
	case AndPred:
		right, ok := b.(AndPred)
		return ok && EqualPred(left.Left, right.Left) && EqualPred(left.Right, right.Right)
	case OrPred:
		right, ok := b.(OrPred)
		return ok && EqualPred(left.Left, right.Left) && EqualPred(left.Right, right.Right)
	case ImpliesPred:
		right, ok := b.(ImpliesPred)
		return ok && EqualPred(left.Left, right.Left) && EqualPred(left.Right, right.Right)
	case ParenPred:
		right, ok := b.(ParenPred)
		return ok && EqualPred(left.P, right.P)
	case QuantPred:
		right, ok := b.(QuantPred)
		return ok && left.Kind == right.Kind && left.Var == right.Var &&
			left.Type == right.Type && EqualPred(left.Body, right.Body)
	case FormulaRef:
		right, ok := b.(FormulaRef)
		return ok && left.Name == right.Name && equalArgs(left.Args, right.Args)
	default:
		panic(fmt.Sprintf("logic: unknown predicate %T", a))
	}
}

// Key is the canonical structural key of an expression. Two expressions
// have the same key iff they are equal up to the order of the operands
// of + and *. Names are length-prefixed so distinct trees never collide.
type Key string

// KeyOf computes the canonical key of e.
func KeyOf(e Expr) Key {
	var b strings.Builder
	writeKey(&b, e)
	return Key(b.String())
}

func writeKey(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case NumExpr:
		fmt.Fprintf(b, "n%d", e.Value)
	case VarExpr:
		writeName(b, 'v', e.Name)
	case NegExpr:
		b.WriteString("(neg ")
		writeKey(b, e.Arg)
		b.WriteByte(')')
	case BinaryExpr:
		left, right := string(KeyOf(e.Left)), string(KeyOf(e.Right))
		if e.Op.Commutative() {
			ops := []string{left, right}
			sort.Strings(ops)
			left, right = ops[0], ops[1]
		}
		fmt.Fprintf(b, "(%s %s %s)", e.Op, left, right)
	case CallExpr:
		b.WriteString("(call ")
		writeName(b, 'f', e.Name)
		for _, a := range e.Args {
			b.WriteByte(' ')
			writeKey(b, a)
		}
		b.WriteByte(')')
	case IndexExpr:
		b.WriteString("(idx ")
		writeName(b, 'a', e.Array)
		b.WriteByte(' ')
		writeKey(b, e.Index)
		b.WriteByte(')')
	default:
		panic(fmt.Sprintf("logic: unknown expression %T", e))
	}
}

func writeName(b *strings.Builder, tag byte, name string) {
	fmt.Fprintf(b, "%c%d:%s", tag, len(name), name)
}
