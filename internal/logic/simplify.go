package logic

import (
	"fmt"
	"math"
)

// Simplify rewrites p with boolean identities, constant folding and
// structural self-comparison. It is pure and idempotent. Parenthesis
// wrappers are dropped.
func Simplify(p Pred) Pred {
	switch p := p.(type) {
	case TruePred, FalsePred:
		return p

	case ComparePred:
		return simplifyCompare(SimplifyExpr(p.Left), p.Op, SimplifyExpr(p.Right))

	case ParenPred:
		return Simplify(p.P)

	case NotPred:
		return negate(Simplify(p.P))

	case AndPred:
		left, right := Simplify(p.Left), Simplify(p.Right)
		if isFalse(left) || isFalse(right) {
			return FalsePred{}
		}
		if isTrue(left) {
			return right
		}
		if isTrue(right) {
			return left
		}
		return AndPred{Left: left, Right: right}

	case OrPred:
		left, right := Simplify(p.Left), Simplify(p.Right)
		if isTrue(left) || isTrue(right) {
			return TruePred{}
		}
		if isFalse(left) {
			return right
		}
		if isFalse(right) {
			return left
		}
		return OrPred{Left: left, Right: right}

	case ImpliesPred:
		left, right := Simplify(p.Left), Simplify(p.Right)
		switch {
		case isTrue(left):
			return right
		case isFalse(left), isTrue(right):
			return TruePred{}
		case isFalse(right):
			return negate(left)
		}
		return ImpliesPred{Left: left, Right: right}

	case QuantPred:
		body := Simplify(p.Body)
		// the integer domain is never empty
		if isTrue(body) || isFalse(body) {
			return body
		}
		return QuantPred{Kind: p.Kind, Var: p.Var, Type: p.Type, Body: body}

	case FormulaRef:
		return FormulaRef{Name: p.Name, Args: simplifyArgs(p.Args)}

	default:
		panic(fmt.Sprintf("logic: unknown predicate %T", p))
	}
}

// negate builds the negation of an already simplified predicate.
func negate(p Pred) Pred {
	switch p := p.(type) {
	case TruePred:
		return FalsePred{}
	case FalsePred:
		return TruePred{}
	case NotPred:
		return p.P
	}
	return NotPred{P: p}
}

func simplifyCompare(left Expr, op CmpOp, right Expr) Pred {
	l, lok := left.(NumExpr)
	r, rok := right.(NumExpr)
	if lok && rok {
		return boolPred(compareInts(l.Value, op, r.Value))
	}
	if Equal(left, right) {
		switch op {
		case OpEq, OpLe, OpGe:
			return TruePred{}
		case OpNe, OpLt, OpGt:
			return FalsePred{}
		}
	}
	return ComparePred{Left: left, Op: op, Right: right}
}

func compareInts(l int64, op CmpOp, r int64) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpGe:
		return l >= r
	default:
		panic(fmt.Sprintf("logic: unknown comparison %v", op))
	}
}

func boolPred(v bool) Pred {
	if v {
		return TruePred{}
	}
	return FalsePred{}
}

func isTrue(p Pred) bool {
	_, ok := p.(TruePred)
	return ok
}

func isFalse(p Pred) bool {
	_, ok := p.(FalsePred)
	return ok
}

// SimplifyExpr folds literal arithmetic and removes neutral operands.
// Division folds only for a non-zero divisor, with the Euclidean
// semantics of integer division in SMT-LIB. Folding that would overflow
// int64 is skipped.
func SimplifyExpr(e Expr) Expr {
	switch e := e.(type) {
	case NumExpr, VarExpr:
		return e

	case NegExpr:
		arg := SimplifyExpr(e.Arg)
		switch a := arg.(type) {
		case NumExpr:
			if a.Value != math.MinInt64 {
				return NumExpr{Value: -a.Value}
			}
		case NegExpr:
			return a.Arg
		}
		return NegExpr{Arg: arg}

	case BinaryExpr:
		return simplifyBinary(e.Op, SimplifyExpr(e.Left), SimplifyExpr(e.Right))

	case CallExpr:
		return CallExpr{Name: e.Name, Args: simplifyArgs(e.Args)}

	case IndexExpr:
		return IndexExpr{Array: e.Array, Index: SimplifyExpr(e.Index)}

	default:
		panic(fmt.Sprintf("logic: unknown expression %T", e))
	}
}

func simplifyArgs(args []Expr) []Expr {
	if args == nil {
		return nil
	}
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = SimplifyExpr(a)
	}
	return out
}

func simplifyBinary(op ArithOp, left, right Expr) Expr {
	l, lok := left.(NumExpr)
	r, rok := right.(NumExpr)
	if lok && rok {
		if v, ok := foldInts(op, l.Value, r.Value); ok {
			return NumExpr{Value: v}
		}
		return BinaryExpr{Op: op, Left: left, Right: right}
	}

	switch op {
	case OpAdd:
		if lok && l.Value == 0 {
			return right
		}
		if rok && r.Value == 0 {
			return left
		}
	case OpSub:
		if rok && r.Value == 0 {
			return left
		}
	case OpMul:
		if (lok && l.Value == 0) || (rok && r.Value == 0) {
			return NumExpr{Value: 0}
		}
		if lok && l.Value == 1 {
			return right
		}
		if rok && r.Value == 1 {
			return left
		}
	case OpDiv:
		if rok && r.Value == 1 {
			return left
		}
	}
	return BinaryExpr{Op: op, Left: left, Right: right}
}

func foldInts(op ArithOp, l, r int64) (int64, bool) {
	switch op {
	case OpAdd:
		v := l + r
		if (v > l) != (r > 0) {
			return 0, false
		}
		return v, true
	case OpSub:
		v := l - r
		if (v < l) != (r > 0) {
			return 0, false
		}
		return v, true
	case OpMul:
		if l == 0 || r == 0 {
			return 0, true
		}
		v := l * r
		if v/r != l || (l == -1 && r == math.MinInt64) || (r == -1 && l == math.MinInt64) {
			return 0, false
		}
		return v, true
	case OpDiv:
		if r == 0 || (l == math.MinInt64 && r == -1) {
			return 0, false
		}
		return euclidDiv(l, r), true
	default:
		return 0, false
	}
}

// euclidDiv divides so that the remainder is never negative.
func euclidDiv(l, r int64) int64 {
	q := l / r
	if l%r < 0 {
		if r > 0 {
			q--
		} else {
			q++
		}
	}
	return q
}
