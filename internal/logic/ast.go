package logic

import (
	"fmt"
	"strings"
)

// Expr represents an integer-valued expression.
type Expr interface {
	isExpr()
	String() string
}

// NumExpr is an integer literal.
type NumExpr struct {
	Value int64
}

func (NumExpr) isExpr() {}
func (e NumExpr) String() string {
	return fmt.Sprintf("%d", e.Value)
}

// VarExpr is a reference to a scalar variable.
type VarExpr struct {
	Name string
}

func (VarExpr) isExpr() {}
func (e VarExpr) String() string {
	return e.Name
}

// NegExpr is unary negation.
type NegExpr struct {
	Arg Expr
}

func (NegExpr) isExpr() {}
func (e NegExpr) String() string {
	if _, ok := e.Arg.(BinaryExpr); ok {
		return "-(" + e.Arg.String() + ")"
	}
	return "-" + e.Arg.String()
}

// ArithOp represents a binary arithmetic operator.
type ArithOp int

const (
	_ ArithOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return "?"
	}
}

// Commutative reports whether operand order is irrelevant for op.
func (op ArithOp) Commutative() bool {
	return op == OpAdd || op == OpMul
}

func (op ArithOp) precedence() int {
	if op == OpMul || op == OpDiv {
		return 2
	}
	return 1
}

// BinaryExpr is a binary arithmetic expression.
type BinaryExpr struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

func (BinaryExpr) isExpr() {}
func (e BinaryExpr) String() string {
	left := e.Left.String()
	if b, ok := e.Left.(BinaryExpr); ok && b.Op.precedence() < e.Op.precedence() {
		left = "(" + left + ")"
	}
	right := e.Right.String()
	if b, ok := e.Right.(BinaryExpr); ok {
		if b.Op.precedence() < e.Op.precedence() ||
			(b.Op.precedence() == e.Op.precedence() && !e.Op.Commutative()) {
			right = "(" + right + ")"
		}
	}
	return fmt.Sprintf("%s %s %s", left, e.Op, right)
}

// CallExpr is a call to a function declared in the module.
type CallExpr struct {
	Name string
	Args []Expr
}

func (CallExpr) isExpr() {}
func (e CallExpr) String() string {
	return e.Name + "(" + joinExprs(e.Args) + ")"
}

// IndexExpr reads one element of an array variable.
type IndexExpr struct {
	Array string
	Index Expr
}

func (IndexExpr) isExpr() {}
func (e IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.Array, e.Index)
}

func joinExprs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Pred represents a logical predicate over program state.
type Pred interface {
	isPred()
	String() string
}

// TruePred is the constant true.
type TruePred struct{}

func (TruePred) isPred() {}
func (TruePred) String() string { return "true" }

// FalsePred is the constant false.
type FalsePred struct{}

func (FalsePred) isPred() {}
func (FalsePred) String() string { return "false" }

// CmpOp represents a comparison operator.
type CmpOp int

const (
	_ CmpOp = iota
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// ComparePred compares two expressions.
type ComparePred struct {
	Left  Expr
	Op    CmpOp
	Right Expr
}

func (ComparePred) isPred() {}
func (p ComparePred) String() string {
	return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
}

// NotPred is logical negation.
type NotPred struct {
	P Pred
}

func (NotPred) isPred() {}
func (p NotPred) String() string {
	switch p.P.(type) {
	case TruePred, FalsePred, NotPred, ParenPred, QuantPred, FormulaRef, ImpliesPred:
		return "!" + p.P.String()
	}
	return "!(" + p.P.String() + ")"
}

// AndPred is logical conjunction.
type AndPred struct {
	Left  Pred
	Right Pred
}

func (AndPred) isPred() {}
func (p AndPred) String() string {
	return wrapOr(p.Left) + " && " + wrapOr(p.Right)
}

func wrapOr(p Pred) string {
	if _, ok := p.(OrPred); ok {
		return "(" + p.String() + ")"
	}
	return p.String()
}

// OrPred is logical disjunction.
type OrPred struct {
	Left  Pred
	Right Pred
}

func (OrPred) isPred() {}
func (p OrPred) String() string {
	return p.Left.String() + " || " + p.Right.String()
}

// ImpliesPred is logical implication.
type ImpliesPred struct {
	Left  Pred
	Right Pred
}

func (ImpliesPred) isPred() {}
func (p ImpliesPred) String() string {
	return fmt.Sprintf("implies(%s, %s)", p.Left, p.Right)
}

// ParenPred is an explicit grouping; it carries no meaning of its own.
type ParenPred struct {
	P Pred
}

func (ParenPred) isPred() {}
func (p ParenPred) String() string {
	return "(" + p.P.String() + ")"
}

// QuantKind distinguishes universal from existential quantifiers.
type QuantKind int

const (
	_ QuantKind = iota
	Forall
	Exists
)

func (k QuantKind) String() string {
	switch k {
	case Forall:
		return "forall"
	case Exists:
		return "exists"
	default:
		return "?"
	}
}

// QuantPred binds one variable over Body.
type QuantPred struct {
	Kind QuantKind
	Var  string
	Type Type
	Body Pred
}

func (QuantPred) isPred() {}
func (p QuantPred) String() string {
	return fmt.Sprintf("%s(%s, %s)", p.Kind, p.Var, p.Body)
}

// FormulaRef instantiates a formula macro declared in the module.
type FormulaRef struct {
	Name string
	Args []Expr
}

func (FormulaRef) isPred() {}
func (p FormulaRef) String() string {
	return p.Name + "(" + joinExprs(p.Args) + ")"
}

// Helper functions to construct expressions and predicates.

func Num(v int64) Expr { return NumExpr{Value: v} }
func Var(name string) Expr { return VarExpr{Name: name} }
func Neg(e Expr) Expr { return NegExpr{Arg: e} }
func Add(l, r Expr) Expr { return BinaryExpr{Op: OpAdd, Left: l, Right: r} }
func Sub(l, r Expr) Expr { return BinaryExpr{Op: OpSub, Left: l, Right: r} }
func Mul(l, r Expr) Expr { return BinaryExpr{Op: OpMul, Left: l, Right: r} }
func Div(l, r Expr) Expr { return BinaryExpr{Op: OpDiv, Left: l, Right: r} }
func Call(name string, args ...Expr) Expr {
	return CallExpr{Name: name, Args: args}
}
func Index(array string, idx Expr) Expr { return IndexExpr{Array: array, Index: idx} }

func True() Pred { return TruePred{} }
func False() Pred { return FalsePred{} }
func Eq(l, r Expr) Pred { return ComparePred{Left: l, Op: OpEq, Right: r} }
func Ne(l, r Expr) Pred { return ComparePred{Left: l, Op: OpNe, Right: r} }
func Lt(l, r Expr) Pred { return ComparePred{Left: l, Op: OpLt, Right: r} }
func Le(l, r Expr) Pred { return ComparePred{Left: l, Op: OpLe, Right: r} }
func Gt(l, r Expr) Pred { return ComparePred{Left: l, Op: OpGt, Right: r} }
func Ge(l, r Expr) Pred { return ComparePred{Left: l, Op: OpGe, Right: r} }
func Not(p Pred) Pred { return NotPred{P: p} }
func And(l, r Pred) Pred { return AndPred{Left: l, Right: r} }
func Or(l, r Pred) Pred { return OrPred{Left: l, Right: r} }
func Implies(l, r Pred) Pred { return ImpliesPred{Left: l, Right: r} }
func Paren(p Pred) Pred { return ParenPred{P: p} }
func ForAll(v string, body Pred) Pred {
	return QuantPred{Kind: Forall, Var: v, Type: Int, Body: body}
}
func Exist(v string, body Pred) Pred {
	return QuantPred{Kind: Exists, Var: v, Type: Int, Body: body}
}
func Ref(name string, args ...Expr) Pred { return FormulaRef{Name: name, Args: args} }

// Conjoin folds preds with conjunction. An empty list is true.
func Conjoin(preds []Pred) Pred {
	if len(preds) == 0 {
		return TruePred{}
	}
	result := preds[0]
	for _, p := range preds[1:] {
		result = AndPred{Left: result, Right: p}
	}
	return result
}
