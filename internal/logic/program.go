package logic

import (
	"fmt"
	"strings"
)

// Type is the declared type of a parameter, return, local or bound variable.
type Type int

const (
	_ Type = iota
	Int
	IntArray
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case IntArray:
		return "int[]"
	default:
		return "?"
	}
}

// Param is a typed name: a parameter, a return variable or a local.
type Param struct {
	Name string
	Type Type
}

func (p Param) String() string {
	return p.Name + ": " + p.Type.String()
}

// Cond is a boolean condition appearing in program text (if and while).
// Conditions never contain quantifiers or formula references.
type Cond interface {
	isCond()
	String() string
}

// BoolCond is a literal true or false condition.
type BoolCond struct {
	Value bool
}

func (BoolCond) isCond() {}
func (c BoolCond) String() string {
	return fmt.Sprintf("%t", c.Value)
}

// CompareCond compares two expressions.
type CompareCond struct {
	Left  Expr
	Op    CmpOp
	Right Expr
}

func (CompareCond) isCond() {}
func (c CompareCond) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// NotCond negates a condition.
type NotCond struct {
	C Cond
}

func (NotCond) isCond() {}
func (c NotCond) String() string { return "!(" + c.C.String() + ")" }

// AndCond is a short-circuit conjunction.
type AndCond struct {
	Left  Cond
	Right Cond
}

func (AndCond) isCond() {}
func (c AndCond) String() string { return c.Left.String() + " && " + c.Right.String() }

// OrCond is a short-circuit disjunction.
type OrCond struct {
	Left  Cond
	Right Cond
}

func (OrCond) isCond() {}
func (c OrCond) String() string { return c.Left.String() + " || " + c.Right.String() }

// ImpliesCond is an implication written in a program condition.
type ImpliesCond struct {
	Left  Cond
	Right Cond
}

func (ImpliesCond) isCond() {}
func (c ImpliesCond) String() string {
	return fmt.Sprintf("implies(%s, %s)", c.Left, c.Right)
}

// ParenCond is an explicit grouping.
type ParenCond struct {
	C Cond
}

func (ParenCond) isCond() {}
func (c ParenCond) String() string { return "(" + c.C.String() + ")" }

// ToPred converts a program condition into the equivalent predicate.
// Implication is desugared into !left || right.
func ToPred(c Cond) Pred {
	switch c := c.(type) {
	case BoolCond:
		if c.Value {
			return TruePred{}
		}
		return FalsePred{}
	case CompareCond:
		return ComparePred{Left: c.Left, Op: c.Op, Right: c.Right}
	case NotCond:
		return NotPred{P: ToPred(c.C)}
	case AndCond:
		return AndPred{Left: ToPred(c.Left), Right: ToPred(c.Right)}
	case OrCond:
		return OrPred{Left: ToPred(c.Left), Right: ToPred(c.Right)}
	case ImpliesCond:
		return OrPred{Left: NotPred{P: ToPred(c.Left)}, Right: ToPred(c.Right)}
	case ParenCond:
		return ParenPred{P: ToPred(c.C)}
	default:
		panic(fmt.Sprintf("logic: unknown condition %T", c))
	}
}

// LValue is the target of an assignment.
type LValue interface {
	isLValue()
	String() string
}

// VarTarget assigns a scalar variable.
type VarTarget struct {
	Name string
}

func (VarTarget) isLValue() {}
func (t VarTarget) String() string { return t.Name }

// IndexTarget assigns one element of an array variable.
type IndexTarget struct {
	Array string
	Index Expr
}

func (IndexTarget) isLValue() {}
func (t IndexTarget) String() string {
	return fmt.Sprintf("%s[%s]", t.Array, t.Index)
}

// Stmt represents a statement of a function body.
type Stmt interface {
	isStmt()
	String() string
}

// AssignStmt assigns Exprs to Targets in parallel.
type AssignStmt struct {
	Targets []LValue
	Exprs   []Expr
}

func (AssignStmt) isStmt() {}
func (s AssignStmt) String() string {
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = t.String()
	}
	return strings.Join(targets, ", ") + " = " + joinExprs(s.Exprs)
}

// BlockStmt runs statements in order.
type BlockStmt struct {
	Stmts []Stmt
}

func (BlockStmt) isStmt() {}
func (s BlockStmt) String() string {
	parts := make([]string, len(s.Stmts))
	for i, st := range s.Stmts {
		parts[i] = st.String()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

// IfStmt is a conditional. Else is nil when absent.
type IfStmt struct {
	Cond Cond
	Then Stmt
	Else Stmt
}

func (IfStmt) isStmt() {}
func (s IfStmt) String() string {
	if s.Else == nil {
		return fmt.Sprintf("if %s %s", s.Cond, s.Then)
	}
	return fmt.Sprintf("if %s %s else %s", s.Cond, s.Then, s.Else)
}

// WhileStmt is a loop. Invariant is nil when the source has none.
type WhileStmt struct {
	Cond      Cond
	Invariant Pred
	Body      Stmt
}

func (WhileStmt) isStmt() {}
func (s WhileStmt) String() string {
	return fmt.Sprintf("while %s %s", s.Cond, s.Body)
}

// CallStmt is a call whose result is discarded.
type CallStmt struct {
	Call CallExpr
}

func (CallStmt) isStmt() {}
func (s CallStmt) String() string { return s.Call.String() }

// Helper functions to construct statements.

func Assign(name string, e Expr) Stmt {
	return AssignStmt{Targets: []LValue{VarTarget{Name: name}}, Exprs: []Expr{e}}
}

func Store(array string, idx, e Expr) Stmt {
	return AssignStmt{Targets: []LValue{IndexTarget{Array: array, Index: idx}}, Exprs: []Expr{e}}
}

func Block(stmts ...Stmt) Stmt { return BlockStmt{Stmts: stmts} }

func If(c Cond, then, els Stmt) Stmt { return IfStmt{Cond: c, Then: then, Else: els} }

func While(c Cond, inv Pred, body Stmt) Stmt {
	return WhileStmt{Cond: c, Invariant: inv, Body: body}
}

// Function is a function definition together with its contract.
type Function struct {
	Name     string
	Params   []Param
	Returns  []Param
	Locals   []Param
	Requires []Pred
	Ensures  []Pred
	Body     Stmt

	// Line is the source line of the declaration, zero when unknown.
	Line int
}

// Formula is a named predicate macro.
type Formula struct {
	Name   string
	Params []Param
	Body   Pred
}

// Module is a parsed, name-resolved compilation unit.
type Module struct {
	Formulas  []Formula
	Functions []Function
}

// Function returns the function with the given name.
func (m *Module) Function(name string) (*Function, bool) {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i], true
		}
	}
	return nil, false
}

// Formula returns the formula macro with the given name.
func (m *Module) Formula(name string) (*Formula, bool) {
	for i := range m.Formulas {
		if m.Formulas[i].Name == name {
			return &m.Formulas[i], true
		}
	}
	return nil, false
}
