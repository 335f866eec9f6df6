package loader

import (
	"go/ast"
	"go/token"
	"strconv"

	"github.com/gnolang/hoare/internal/logic"
)

var arithOps = map[token.Token]logic.ArithOp{
	token.ADD: logic.OpAdd,
	token.SUB: logic.OpSub,
	token.MUL: logic.OpMul,
	token.QUO: logic.OpDiv,
}

var cmpOps = map[token.Token]logic.CmpOp{
	token.EQL: logic.OpEq,
	token.NEQ: logic.OpNe,
	token.LSS: logic.OpLt,
	token.LEQ: logic.OpLe,
	token.GTR: logic.OpGt,
	token.GEQ: logic.OpGe,
}

func (l *loader) expr(e ast.Expr) (logic.Expr, error) {
	switch e := e.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT {
			return nil, l.errorf(e, "literal %s", e.Value)
		}
		v, err := strconv.ParseInt(e.Value, 0, 64)
		if err != nil {
			return nil, l.errorf(e, "integer %s: %v", e.Value, err)
		}
		return logic.Num(v), nil

	case *ast.Ident:
		return logic.Var(e.Name), nil

	case *ast.ParenExpr:
		return l.expr(e.X)

	case *ast.UnaryExpr:
		arg, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.SUB:
			return logic.Neg(arg), nil
		case token.ADD:
			return arg, nil
		}
		return nil, l.errorf(e, "operator %s in expression", e.Op)

	case *ast.BinaryExpr:
		op, ok := arithOps[e.Op]
		if !ok {
			return nil, l.errorf(e, "operator %s in expression", e.Op)
		}
		left, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		right, err := l.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return logic.BinaryExpr{Op: op, Left: left, Right: right}, nil

	case *ast.CallExpr:
		call, err := l.call(e)
		if err != nil {
			return nil, err
		}
		return call, nil

	case *ast.IndexExpr:
		array, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, l.errorf(e, "index of a non-variable")
		}
		idx, err := l.expr(e.Index)
		if err != nil {
			return nil, err
		}
		return logic.Index(array.Name, idx), nil

	default:
		return nil, l.errorf(e, "expression %T", e)
	}
}

func (l *loader) call(e *ast.CallExpr) (logic.CallExpr, error) {
	id, ok := e.Fun.(*ast.Ident)
	if !ok {
		return logic.CallExpr{}, l.errorf(e, "call of a non-function")
	}
	if e.Ellipsis.IsValid() {
		return logic.CallExpr{}, l.errorf(e, "variadic call")
	}
	switch id.Name {
	case requiresMarker, ensuresMarker, invariantMarker, impliesMarker, forallMarker, existsMarker:
		return logic.CallExpr{}, l.errorf(e, "%s used as a value", id.Name)
	}
	args, err := l.exprs(e.Args)
	if err != nil {
		return logic.CallExpr{}, err
	}
	return logic.CallExpr{Name: id.Name, Args: args}, nil
}

func (l *loader) exprs(list []ast.Expr) ([]logic.Expr, error) {
	out := make([]logic.Expr, len(list))
	for i, a := range list {
		x, err := l.expr(a)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (l *loader) pred(e ast.Expr) (logic.Pred, error) {
	switch e := e.(type) {
	case *ast.Ident:
		switch e.Name {
		case "true":
			return logic.True(), nil
		case "false":
			return logic.False(), nil
		}
		return nil, l.errorf(e, "%s is not a predicate", e.Name)

	case *ast.ParenExpr:
		inner, err := l.pred(e.X)
		if err != nil {
			return nil, err
		}
		return logic.Paren(inner), nil

	case *ast.UnaryExpr:
		if e.Op != token.NOT {
			return nil, l.errorf(e, "operator %s in predicate", e.Op)
		}
		inner, err := l.pred(e.X)
		if err != nil {
			return nil, err
		}
		return logic.Not(inner), nil

	case *ast.BinaryExpr:
		switch e.Op {
		case token.LAND, token.LOR:
			left, err := l.pred(e.X)
			if err != nil {
				return nil, err
			}
			right, err := l.pred(e.Y)
			if err != nil {
				return nil, err
			}
			if e.Op == token.LAND {
				return logic.And(left, right), nil
			}
			return logic.Or(left, right), nil
		}
		left, op, right, err := l.comparison(e)
		if err != nil {
			return nil, err
		}
		return logic.ComparePred{Left: left, Op: op, Right: right}, nil

	case *ast.CallExpr:
		return l.predCall(e)

	default:
		return nil, l.errorf(e, "predicate %T", e)
	}
}

func (l *loader) predCall(e *ast.CallExpr) (logic.Pred, error) {
	id, ok := e.Fun.(*ast.Ident)
	if !ok {
		return nil, l.errorf(e, "call of a non-function")
	}
	switch id.Name {
	case impliesMarker:
		if len(e.Args) != 2 {
			return nil, l.errorf(e, "%s takes 2 arguments", id.Name)
		}
		left, err := l.pred(e.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := l.pred(e.Args[1])
		if err != nil {
			return nil, err
		}
		return logic.Implies(left, right), nil

	case forallMarker, existsMarker:
		if len(e.Args) != 2 {
			return nil, l.errorf(e, "%s takes a variable and a predicate", id.Name)
		}
		v, ok := e.Args[0].(*ast.Ident)
		if !ok {
			return nil, l.errorf(e.Args[0], "%s must bind a variable", id.Name)
		}
		body, err := l.pred(e.Args[1])
		if err != nil {
			return nil, err
		}
		if id.Name == forallMarker {
			return logic.ForAll(v.Name, body), nil
		}
		return logic.Exist(v.Name, body), nil
	}

	if !l.formulas[id.Name] {
		return nil, l.errorf(e, "%s is not a formula", id.Name)
	}
	args, err := l.exprs(e.Args)
	if err != nil {
		return nil, err
	}
	return logic.Ref(id.Name, args...), nil
}

func (l *loader) comparison(e *ast.BinaryExpr) (logic.Expr, logic.CmpOp, logic.Expr, error) {
	op, ok := cmpOps[e.Op]
	if !ok {
		return nil, 0, nil, l.errorf(e, "operator %s in predicate", e.Op)
	}
	left, err := l.expr(e.X)
	if err != nil {
		return nil, 0, nil, err
	}
	right, err := l.expr(e.Y)
	if err != nil {
		return nil, 0, nil, err
	}
	return left, op, right, nil
}

// cond converts the condition of an if or for statement.
func (l *loader) cond(e ast.Expr) (logic.Cond, error) {
	switch e := e.(type) {
	case *ast.Ident:
		switch e.Name {
		case "true":
			return logic.BoolCond{Value: true}, nil
		case "false":
			return logic.BoolCond{Value: false}, nil
		}
		return nil, l.errorf(e, "%s is not a condition", e.Name)

	case *ast.ParenExpr:
		inner, err := l.cond(e.X)
		if err != nil {
			return nil, err
		}
		return logic.ParenCond{C: inner}, nil

	case *ast.UnaryExpr:
		if e.Op != token.NOT {
			return nil, l.errorf(e, "operator %s in condition", e.Op)
		}
		inner, err := l.cond(e.X)
		if err != nil {
			return nil, err
		}
		return logic.NotCond{C: inner}, nil

	case *ast.BinaryExpr:
		switch e.Op {
		case token.LAND, token.LOR:
			left, err := l.cond(e.X)
			if err != nil {
				return nil, err
			}
			right, err := l.cond(e.Y)
			if err != nil {
				return nil, err
			}
			if e.Op == token.LAND {
				return logic.AndCond{Left: left, Right: right}, nil
			}
			return logic.OrCond{Left: left, Right: right}, nil
		}
		left, op, right, err := l.comparison(e)
		if err != nil {
			return nil, err
		}
		return logic.CompareCond{Left: left, Op: op, Right: right}, nil

	case *ast.CallExpr:
		if id, ok := e.Fun.(*ast.Ident); ok && id.Name == impliesMarker && len(e.Args) == 2 {
			left, err := l.cond(e.Args[0])
			if err != nil {
				return nil, err
			}
			right, err := l.cond(e.Args[1])
			if err != nil {
				return nil, err
			}
			return logic.ImpliesCond{Left: left, Right: right}, nil
		}
		return nil, l.errorf(e, "call in condition")

	default:
		return nil, l.errorf(e, "condition %T", e)
	}
}
