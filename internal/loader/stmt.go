package loader

import (
	"go/ast"
	"go/token"

	"github.com/gnolang/hoare/internal/logic"
)

var compoundOps = map[token.Token]logic.ArithOp{
	token.ADD_ASSIGN: logic.OpAdd,
	token.SUB_ASSIGN: logic.OpSub,
	token.MUL_ASSIGN: logic.OpMul,
	token.QUO_ASSIGN: logic.OpDiv,
}

// stmtLoader converts the body of one function and collects its locals.
type stmtLoader struct {
	*loader
	fn       *logic.Function
	declared map[string]bool
}

func (s *stmtLoader) block(list []ast.Stmt) (logic.Stmt, error) {
	var out []logic.Stmt
	for _, st := range list {
		converted, err := s.stmt(st)
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}
	return logic.BlockStmt{Stmts: out}, nil
}

func (s *stmtLoader) stmt(st ast.Stmt) ([]logic.Stmt, error) {
	switch st := st.(type) {
	case *ast.AssignStmt:
		a, err := s.assign(st)
		if err != nil {
			return nil, err
		}
		return []logic.Stmt{a}, nil

	case *ast.IncDecStmt:
		target, err := s.lvalue(st.X)
		if err != nil {
			return nil, err
		}
		cur, err := s.expr(st.X)
		if err != nil {
			return nil, err
		}
		op := logic.OpAdd
		if st.Tok == token.DEC {
			op = logic.OpSub
		}
		return []logic.Stmt{logic.AssignStmt{
			Targets: []logic.LValue{target},
			Exprs:   []logic.Expr{logic.BinaryExpr{Op: op, Left: cur, Right: logic.Num(1)}},
		}}, nil

	case *ast.DeclStmt:
		return s.varDecl(st)

	case *ast.IfStmt:
		ifs, err := s.ifStmt(st)
		if err != nil {
			return nil, err
		}
		return []logic.Stmt{ifs}, nil

	case *ast.ForStmt:
		loop, err := s.forStmt(st)
		if err != nil {
			return nil, err
		}
		return []logic.Stmt{loop}, nil

	case *ast.BlockStmt:
		b, err := s.block(st.List)
		if err != nil {
			return nil, err
		}
		return []logic.Stmt{b}, nil

	case *ast.ExprStmt:
		if name, _, ok := markerCall(st); ok {
			if name == invariantMarker {
				return nil, s.errorf(st, "%s must start a loop body", name)
			}
			return nil, s.errorf(st, "%s must start the function body", name)
		}
		call, ok := st.X.(*ast.CallExpr)
		if !ok {
			return nil, s.errorf(st, "expression statement")
		}
		c, err := s.call(call)
		if err != nil {
			return nil, err
		}
		return []logic.Stmt{logic.CallStmt{Call: c}}, nil

	case *ast.ReturnStmt:
		if len(st.Results) > 0 {
			return nil, s.errorf(st, "return with values; assign the named results instead")
		}
		return nil, s.errorf(st, "return before the end of the function")

	case *ast.EmptyStmt:
		return nil, nil

	default:
		return nil, s.errorf(st, "statement %T", st)
	}
}

func (s *stmtLoader) assign(st *ast.AssignStmt) (logic.Stmt, error) {
	if op, ok := compoundOps[st.Tok]; ok {
		target, err := s.lvalue(st.Lhs[0])
		if err != nil {
			return nil, err
		}
		cur, err := s.expr(st.Lhs[0])
		if err != nil {
			return nil, err
		}
		rhs, err := s.expr(st.Rhs[0])
		if err != nil {
			return nil, err
		}
		return logic.AssignStmt{
			Targets: []logic.LValue{target},
			Exprs:   []logic.Expr{logic.BinaryExpr{Op: op, Left: cur, Right: rhs}},
		}, nil
	}

	switch st.Tok {
	case token.ASSIGN, token.DEFINE:
	default:
		return nil, s.errorf(st, "assignment operator %s", st.Tok)
	}
	if len(st.Lhs) != len(st.Rhs) {
		return nil, s.errorf(st, "assignment of %d values to %d targets", len(st.Rhs), len(st.Lhs))
	}

	// values are read before the new locals come into scope
	exprs, err := s.exprs(st.Rhs)
	if err != nil {
		return nil, err
	}
	if st.Tok == token.DEFINE {
		for _, lhs := range st.Lhs {
			id, ok := lhs.(*ast.Ident)
			if !ok {
				return nil, s.errorf(lhs, "short declaration of a non-variable")
			}
			if err := s.declare(id, logic.Int); err != nil {
				return nil, err
			}
		}
	}

	targets := make([]logic.LValue, len(st.Lhs))
	for i, lhs := range st.Lhs {
		if targets[i], err = s.lvalue(lhs); err != nil {
			return nil, err
		}
	}
	if err := s.checkSimultaneous(st, targets, exprs); err != nil {
		return nil, err
	}
	return logic.AssignStmt{Targets: targets, Exprs: exprs}, nil
}

// checkSimultaneous rejects tuple assignments whose meaning depends on
// evaluation order. Go evaluates every operand before assigning; the
// verifier assigns targets one after another.
func (s *stmtLoader) checkSimultaneous(st *ast.AssignStmt, targets []logic.LValue, exprs []logic.Expr) error {
	for i := range targets {
		name := lvalueName(targets[i])
		for j := i + 1; j < len(targets); j++ {
			if lvalueName(targets[j]) == name {
				if _, ok := targets[i].(logic.VarTarget); ok {
					return s.errorf(st, "%s assigned twice", name)
				}
			}
			if logic.Mentions(exprs[j], name) {
				return s.errorf(st.Rhs[j], "tuple assignment reads %s after assigning it; use separate statements", name)
			}
			if t, ok := targets[j].(logic.IndexTarget); ok && logic.Mentions(t.Index, name) {
				return s.errorf(st.Lhs[j], "tuple assignment indexes with %s after assigning it; use separate statements", name)
			}
		}
	}
	return nil
}

func lvalueName(t logic.LValue) string {
	switch t := t.(type) {
	case logic.VarTarget:
		return t.Name
	case logic.IndexTarget:
		return t.Array
	}
	return ""
}

func (s *stmtLoader) lvalue(e ast.Expr) (logic.LValue, error) {
	switch e := e.(type) {
	case *ast.Ident:
		if e.Name == "_" {
			return nil, s.errorf(e, "assignment to _")
		}
		if !s.declared[e.Name] {
			return nil, s.errorf(e, "assignment to undeclared %s", e.Name)
		}
		return logic.VarTarget{Name: e.Name}, nil

	case *ast.IndexExpr:
		array, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, s.errorf(e, "index of a non-variable")
		}
		if !s.declared[array.Name] {
			return nil, s.errorf(e, "assignment to undeclared %s", array.Name)
		}
		idx, err := s.expr(e.Index)
		if err != nil {
			return nil, err
		}
		return logic.IndexTarget{Array: array.Name, Index: idx}, nil

	case *ast.ParenExpr:
		return s.lvalue(e.X)

	default:
		return nil, s.errorf(e, "assignment target %T", e)
	}
}

func (s *stmtLoader) declare(id *ast.Ident, typ logic.Type) error {
	if id.Name == "_" {
		return s.errorf(id, "declaration of _")
	}
	if s.declared[id.Name] {
		return s.errorf(id, "%s redeclared", id.Name)
	}
	s.declared[id.Name] = true
	s.fn.Locals = append(s.fn.Locals, logic.Param{Name: id.Name, Type: typ})
	return nil
}

// varDecl declares locals. Initial values become assignments; an int
// declared without one starts at zero. Arrays have no modeled zero value
// and start unconstrained.
func (s *stmtLoader) varDecl(st *ast.DeclStmt) ([]logic.Stmt, error) {
	gd, ok := st.Decl.(*ast.GenDecl)
	if !ok || gd.Tok != token.VAR {
		return nil, s.errorf(st, "local declaration")
	}
	var out []logic.Stmt
	for _, gs := range gd.Specs {
		vs := gs.(*ast.ValueSpec)
		if vs.Type == nil {
			return nil, s.errorf(vs, "var without a type")
		}
		typ, err := s.typ(vs.Type)
		if err != nil {
			return nil, err
		}
		if len(vs.Values) > 0 && len(vs.Values) != len(vs.Names) {
			return nil, s.errorf(vs, "assignment of %d values to %d variables", len(vs.Values), len(vs.Names))
		}
		values, err := s.exprs(vs.Values)
		if err != nil {
			return nil, err
		}
		for i, id := range vs.Names {
			if err := s.declare(id, typ); err != nil {
				return nil, err
			}
			switch {
			case len(values) > 0:
				out = append(out, logic.Assign(id.Name, values[i]))
			case typ == logic.Int:
				out = append(out, logic.Assign(id.Name, logic.Num(0)))
			}
		}
	}
	return out, nil
}

func (s *stmtLoader) ifStmt(st *ast.IfStmt) (logic.Stmt, error) {
	if st.Init != nil {
		return nil, s.errorf(st.Init, "if with an init statement")
	}
	cond, err := s.cond(st.Cond)
	if err != nil {
		return nil, err
	}
	then, err := s.block(st.Body.List)
	if err != nil {
		return nil, err
	}

	var els logic.Stmt
	switch e := st.Else.(type) {
	case nil:
	case *ast.BlockStmt:
		if els, err = s.block(e.List); err != nil {
			return nil, err
		}
	case *ast.IfStmt:
		if els, err = s.ifStmt(e); err != nil {
			return nil, err
		}
	}
	return logic.IfStmt{Cond: cond, Then: then, Else: els}, nil
}

func (s *stmtLoader) forStmt(st *ast.ForStmt) (logic.Stmt, error) {
	if st.Init != nil || st.Post != nil {
		return nil, s.errorf(st, "for with init or post statement; use a condition-only loop")
	}
	if st.Cond == nil {
		return nil, s.errorf(st, "for without a condition")
	}
	cond, err := s.cond(st.Cond)
	if err != nil {
		return nil, err
	}

	body := st.Body.List
	var invariants []logic.Pred
	for len(body) > 0 {
		name, arg, ok := markerCall(body[0])
		if !ok || name != invariantMarker {
			break
		}
		p, err := s.pred(arg)
		if err != nil {
			return nil, err
		}
		invariants = append(invariants, p)
		body = body[1:]
	}

	b, err := s.block(body)
	if err != nil {
		return nil, err
	}
	loop := logic.WhileStmt{Cond: cond, Body: b}
	if len(invariants) > 0 {
		loop.Invariant = logic.Conjoin(invariants)
	}
	return loop, nil
}
