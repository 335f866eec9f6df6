package logic

import "fmt"

// SubstituteVar replaces every free occurrence of the scalar variable
// name in p by e. A quantifier that binds name hides its body.
func SubstituteVar(p Pred, name string, e Expr) Pred {
	return SubstituteAll(p, map[string]Expr{name: e})
}

// SubstituteAll performs a simultaneous substitution of scalar variables.
// When a replacement for name is itself a variable, array reads of name
// are renamed too, which is how array-typed macro parameters are bound.
// Quantifiers are renamed when a replacement would be captured.
func SubstituteAll(p Pred, repl map[string]Expr) Pred {
	if len(repl) == 0 {
		return p
	}
	return varSubstituter(repl).pred(p)
}

// SubstituteCell replaces reads array[j] whose index j is structurally
// identical to index. Reads at any other index are left alone, even when
// they denote the same integer.
func SubstituteCell(p Pred, array string, index Expr, e Expr) Pred {
	s := &substituter{
		expr: func(x Expr) (Expr, bool) {
			if ix, ok := x.(IndexExpr); ok && ix.Array == array && Equal(ix.Index, index) {
				return e, true
			}
			return nil, false
		},
		cell: index,
		with: e,
	}
	return s.pred(p)
}

// substituter walks a predicate and rewrites the expressions matched by
// expr. For variable substitution names holds the replaced variables;
// for cell substitution cell is the written index.
type substituter struct {
	expr  func(Expr) (Expr, bool)
	names map[string]Expr
	cell  Expr
	with  Expr
}

func (s *substituter) pred(p Pred) Pred {
	switch p := p.(type) {
	case TruePred, FalsePred:
		return p
	case ComparePred:
		return ComparePred{Left: s.rewrite(p.Left), Op: p.Op, Right: s.rewrite(p.Right)}
	case NotPred:
		return NotPred{P: s.pred(p.P)}
	case AndPred:
		return AndPred{Left: s.pred(p.Left), Right: s.pred(p.Right)}
	case OrPred:
		return OrPred{Left: s.pred(p.Left), Right: s.pred(p.Right)}
	case ImpliesPred:
		return ImpliesPred{Left: s.pred(p.Left), Right: s.pred(p.Right)}
	case ParenPred:
		return ParenPred{P: s.pred(p.P)}
	case QuantPred:
		return s.quant(p)
	case FormulaRef:
		return FormulaRef{Name: p.Name, Args: s.rewriteArgs(p.Args)}
	default:
		panic(fmt.Sprintf("logic: unknown predicate %T", p))
	}
}

func (s *substituter) quant(q QuantPred) Pred {
	if s.names != nil {
		if _, shadowed := s.names[q.Var]; shadowed {
			inner := make(map[string]Expr, len(s.names))
			for k, v := range s.names {
				if k != q.Var {
					inner[k] = v
				}
			}
			if len(inner) == 0 {
				return q
			}
			return varSubstituter(inner).quant(q)
		}
	}
	if s.cell != nil && Mentions(s.cell, q.Var) {
		// the written index refers to an outer variable the binder hides
		return q
	}

	if s.captures(q.Var) {
		fresh := freshName(q.Var, q.Body, s.replacements())
		q = QuantPred{
			Kind: q.Kind,
			Var:  fresh,
			Type: q.Type,
			Body: SubstituteVar(q.Body, q.Var, VarExpr{Name: fresh}),
		}
	}
	return QuantPred{Kind: q.Kind, Var: q.Var, Type: q.Type, Body: s.pred(q.Body)}
}

func varSubstituter(names map[string]Expr) *substituter {
	return &substituter{
		expr: func(e Expr) (Expr, bool) {
			if v, ok := e.(VarExpr); ok {
				if r, ok := names[v.Name]; ok {
					return r, true
				}
			}
			return nil, false
		},
		names: names,
	}
}

func (s *substituter) replacements() []Expr {
	if s.names != nil {
		out := make([]Expr, 0, len(s.names))
		for _, e := range s.names {
			out = append(out, e)
		}
		return out
	}
	return []Expr{s.with}
}

func (s *substituter) captures(bound string) bool {
	for _, e := range s.replacements() {
		if Mentions(e, bound) {
			return true
		}
	}
	return false
}

func (s *substituter) rewrite(e Expr) Expr {
	if r, ok := s.expr(e); ok {
		return r
	}
	switch e := e.(type) {
	case NumExpr, VarExpr:
		return e
	case NegExpr:
		return NegExpr{Arg: s.rewrite(e.Arg)}
	case BinaryExpr:
		return BinaryExpr{Op: e.Op, Left: s.rewrite(e.Left), Right: s.rewrite(e.Right)}
	case CallExpr:
		return CallExpr{Name: e.Name, Args: s.rewriteArgs(e.Args)}
	case IndexExpr:
		array := e.Array
		if s.names != nil {
			if v, ok := s.names[array].(VarExpr); ok {
				array = v.Name
			}
		}
		return IndexExpr{Array: array, Index: s.rewrite(e.Index)}
	default:
		panic(fmt.Sprintf("logic: unknown expression %T", e))
	}
}

func (s *substituter) rewriteArgs(args []Expr) []Expr {
	if args == nil {
		return nil
	}
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = s.rewrite(a)
	}
	return out
}

// freshName derives a variable name from base that occurs neither in
// body nor in any of avoid.
func freshName(base string, body Pred, avoid []Expr) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if OccursIn(body, candidate) {
			continue
		}
		taken := false
		for _, e := range avoid {
			if Mentions(e, candidate) {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
	}
}
