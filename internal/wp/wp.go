// Package wp computes weakest preconditions and verification conditions
// for annotated functions.
package wp

import (
	"errors"
	"fmt"

	"github.com/gnolang/hoare/internal/logic"
)

var (
	// ErrMissingInvariant reports a while loop without an invariant.
	ErrMissingInvariant = errors.New("while loop has no invariant")
	// ErrAssignArity reports an assignment whose target and value counts differ.
	ErrAssignArity = errors.New("assignment target and value counts differ")
	// ErrUnknownNode reports a statement or lvalue this package cannot handle.
	ErrUnknownNode = errors.New("unknown node")
)

// ComputeWP returns the weakest precondition of stmt with respect to post,
// simplified. Loops are handled with their invariant (partial correctness).
// A nil statement does nothing.
func ComputeWP(stmt logic.Stmt, post logic.Pred, mod *logic.Module) (logic.Pred, error) {
	switch s := stmt.(type) {
	case nil:
		return logic.Simplify(post), nil

	case logic.AssignStmt:
		return assign(s, post)

	case logic.BlockStmt:
		q := post
		for i := len(s.Stmts) - 1; i >= 0; i-- {
			var err error
			q, err = ComputeWP(s.Stmts[i], q, mod)
			if err != nil {
				return nil, err
			}
		}
		return logic.Simplify(q), nil

	case logic.IfStmt:
		cond := logic.ToPred(s.Cond)
		then, err := ComputeWP(s.Then, post, mod)
		if err != nil {
			return nil, err
		}
		// a missing else branch behaves like skip
		els, err := ComputeWP(s.Else, post, mod)
		if err != nil {
			return nil, err
		}
		return logic.Simplify(logic.Or(
			logic.And(cond, then),
			logic.And(logic.Not(cond), els),
		)), nil

	case logic.WhileStmt:
		return loop(s, post, mod)

	case logic.CallStmt:
		// effects through arguments are not modeled
		return logic.Simplify(post), nil

	default:
		return nil, fmt.Errorf("%w: statement %T", ErrUnknownNode, stmt)
	}
}

// assign processes targets right to left, substituting each one into the
// accumulated predicate.
func assign(s logic.AssignStmt, post logic.Pred) (logic.Pred, error) {
	if len(s.Targets) != len(s.Exprs) {
		return nil, fmt.Errorf("%w: %s", ErrAssignArity, s)
	}
	q := post
	for i := len(s.Targets) - 1; i >= 0; i-- {
		switch t := s.Targets[i].(type) {
		case logic.VarTarget:
			q = logic.SubstituteVar(q, t.Name, s.Exprs[i])
		case logic.IndexTarget:
			q = logic.SubstituteCell(q, t.Array, t.Index, s.Exprs[i])
		default:
			return nil, fmt.Errorf("%w: assignment target %T", ErrUnknownNode, t)
		}
	}
	return logic.Simplify(q), nil
}

//	wp(while c inv I do B, Q) = I && (I && c ==> wp(B, I)) && (I && !c ==> Q)
func loop(s logic.WhileStmt, post logic.Pred, mod *logic.Module) (logic.Pred, error) {
	if s.Invariant == nil {
		return nil, fmt.Errorf("%w: while %s", ErrMissingInvariant, s.Cond)
	}
	inv, err := Expand(s.Invariant, mod)
	if err != nil {
		return nil, fmt.Errorf("loop invariant: %w", err)
	}
	cond := logic.ToPred(s.Cond)

	body, err := ComputeWP(s.Body, inv, mod)
	if err != nil {
		return nil, err
	}

	preserved := logic.Implies(logic.And(inv, cond), body)
	exits := logic.Implies(logic.And(inv, logic.Not(cond)), post)
	return logic.Simplify(logic.And(inv, logic.And(preserved, exits))), nil
}

// BuildVC returns requires ==> wp(body, ensures) for fn, simplified.
// Formula references in the contract and in loop invariants are expanded
// first, so array writes see the cells the macros read.
func BuildVC(fn *logic.Function, mod *logic.Module) (logic.Pred, error) {
	pre, err := Expand(logic.Conjoin(fn.Requires), mod)
	if err != nil {
		return nil, fmt.Errorf("precondition of %s: %w", fn.Name, err)
	}
	post, err := Expand(logic.Conjoin(fn.Ensures), mod)
	if err != nil {
		return nil, fmt.Errorf("postcondition of %s: %w", fn.Name, err)
	}
	for _, p := range []logic.Pred{pre, post} {
		if err := logic.CheckDepth(p); err != nil {
			return nil, fmt.Errorf("contract of %s: %w", fn.Name, err)
		}
	}

	body, err := ComputeWP(fn.Body, post, mod)
	if err != nil {
		return nil, err
	}
	return logic.Simplify(logic.Implies(pre, body)), nil
}
