package wp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/hoare/internal/logic"
)

func cmp(l logic.Expr, op logic.CmpOp, r logic.Expr) logic.Cond {
	return logic.CompareCond{Left: l, Op: op, Right: r}
}

func assertPred(t *testing.T, want, got logic.Pred) {
	t.Helper()
	assert.True(t, logic.EqualPred(want, got), "expected %s, got %s", want, got)
}

func TestComputeWP(t *testing.T) {
	t.Parallel()

	x, y, r := logic.Var("x"), logic.Var("y"), logic.Var("r")

	tests := []struct {
		name     string
		stmt     logic.Stmt
		post     logic.Pred
		expected logic.Pred
	}{
		{
			name:     "trivial arithmetic",
			stmt:     logic.Assign("r", logic.Add(x, y)),
			post:     logic.Eq(r, logic.Add(x, y)),
			expected: logic.True(),
		},
		{
			name:     "scalar assignment",
			stmt:     logic.Assign("x", logic.Add(x, logic.Num(1))),
			post:     logic.Gt(x, logic.Num(0)),
			expected: logic.Gt(logic.Add(x, logic.Num(1)), logic.Num(0)),
		},
		{
			name:     "block folds right to left",
			stmt:     logic.Block(logic.Assign("x", logic.Add(x, logic.Num(1))), logic.Assign("y", x)),
			post:     logic.Gt(y, logic.Num(0)),
			expected: logic.Gt(logic.Add(x, logic.Num(1)), logic.Num(0)),
		},
		{
			name:     "empty block",
			stmt:     logic.Block(),
			post:     logic.And(logic.True(), logic.Gt(x, logic.Num(0))),
			expected: logic.Gt(x, logic.Num(0)),
		},
		{
			name: "parallel assignment right to left",
			stmt: logic.AssignStmt{
				Targets: []logic.LValue{logic.VarTarget{Name: "x"}, logic.VarTarget{Name: "y"}},
				Exprs:   []logic.Expr{logic.Num(1), x},
			},
			post:     logic.Eq(y, logic.Num(1)),
			expected: logic.True(),
		},
		{
			name:     "array cell write",
			stmt:     logic.Store("a", logic.Num(0), logic.Num(0)),
			post:     logic.Eq(logic.Index("a", logic.Num(0)), logic.Num(0)),
			expected: logic.True(),
		},
		{
			name:     "array write at a different index expression",
			stmt:     logic.Store("a", logic.Add(logic.Num(0), logic.Num(1)), logic.Num(5)),
			post:     logic.Eq(logic.Index("a", logic.Num(1)), logic.Num(0)),
			expected: logic.Eq(logic.Index("a", logic.Num(1)), logic.Num(0)),
		},
		{
			name:     "if with else",
			stmt:     logic.If(cmp(x, logic.OpGt, logic.Num(0)), logic.Assign("r", x), logic.Assign("r", logic.Neg(x))),
			post:     logic.Ge(r, logic.Num(0)),
			expected: logic.Or(logic.And(logic.Gt(x, logic.Num(0)), logic.Ge(x, logic.Num(0))), logic.And(logic.Not(logic.Gt(x, logic.Num(0))), logic.Ge(logic.Neg(x), logic.Num(0)))),
		},
		{
			name:     "if without else",
			stmt:     logic.If(cmp(x, logic.OpLt, logic.Num(0)), logic.Assign("x", logic.Num(0)), nil),
			post:     logic.Ge(x, logic.Num(0)),
			expected: logic.Or(logic.Lt(x, logic.Num(0)), logic.And(logic.Not(logic.Lt(x, logic.Num(0))), logic.Ge(x, logic.Num(0)))),
		},
		{
			name:     "call statement leaves the postcondition alone",
			stmt:     logic.CallStmt{Call: logic.CallExpr{Name: "log", Args: []logic.Expr{x}}},
			post:     logic.Gt(x, logic.Num(0)),
			expected: logic.Gt(x, logic.Num(0)),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ComputeWP(tt.stmt, tt.post, &logic.Module{})
			require.NoError(t, err)
			assertPred(t, tt.expected, got)
		})
	}
}

func TestComputeWPWhile(t *testing.T) {
	t.Parallel()

	i, n, s := logic.Var("i"), logic.Var("n"), logic.Var("s")
	inv := logic.And(logic.Le(i, n), logic.Eq(s, i))
	loop := logic.While(cmp(i, logic.OpLt, n), inv, logic.Block(
		logic.Assign("i", logic.Add(i, logic.Num(1))),
		logic.Assign("s", logic.Add(s, logic.Num(1))),
	))

	got, err := ComputeWP(loop, logic.Eq(s, n), &logic.Module{})
	require.NoError(t, err)

	bodyWP := logic.And(logic.Le(logic.Add(i, logic.Num(1)), n), logic.Eq(logic.Add(s, logic.Num(1)), logic.Add(i, logic.Num(1))))
	want := logic.And(inv, logic.And(
		logic.Implies(logic.And(inv, logic.Lt(i, n)), bodyWP),
		logic.Implies(logic.And(inv, logic.Not(logic.Lt(i, n))), logic.Eq(s, n)),
	))
	assertPred(t, want, got)
}

func TestComputeWPErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing invariant", func(t *testing.T) {
		t.Parallel()
		loop := logic.While(cmp(logic.Var("i"), logic.OpLt, logic.Num(10)), nil, logic.Assign("i", logic.Add(logic.Var("i"), logic.Num(1))))
		_, err := ComputeWP(logic.Block(logic.Assign("i", logic.Num(0)), loop), logic.True(), &logic.Module{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingInvariant)
	})

	t.Run("nested missing invariant", func(t *testing.T) {
		t.Parallel()
		inner := logic.While(logic.BoolCond{Value: true}, nil, logic.Block())
		outer := logic.While(logic.BoolCond{Value: false}, logic.True(), inner)
		_, err := ComputeWP(outer, logic.True(), &logic.Module{})
		assert.ErrorIs(t, err, ErrMissingInvariant)
	})

	t.Run("assignment arity", func(t *testing.T) {
		t.Parallel()
		s := logic.AssignStmt{Targets: []logic.LValue{logic.VarTarget{Name: "x"}}, Exprs: []logic.Expr{logic.Num(1), logic.Num(2)}}
		_, err := ComputeWP(s, logic.True(), &logic.Module{})
		assert.ErrorIs(t, err, ErrAssignArity)
	})
}

func TestBuildVC(t *testing.T) {
	t.Parallel()

	x, y, r := logic.Var("x"), logic.Var("y"), logic.Var("r")

	t.Run("add", func(t *testing.T) {
		t.Parallel()
		fn := &logic.Function{
			Name:     "add",
			Params:   []logic.Param{{Name: "x", Type: logic.Int}, {Name: "y", Type: logic.Int}},
			Returns:  []logic.Param{{Name: "r", Type: logic.Int}},
			Requires: []logic.Pred{logic.Ge(x, logic.Num(0)), logic.Ge(y, logic.Num(0))},
			Ensures:  []logic.Pred{logic.Eq(r, logic.Add(x, y))},
			Body:     logic.Assign("r", logic.Add(x, y)),
		}
		vc, err := BuildVC(fn, &logic.Module{Functions: []logic.Function{*fn}})
		require.NoError(t, err)
		assertPred(t, logic.True(), vc)
	})

	t.Run("broken", func(t *testing.T) {
		t.Parallel()
		fn := &logic.Function{
			Name:     "broken",
			Params:   []logic.Param{{Name: "x", Type: logic.Int}},
			Returns:  []logic.Param{{Name: "r", Type: logic.Int}},
			Requires: []logic.Pred{logic.Ge(x, logic.Num(0))},
			Ensures:  []logic.Pred{logic.Gt(r, x)},
			Body:     logic.Assign("r", x),
		}
		vc, err := BuildVC(fn, &logic.Module{})
		require.NoError(t, err)
		assertPred(t, logic.Not(logic.Ge(x, logic.Num(0))), vc)
	})

	t.Run("no contract", func(t *testing.T) {
		t.Parallel()
		fn := &logic.Function{Name: "noop", Body: logic.Block()}
		vc, err := BuildVC(fn, &logic.Module{})
		require.NoError(t, err)
		assertPred(t, logic.True(), vc)
	})

	t.Run("formula in postcondition", func(t *testing.T) {
		t.Parallel()
		mod := &logic.Module{Formulas: []logic.Formula{{
			Name:   "firstIs",
			Params: []logic.Param{{Name: "arr", Type: logic.IntArray}, {Name: "v", Type: logic.Int}},
			Body:   logic.Eq(logic.Index("arr", logic.Num(0)), logic.Var("v")),
		}}}
		fn := &logic.Function{
			Name:    "setFirstZero",
			Params:  []logic.Param{{Name: "a", Type: logic.IntArray}},
			Ensures: []logic.Pred{logic.Ref("firstIs", logic.Var("a"), logic.Num(0))},
			Body:    logic.Store("a", logic.Num(0), logic.Num(0)),
		}
		vc, err := BuildVC(fn, mod)
		require.NoError(t, err)
		assertPred(t, logic.True(), vc)
	})
}

func TestExpand(t *testing.T) {
	t.Parallel()

	i := logic.Var("i")
	mod := &logic.Module{Formulas: []logic.Formula{
		{
			Name:   "sorted",
			Params: []logic.Param{{Name: "arr", Type: logic.IntArray}, {Name: "n", Type: logic.Int}},
			Body: logic.ForAll("i", logic.Implies(
				logic.And(logic.Le(logic.Num(0), i), logic.Lt(i, logic.Sub(logic.Var("n"), logic.Num(1)))),
				logic.Le(logic.Index("arr", i), logic.Index("arr", logic.Add(i, logic.Num(1)))),
			)),
		},
		{Name: "loop", Params: nil, Body: logic.Ref("loop")},
		{Name: "pos", Params: []logic.Param{{Name: "v", Type: logic.Int}}, Body: logic.Gt(logic.Var("v"), logic.Num(0))},
		{Name: "bothPos", Params: []logic.Param{{Name: "a", Type: logic.Int}, {Name: "b", Type: logic.Int}}, Body: logic.And(logic.Ref("pos", logic.Var("a")), logic.Ref("pos", logic.Var("b")))},
	}}

	t.Run("binds array and scalar parameters", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(logic.Ref("sorted", logic.Var("xs"), logic.Var("len")), mod)
		require.NoError(t, err)
		want := logic.ForAll("i", logic.Implies(
			logic.And(logic.Le(logic.Num(0), i), logic.Lt(i, logic.Sub(logic.Var("len"), logic.Num(1)))),
			logic.Le(logic.Index("xs", i), logic.Index("xs", logic.Add(i, logic.Num(1)))),
		))
		assertPred(t, want, got)
	})

	t.Run("nested references", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(logic.Not(logic.Ref("bothPos", logic.Var("x"), logic.Num(3))), mod)
		require.NoError(t, err)
		assertPred(t, logic.Not(logic.And(logic.Gt(logic.Var("x"), logic.Num(0)), logic.Gt(logic.Num(3), logic.Num(0)))), got)
	})

	t.Run("argument captured by the macro binder", func(t *testing.T) {
		t.Parallel()
		got, err := Expand(logic.Ref("sorted", logic.Var("xs"), i), mod)
		require.NoError(t, err)
		q, ok := got.(logic.QuantPred)
		require.True(t, ok)
		assert.NotEqual(t, "i", q.Var)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		_, err := Expand(logic.Ref("missing"), mod)
		assert.ErrorIs(t, err, ErrUnknownFormula)

		_, err = Expand(logic.Ref("pos"), mod)
		assert.ErrorIs(t, err, ErrFormulaArity)

		_, err = Expand(logic.And(logic.True(), logic.Ref("loop")), mod)
		assert.ErrorIs(t, err, ErrFormulaCycle)
	})
}
