package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteVar(t *testing.T) {
	t.Parallel()

	x, y, i := Var("x"), Var("y"), Var("i")

	t.Run("self comparison stays trivial", func(t *testing.T) {
		t.Parallel()
		for _, e := range []Expr{Num(3), y, Add(y, Num(1)), Call("f", x), Index("a", i)} {
			got := Simplify(SubstituteVar(Eq(x, x), "x", e))
			assert.True(t, EqualPred(True(), got), "x := %s gave %s", e, got)
		}
	})

	t.Run("replaces free occurrences", func(t *testing.T) {
		t.Parallel()
		p := And(Gt(x, Num(0)), Eq(Call("f", x), Index("a", x)))
		got := SubstituteVar(p, "x", Add(y, Num(1)))
		want := And(Gt(Add(y, Num(1)), Num(0)), Eq(Call("f", Add(y, Num(1))), Index("a", Add(y, Num(1)))))
		assert.True(t, EqualPred(want, got), "got %s", got)
	})

	t.Run("binder shadows the substituted name", func(t *testing.T) {
		t.Parallel()
		p := And(Gt(x, Num(0)), ForAll("x", Ge(x, Num(0))))
		got := SubstituteVar(p, "x", Num(7))
		want := And(Gt(Num(7), Num(0)), ForAll("x", Ge(x, Num(0))))
		assert.True(t, EqualPred(want, got), "got %s", got)
	})

	t.Run("binder is renamed instead of capturing", func(t *testing.T) {
		t.Parallel()
		p := ForAll("i", Lt(i, x))
		got := SubstituteVar(p, "x", Add(i, Num(1)))
		want := ForAll("i_1", Lt(Var("i_1"), Add(i, Num(1))))
		assert.True(t, EqualPred(want, got), "got %s", got)
	})

	t.Run("formula reference arguments", func(t *testing.T) {
		t.Parallel()
		got := SubstituteVar(Ref("sorted", Var("a"), x), "x", Num(4))
		assert.True(t, EqualPred(Ref("sorted", Var("a"), Num(4)), got), "got %s", got)
	})
}

func TestSubstituteAll(t *testing.T) {
	t.Parallel()

	// swap is simultaneous
	p := Lt(Var("x"), Var("y"))
	got := SubstituteAll(p, map[string]Expr{"x": Var("y"), "y": Var("x")})
	assert.True(t, EqualPred(Lt(Var("y"), Var("x")), got), "got %s", got)

	// array parameters are renamed
	body := ForAll("i", Le(Index("arr", Var("i")), Index("arr", Add(Var("i"), Num(1)))))
	got = SubstituteAll(body, map[string]Expr{"arr": Var("b")})
	want := ForAll("i", Le(Index("b", Var("i")), Index("b", Add(Var("i"), Num(1)))))
	assert.True(t, EqualPred(want, got), "got %s", got)
}

func TestSubstituteCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    Pred
		index    Expr
		expected Pred
	}{
		{
			name:     "same literal index",
			input:    Eq(Index("a", Num(1)), Num(0)),
			index:    Num(1),
			expected: Eq(Num(5), Num(0)),
		},
		{
			name:     "numerically equal index is not rewritten",
			input:    Eq(Index("a", Num(1)), Num(0)),
			index:    Add(Num(0), Num(1)),
			expected: Eq(Index("a", Num(1)), Num(0)),
		},
		{
			name:     "other array untouched",
			input:    Eq(Index("b", Var("i")), Num(0)),
			index:    Var("i"),
			expected: Eq(Index("b", Var("i")), Num(0)),
		},
		{
			name:     "nested read",
			input:    Eq(Index("b", Index("a", Var("i"))), Num(0)),
			index:    Var("i"),
			expected: Eq(Index("b", Num(5)), Num(0)),
		},
		{
			name:     "binder hides the written index",
			input:    ForAll("i", Eq(Index("a", Var("i")), Num(0))),
			index:    Var("i"),
			expected: ForAll("i", Eq(Index("a", Var("i")), Num(0))),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SubstituteCell(tt.input, "a", tt.index, Num(5))
			assert.True(t, EqualPred(tt.expected, got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestKeyOf(t *testing.T) {
	t.Parallel()

	i, j := Var("i"), Var("j")
	assert.Equal(t, KeyOf(Add(i, j)), KeyOf(Add(j, i)))
	assert.Equal(t, KeyOf(Mul(i, Num(2))), KeyOf(Mul(Num(2), i)))
	assert.NotEqual(t, KeyOf(Sub(i, j)), KeyOf(Sub(j, i)))
	assert.NotEqual(t, KeyOf(Div(i, j)), KeyOf(Div(j, i)))
	assert.NotEqual(t, KeyOf(Add(Num(0), Num(1))), KeyOf(Num(1)))
	assert.NotEqual(t, KeyOf(Var("ab")), KeyOf(Index("a", Var("b"))))
	assert.Equal(t, KeyOf(Index("a", Add(i, j))), KeyOf(Index("a", Add(j, i))))
	assert.Equal(t, KeyOf(Neg(Call("f", Add(i, j)))), KeyOf(Neg(Call("f", Add(j, i)))))
}

func TestToPred(t *testing.T) {
	t.Parallel()

	c := ImpliesCond{
		Left:  CompareCond{Left: Var("x"), Op: OpGt, Right: Num(0)},
		Right: ParenCond{C: NotCond{C: BoolCond{Value: false}}},
	}
	got := ToPred(c)
	want := Or(Not(Gt(Var("x"), Num(0))), Paren(Not(False())))
	assert.True(t, EqualPred(want, got), "got %s", got)
	assert.True(t, EqualPred(True(), Simplify(got)), "got %s", Simplify(got))
}

func TestCheckDepth(t *testing.T) {
	t.Parallel()

	var e Expr = Var("x")
	for i := 0; i < MaxDepth+10; i++ {
		e = Neg(e)
	}
	err := CheckDepth(Eq(e, Num(0)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooDeep)

	assert.NoError(t, CheckDepth(And(Gt(Var("x"), Num(0)), ForAll("i", Eq(Index("a", Var("i")), Num(0))))))
}

func TestContainsCall(t *testing.T) {
	t.Parallel()

	n := Var("n")
	post := Or(
		And(Eq(n, Num(0)), Eq(Var("r"), Num(1))),
		And(Gt(n, Num(0)), Eq(Var("r"), Mul(n, Call("factorial", Sub(n, Num(1)))))),
	)
	assert.True(t, ContainsCall(post, "factorial"))
	assert.False(t, ContainsCall(post, "fib"))
	assert.True(t, ContainsCall(ForAll("i", Eq(Index("a", Call("g")), Num(0))), "g"))
}
