package smtlib

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/hoare/internal/smt"
)

type cannedRunner struct {
	out     string
	err     error
	scripts []string
}

func (r *cannedRunner) Run(ctx context.Context, script string) (string, error) {
	r.scripts = append(r.scripts, script)
	return r.out, r.err
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, script string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestTerms(t *testing.T) {
	t.Parallel()

	c := NewContext(smt.Options{}, &cannedRunner{})
	x, y := c.IntConst("x"), c.IntConst("a[i]")

	tests := []struct {
		name     string
		term     smt.Term
		expected string
	}{
		{"int", c.Int(42), "42"},
		{"negative int", c.Int(-3), "(- 3)"},
		{"quoted symbol", y, "|a[i]|"},
		{"reserved word", c.IntConst("div"), "|div|"},
		{"arith", c.Add(x, c.Mul(c.Int(2), y)), "(+ x (* 2 |a[i]|))"},
		{"div", c.Div(x, c.Int(2)), "(div x 2)"},
		{"neg", c.Neg(x), "(- x)"},
		{"ne", c.Ne(x, y), "(distinct x |a[i]|)"},
		{"empty and", c.And(), "true"},
		{"single or", c.Or(c.Bool(false)), "false"},
		{"implies", c.Implies(c.Lt(x, c.Int(0)), c.Ge(x, c.Int(-1))), "(=> (< x 0) (>= x (- 1)))"},
		{"apply", c.Apply("fact", c.Sub(x, c.Int(1))), "(fact (- x 1))"},
		{"spaced symbol", c.IntConst("a[i + 1]"), "|a[i + 1]|"},
		{"exists", c.Exists([]smt.Term{x}, c.Eq(x, y)), "(exists ((x Int)) (= x |a[i]|))"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.term.String())
		})
	}
}

func TestScriptDeclarations(t *testing.T) {
	t.Parallel()

	c := NewContext(smt.Options{Timeout: 2 * time.Second}, &cannedRunner{})
	x := c.IntConst("x")
	n := c.IntConst("n!1")
	f := c.Apply("factorial", n)

	s := c.NewSolver().(*Solver)
	s.Add(c.Gt(x, c.Int(0)))
	s.Add(c.Forall([]smt.Term{n}, c.Implies(c.Eq(n, c.Int(0)), c.Eq(f, c.Int(1)))))

	script := s.Script()
	assert.Contains(t, script, "(set-option :timeout 2000)")
	assert.Contains(t, script, "(declare-const x Int)")
	assert.NotContains(t, script, "(declare-const n!1 Int)")
	assert.Contains(t, script, "(declare-fun factorial (Int) Int)")
	assert.Contains(t, script, "(assert (forall ((n!1 Int)) (=> (= n!1 0) (= (factorial n!1) 1))))")
	assert.True(t, strings.HasSuffix(script, "(check-sat)\n(get-model)\n"))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		out      string
		expected smt.Status
		model    map[string]string
	}{
		{name: "unsat", out: "unsat\n(error \"line 5 column 10: model is not available\")\n", expected: smt.Unsat},
		{name: "unknown", out: "unknown\n", expected: smt.Unknown},
		{
			name: "sat with model",
			out: `sat
(
  (define-fun x () Int
    0)
  (define-fun r () Int
    (- 1))
  (define-fun |a[i]| () Int
    7)
  (define-fun factorial ((x!0 Int)) Int
    1)
)
`,
			expected: smt.Sat,
			model:    map[string]string{"x": "0", "r": "-1", "a[i]": "7"},
		},
		{
			name: "quoted names with spaces",
			out: `sat
(
  (define-fun |a[i + 1]| () Int
    (- 4))
  (define-fun |x| () Int
    2)
)
(error "line 9 column 3: (get-value) not supported")
`,
			expected: smt.Sat,
			model:    map[string]string{"a[i + 1]": "-4", "x": "2"},
		},
		{
			name:     "sat with legacy model",
			out:      "sat\n(model (define-fun x () Int 3))\n",
			expected: smt.Sat,
			model:    map[string]string{"x": "3"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := &cannedRunner{out: tt.out}
			c := NewContext(smt.Options{}, runner)
			s := c.NewSolver()
			s.Add(c.Gt(c.IntConst("x"), c.Int(0)))

			status, err := s.Check(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
			require.Len(t, runner.scripts, 1)

			if tt.model == nil {
				return
			}
			model, err := s.Model()
			require.NoError(t, err)
			assert.Len(t, model.Assignments, len(tt.model))
			for name, value := range tt.model {
				got, ok := model.Lookup(name)
				assert.True(t, ok, name)
				assert.Equal(t, value, got, name)
			}
		})
	}
}

func TestCheckFailures(t *testing.T) {
	t.Parallel()

	t.Run("solver error", func(t *testing.T) {
		t.Parallel()
		c := NewContext(smt.Options{}, &cannedRunner{out: "(error \"line 1: unknown constant y\")\n"})
		_, err := c.NewSolver().Check(context.Background())
		assert.Error(t, err)
	})

	t.Run("runner error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		c := NewContext(smt.Options{}, &cannedRunner{err: boom})
		_, err := c.NewSolver().Check(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("deadline maps to unknown", func(t *testing.T) {
		t.Parallel()
		c := NewContext(smt.Options{}, blockingRunner{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		status, err := c.NewSolver().Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, smt.Unknown, status)
	})

	t.Run("cancel is returned", func(t *testing.T) {
		t.Parallel()
		c := NewContext(smt.Options{}, blockingRunner{})
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		status, err := c.NewSolver().Check(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, smt.Unknown, status)
	})

	t.Run("closed context", func(t *testing.T) {
		t.Parallel()
		c := NewContext(smt.Options{}, &cannedRunner{out: "sat\n"})
		require.NoError(t, c.Close())
		_, err := c.NewSolver().Check(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestExecRunner(t *testing.T) {
	path, err := exec.LookPath(DefaultSolver)
	if err != nil {
		t.Skip("z3 not installed")
	}

	c := NewContext(smt.Options{SolverPath: path, Timeout: 10 * time.Second}, nil)
	x := c.IntConst("x")
	s := c.NewSolver()
	s.Add(c.And(c.Gt(x, c.Int(1)), c.Lt(x, c.Int(3))))

	status, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, smt.Sat, status)

	model, err := s.Model()
	require.NoError(t, err)
	v, ok := model.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	assert.Contains(t, smt.Backends(), Name)
	ctx, err := smt.Open(Name, smt.Options{})
	require.NoError(t, err)
	assert.NoError(t, ctx.Close())

	_, err = smt.Open("nope", smt.Options{})
	assert.Error(t, err)
}
