package smtlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/consensys/go-corset/pkg/util/source"
	"github.com/consensys/go-corset/pkg/util/source/sexp"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/smt"
)

// DefaultSolver is the executable used when no solver path is configured.
const DefaultSolver = "z3"

// ErrClosed is returned by Check after the context was closed.
var ErrClosed = errors.New("smtlib: context closed")

// Runner feeds a script to a solver and returns its standard output.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// ExecRunner runs a solver process that reads SMT-LIB2 from stdin.
type ExecRunner struct {
	Path string
	Args []string
}

func (r ExecRunner) Run(ctx context.Context, script string) (string, error) {
	path := r.Path
	if path == "" {
		path = DefaultSolver
	}
	args := r.Args
	if len(args) == 0 {
		args = []string{"-in", "-smt2"}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && stdout.Len() == 0 {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s: %w", path, err)
	}
	// z3 exits non-zero when a later command such as get-model fails;
	// the answer to check-sat is still on stdout.
	return stdout.String(), nil
}

// Solver collects assertions and checks them in one solver process.
type Solver struct {
	ctx        *Context
	assertions []sexp.SExp
	model      *smt.Model
}

func (s *Solver) Add(t smt.Term) {
	s.assertions = append(s.assertions, sexp.NewList([]sexp.SExp{sexp.NewSymbol("assert"), expr(t)}))
}

// Script renders the complete SMT-LIB2 script sent by Check.
func (s *Solver) Script() string {
	var b strings.Builder
	b.WriteString("(set-option :produce-models true)\n")
	if s.ctx.opts.Timeout > 0 {
		fmt.Fprintf(&b, "(set-option :timeout %d)\n", s.ctx.opts.Timeout.Milliseconds())
	}
	b.WriteString("(set-logic ALL)\n")
	for _, d := range s.ctx.declarations() {
		b.WriteString(d.String(false))
		b.WriteByte('\n')
	}
	for _, a := range s.assertions {
		b.WriteString(a.String(false))
		b.WriteByte('\n')
	}
	b.WriteString("(check-sat)\n(get-model)\n")
	return b.String()
}

// solverGrace is how long the process may outlive the solver's own timeout.
const solverGrace = time.Second

func (s *Solver) Check(ctx context.Context) (smt.Status, error) {
	s.ctx.mu.Lock()
	closed := s.ctx.closed
	s.ctx.mu.Unlock()
	if closed {
		return smt.Unknown, ErrClosed
	}

	if timeout := s.ctx.opts.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout+solverGrace)
		defer cancel()
	}

	script := s.Script()
	start := time.Now()
	out, err := s.ctx.runner.Run(ctx, script)
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		s.ctx.logger.Debug("solver interrupted",
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return smt.Unknown, nil
		}
		return smt.Unknown, err
	}
	if err != nil {
		return smt.Unknown, err
	}

	status, model, err := parseOutput(out)
	if err != nil {
		return smt.Unknown, err
	}
	s.model = model
	s.ctx.logger.Debug("solver answered",
		zap.Stringer("status", status),
		zap.Int("assertions", len(s.assertions)),
		zap.Duration("elapsed", elapsed))
	return status, nil
}

func (s *Solver) Model() (*smt.Model, error) {
	if s.model == nil {
		return nil, errors.New("smtlib: no model available")
	}
	return s.model, nil
}

// parseOutput reads the check-sat answer and, for sat, the model that
// follows it.
func parseOutput(out string) (smt.Status, *smt.Model, error) {
	out = strings.TrimSpace(out)
	line, rest, _ := strings.Cut(out, "\n")
	if strings.HasPrefix(line, "(error") {
		return smt.Unknown, nil, fmt.Errorf("solver error: %s", line)
	}
	status, err := smt.ParseStatus(line)
	if err != nil {
		return smt.Unknown, nil, err
	}
	if status != smt.Sat {
		return status, nil, nil
	}
	model, err := parseModel(rest)
	if err != nil {
		return status, nil, fmt.Errorf("reading model: %w", err)
	}
	return status, model, nil
}

// parseModel extracts the constant definitions of a get-model answer.
// Both the bare list form and the older (model ...) form are accepted.
func parseModel(src string) (*smt.Model, error) {
	src, names := protectQuoted(src)
	nodes, _, serr := sexp.ParseAll(source.NewSourceFile("model", []byte(src)))
	if serr != nil {
		return nil, fmt.Errorf("%v", serr)
	}
	var assignments []smt.Assignment
	for _, n := range nodes {
		list := n.AsList()
		if list == nil {
			continue
		}
		defs := list.Elements
		if len(defs) > 0 && isSymbol(defs[0], "model") {
			defs = defs[1:]
		}
		for _, d := range defs {
			if a, ok := constDefinition(d, names); ok {
				assignments = append(assignments, a)
			}
		}
	}
	return smt.NewModel(assignments), nil
}

func isSymbol(n sexp.SExp, value string) bool {
	sym := n.AsSymbol()
	return sym != nil && sym.Value == value
}

// constDefinition matches (define-fun name () Sort value).
func constDefinition(n sexp.SExp, names map[string]string) (smt.Assignment, bool) {
	list := n.AsList()
	if list == nil || len(list.Elements) != 5 {
		return smt.Assignment{}, false
	}
	elems := list.Elements
	name, params := elems[1].AsSymbol(), elems[2].AsList()
	if !isSymbol(elems[0], "define-fun") || name == nil || params == nil || len(params.Elements) != 0 {
		return smt.Assignment{}, false
	}
	return smt.Assignment{Name: restore(name.Value, names), Value: formatValue(elems[4], names)}, true
}

// formatValue renders (- 3) as -3 and leaves other values as printed.
func formatValue(n sexp.SExp, names map[string]string) string {
	if list := n.AsList(); list != nil && len(list.Elements) == 2 && isSymbol(list.Elements[0], "-") {
		if digits := list.Elements[1].AsSymbol(); digits != nil {
			return "-" + digits.Value
		}
	}
	return restore(n.String(false), names)
}

// quotedPrefix starts the placeholders of protectQuoted. No declared
// name starts with '!'.
const quotedPrefix = "!q"

var (
	quotedToken       = regexp.MustCompile(`\|[^|]*\||"(?:[^"]|"")*"`)
	quotedPlaceholder = regexp.MustCompile(regexp.QuoteMeta(quotedPrefix) + `[0-9]+`)
)

// protectQuoted replaces |quoted symbols| and "strings" with plain
// placeholder symbols, since the s-expression reader splits symbols at
// whitespace and does not know either syntax. Quoted symbols map back
// to their name without bars.
func protectQuoted(src string) (string, map[string]string) {
	names := make(map[string]string)
	out := quotedToken.ReplaceAllStringFunc(src, func(tok string) string {
		key := quotedPrefix + strconv.Itoa(len(names))
		if tok[0] == '|' {
			names[key] = tok[1 : len(tok)-1]
		} else {
			names[key] = tok
		}
		return key
	})
	return out, names
}

func restore(s string, names map[string]string) string {
	if len(names) == 0 || !strings.Contains(s, quotedPrefix) {
		return s
	}
	if name, ok := names[s]; ok {
		return name
	}
	return quotedPlaceholder.ReplaceAllStringFunc(s, func(key string) string {
		if name, ok := names[key]; ok {
			return name
		}
		return key
	})
}
