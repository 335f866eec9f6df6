// Package loader reads annotated functions written in Go syntax.
//
// A source file is an ordinary Go file whose functions use a handful of
// marker calls for their contracts:
//
//	func add(x, y int) (r int) {
//		requires(x >= 0 && y >= 0)
//		ensures(r == x+y)
//		r = x + y
//	}
//
// Loops carry their invariant as the first statement of the body:
//
//	for i < n {
//		invariant(i <= n)
//		i = i + 1
//	}
//
// Predicates may use implies(p, q), forall(i, p) and exists(i, p). A
// function with a single bool result whose body is one return statement
// is a formula macro usable in other predicates.
//
// The file is parsed but not type checked.
package loader

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"

	"github.com/gnolang/hoare/internal/logic"
)

// Marker calls recognized in function bodies and predicates.
const (
	requiresMarker  = "requires"
	ensuresMarker   = "ensures"
	invariantMarker = "invariant"
	impliesMarker   = "implies"
	forallMarker    = "forall"
	existsMarker    = "exists"
)

// ErrUnsupported reports Go syntax outside the verifiable subset.
var ErrUnsupported = errors.New("unsupported")

// Error is a load error at a source position.
type Error struct {
	Pos token.Position
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LoadFile reads and loads the file at path.
func LoadFile(path string) (*logic.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, src)
}

// Load parses src, named filename in positions, into a module.
func Load(filename string, src []byte) (*logic.Module, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	l := &loader{fset: fset, formulas: make(map[string]bool)}
	return l.module(file)
}

type loader struct {
	fset     *token.FileSet
	formulas map[string]bool
}

func (l *loader) errorf(node ast.Node, format string, args ...any) error {
	return &Error{
		Pos: l.fset.Position(node.Pos()),
		Err: fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...)),
	}
}

func (l *loader) module(file *ast.File) (*logic.Module, error) {
	var funcs []*ast.FuncDecl
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil {
				return nil, l.errorf(d, "method %s", d.Name.Name)
			}
			if d.Body == nil {
				return nil, l.errorf(d, "function %s has no body", d.Name.Name)
			}
			if isFormula(d) {
				l.formulas[d.Name.Name] = true
			}
			funcs = append(funcs, d)
		case *ast.GenDecl:
			if d.Tok != token.IMPORT {
				return nil, l.errorf(d, "top-level %s declaration", d.Tok)
			}
		}
	}

	mod := &logic.Module{}
	seen := make(map[string]bool)
	for _, fd := range funcs {
		name := fd.Name.Name
		if seen[name] {
			return nil, l.errorf(fd.Name, "%s redeclared", name)
		}
		seen[name] = true

		if l.formulas[name] {
			f, err := l.formula(fd)
			if err != nil {
				return nil, err
			}
			mod.Formulas = append(mod.Formulas, f)
			continue
		}
		fn, err := l.function(fd)
		if err != nil {
			return nil, err
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

// isFormula matches func name(params) bool { return pred }.
func isFormula(fd *ast.FuncDecl) bool {
	res := fd.Type.Results
	if res == nil || len(res.List) != 1 || len(res.List[0].Names) > 1 {
		return false
	}
	if id, ok := res.List[0].Type.(*ast.Ident); !ok || id.Name != "bool" {
		return false
	}
	if len(fd.Body.List) != 1 {
		return false
	}
	ret, ok := fd.Body.List[0].(*ast.ReturnStmt)
	return ok && len(ret.Results) == 1
}

func (l *loader) formula(fd *ast.FuncDecl) (logic.Formula, error) {
	params, err := l.fields(fd.Type.Params, false)
	if err != nil {
		return logic.Formula{}, err
	}
	ret := fd.Body.List[0].(*ast.ReturnStmt)
	body, err := l.pred(ret.Results[0])
	if err != nil {
		return logic.Formula{}, err
	}
	return logic.Formula{Name: fd.Name.Name, Params: params, Body: body}, nil
}

func (l *loader) function(fd *ast.FuncDecl) (logic.Function, error) {
	fn := logic.Function{Name: fd.Name.Name, Line: l.fset.Position(fd.Pos()).Line}

	var err error
	if fn.Params, err = l.fields(fd.Type.Params, false); err != nil {
		return fn, err
	}
	if fn.Returns, err = l.fields(fd.Type.Results, true); err != nil {
		return fn, err
	}

	stmts := fd.Body.List
	for len(stmts) > 0 {
		name, arg, ok := markerCall(stmts[0])
		if !ok || (name != requiresMarker && name != ensuresMarker) {
			break
		}
		p, err := l.pred(arg)
		if err != nil {
			return fn, err
		}
		if name == requiresMarker {
			fn.Requires = append(fn.Requires, p)
		} else {
			fn.Ensures = append(fn.Ensures, p)
		}
		stmts = stmts[1:]
	}

	// a bare return ends the body
	if n := len(stmts); n > 0 {
		if ret, ok := stmts[n-1].(*ast.ReturnStmt); ok && len(ret.Results) == 0 {
			stmts = stmts[:n-1]
		}
	}

	sl := &stmtLoader{loader: l, fn: &fn, declared: make(map[string]bool)}
	for _, p := range fn.Params {
		sl.declared[p.Name] = true
	}
	for _, p := range fn.Returns {
		sl.declared[p.Name] = true
	}
	body, err := sl.block(stmts)
	if err != nil {
		return fn, err
	}
	fn.Body = body
	return fn, nil
}

// fields converts a parameter or result list. Results must be named.
func (l *loader) fields(list *ast.FieldList, results bool) ([]logic.Param, error) {
	if list == nil {
		return nil, nil
	}
	var out []logic.Param
	for _, f := range list.List {
		typ, err := l.typ(f.Type)
		if err != nil {
			return nil, err
		}
		if len(f.Names) == 0 {
			if results {
				return nil, l.errorf(f, "unnamed result")
			}
			return nil, l.errorf(f, "unnamed parameter")
		}
		for _, n := range f.Names {
			out = append(out, logic.Param{Name: n.Name, Type: typ})
		}
	}
	return out, nil
}

func (l *loader) typ(e ast.Expr) (logic.Type, error) {
	switch t := e.(type) {
	case *ast.Ident:
		if t.Name == "int" {
			return logic.Int, nil
		}
	case *ast.ArrayType:
		if id, ok := t.Elt.(*ast.Ident); ok && id.Name == "int" && t.Len == nil {
			return logic.IntArray, nil
		}
	}
	return 0, l.errorf(e, "type %s", typeString(e))
}

func typeString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeString(t.Elt)
		}
		return "[...]" + typeString(t.Elt)
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	default:
		return fmt.Sprintf("%T", e)
	}
}

// markerCall matches an expression statement marker(arg).
func markerCall(s ast.Stmt) (string, ast.Expr, bool) {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return "", nil, false
	}
	call, ok := es.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return "", nil, false
	}
	id, ok := call.Fun.(*ast.Ident)
	if !ok {
		return "", nil, false
	}
	switch id.Name {
	case requiresMarker, ensuresMarker, invariantMarker:
		return id.Name, call.Args[0], true
	}
	return "", nil, false
}
