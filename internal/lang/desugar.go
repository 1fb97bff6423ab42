package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dslgen/internal/ast"
	"github.com/phobologic/dslgen/internal/core"
)

const maxSnippet = 40

// Desugar parses file with parser, which must be set to Ruby, and returns the
// file's top level as a root ClassDef. Syntax errors are pushed to errs and
// the recoverable part of the tree is still returned.
func Desugar(ctx context.Context, parser *sitter.Parser, file *core.File, errs *core.ErrorQueue) (*ast.ClassDef, error) {
	source := []byte(file.Source())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file.Path(), err)
	}
	defer tree.Close()

	d := &desugarer{file: file, source: source, errs: errs}
	root := tree.RootNode()
	if root.HasError() {
		d.reportSyntaxErrors(root)
	}
	return &ast.ClassDef{
		Range:  d.loc(root),
		Kind:   ast.Class,
		Name:   &ast.EmptyTree{},
		RHS:    d.stmts(root),
		IsRoot: true,
	}, nil
}

type desugarer struct {
	file   *core.File
	source []byte
	errs   *core.ErrorQueue
}

func (d *desugarer) loc(n *sitter.Node) core.Loc {
	return core.Loc{File: d.file, Begin: n.StartByte(), End: n.EndByte()}
}

func (d *desugarer) text(n *sitter.Node) string {
	return NodeText(n, d.source)
}

func (d *desugarer) stmts(parent *sitter.Node) []ast.Expression {
	var out []ast.Expression
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, d.expr(child))
	}
	return out
}

func (d *desugarer) expr(n *sitter.Node) ast.Expression {
	switch n.Type() {
	case "class":
		return d.classDef(n, ast.Class, n.ChildByFieldName("name"), n.ChildByFieldName("superclass"))
	case "module":
		return d.classDef(n, ast.Module, n.ChildByFieldName("name"))
	case "singleton_class":
		return d.singletonClass(n)
	case "call", "method_call":
		return d.send(n)
	case "identifier":
		return &ast.Send{Range: d.loc(n), Receiver: &ast.EmptyTree{}, Fun: d.text(n)}
	case "constant", "scope_resolution":
		return d.constant(n)
	}
	if n.NamedChildCount() == 0 {
		return &ast.Literal{Range: d.loc(n)}
	}
	return &ast.InsSeq{Range: d.loc(n), Stmts: d.stmts(n)}
}

func (d *desugarer) classDef(n *sitter.Node, kind ast.ClassKind, name *sitter.Node, header ...*sitter.Node) *ast.ClassDef {
	klass := &ast.ClassDef{
		Range: d.loc(n),
		Kind:  kind,
		Name:  d.constant(name),
	}
	klass.RHS = d.body(n, append(header, name)...)
	return klass
}

func (d *desugarer) singletonClass(n *sitter.Node) *ast.ClassDef {
	value := n.ChildByFieldName("value")
	name := &ast.UnresolvedIdent{Range: d.loc(n), Name: ast.Singleton}
	klass := &ast.ClassDef{
		Range: d.loc(n),
		Kind:  ast.Class,
		Name:  name,
	}
	if value != nil {
		name.Range = d.loc(value)
	}
	klass.RHS = d.body(n, value)
	return klass
}

// body returns the statements of a class-like node. Newer grammars wrap them
// in a body_statement field; older ones list them as direct children.
func (d *desugarer) body(n *sitter.Node, header ...*sitter.Node) []ast.Expression {
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "body_statement" {
			return d.stmts(body)
		}
		return []ast.Expression{d.expr(body)}
	}
	var out []ast.Expression
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch {
		case child.Type() == "comment" || isOneOf(child, header):
		case child.Type() == "body_statement":
			out = append(out, d.stmts(child)...)
		default:
			out = append(out, d.expr(child))
		}
	}
	return out
}

func (d *desugarer) send(n *sitter.Node) *ast.Send {
	send := &ast.Send{Range: d.loc(n), Receiver: &ast.EmptyTree{}}
	if receiver := n.ChildByFieldName("receiver"); receiver != nil {
		send.Receiver = d.expr(receiver)
	}
	if method := n.ChildByFieldName("method"); method != nil {
		send.Fun = d.funName(method)
	} else if n.NamedChildCount() > 0 {
		send.Fun = d.funName(n.NamedChild(0))
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		send.Args = d.stmts(args)
	}
	if block := n.ChildByFieldName("block"); block != nil {
		send.Block = d.expr(block)
	}
	return send
}

// funName returns the short method name of a call's method node. Older
// grammars nest "recv.meth" calls inside the method field.
func (d *desugarer) funName(method *sitter.Node) string {
	switch method.Type() {
	case "call":
		if inner := method.ChildByFieldName("method"); inner != nil {
			return d.funName(inner)
		}
	case "scope_resolution":
		if inner := method.ChildByFieldName("name"); inner != nil {
			return d.text(inner)
		}
	}
	return d.text(method)
}

// constant converts a class or module name into an UnresolvedConstantLit
// chain. A leading "::" becomes a root ConstantLit scope.
func (d *desugarer) constant(n *sitter.Node) ast.Expression {
	if n == nil {
		return &ast.EmptyTree{}
	}
	switch n.Type() {
	case "constant":
		return &ast.UnresolvedConstantLit{Range: d.loc(n), Scope: &ast.EmptyTree{}, Cnst: d.text(n)}
	case "scope_resolution":
		name := n.ChildByFieldName("name")
		if name == nil {
			return &ast.Literal{Range: d.loc(n)}
		}
		lit := &ast.UnresolvedConstantLit{Range: d.loc(n), Cnst: d.text(name)}
		if scope := n.ChildByFieldName("scope"); scope != nil {
			lit.Scope = d.constant(scope)
		} else {
			lit.Scope = &ast.ConstantLit{
				Range:  core.Loc{File: d.file, Begin: n.StartByte(), End: name.StartByte()},
				Symbol: ast.RootSymbol,
			}
		}
		return lit
	}
	return &ast.Literal{Range: d.loc(n)}
}

func (d *desugarer) reportSyntaxErrors(n *sitter.Node) {
	if n.IsMissing() {
		if e := d.errs.BeginError(d.loc(n), core.ParseError); e != nil {
			e.SetHeader("missing `%s`", n.Type())
			e.Done()
		}
		return
	}
	if n.Type() == "ERROR" {
		if e := d.errs.BeginError(d.loc(n), core.ParseError); e != nil {
			e.SetHeader("unexpected `%s`", snippet(d.text(n)))
			e.Done()
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.HasError() || child.IsMissing() {
			d.reportSyntaxErrors(child)
		}
	}
}

func snippet(s string) string {
	s = CollapseWhitespace(s)
	if len(s) > maxSnippet {
		return s[:maxSnippet] + "..."
	}
	return s
}

func isOneOf(n *sitter.Node, nodes []*sitter.Node) bool {
	for _, other := range nodes {
		if other != nil && other.StartByte() == n.StartByte() && other.EndByte() == n.EndByte() && other.Type() == n.Type() {
			return true
		}
	}
	return false
}
