// Package ast defines the small syntax tree dslgen works on: just enough of
// Ruby to describe class/module nesting and the call sites inside them.
package ast

import "github.com/phobologic/dslgen/internal/core"

// Marker names used as scope atoms.
const (
	Singleton = "<singleton class>"
	Root      = "<root>"
)

// Expression is implemented by every node type in this package and nothing
// else.
type Expression interface {
	Loc() core.Loc
	isExpression()
}

// ClassKind tells classes and modules apart.
type ClassKind int

const (
	Class ClassKind = iota
	Module
)

func (k ClassKind) String() string {
	if k == Module {
		return "module"
	}
	return "class"
}

// ClassDef is a class, module, or singleton class body. The top level of a
// file is represented by a ClassDef with IsRoot set.
type ClassDef struct {
	Range  core.Loc
	Kind   ClassKind
	Name   Expression
	RHS    []Expression
	IsRoot bool
}

// Send is a method call.
type Send struct {
	Range    core.Loc
	Receiver Expression
	Fun      string
	Args     []Expression
	Block    Expression
}

// UnresolvedConstantLit is a constant reference, possibly qualified by Scope.
type UnresolvedConstantLit struct {
	Range core.Loc
	Scope Expression
	Cnst  string
}

// Symbol is a resolved constant.
type Symbol int

const (
	NoSymbol Symbol = iota
	RootSymbol
)

// ConstantLit is a constant already resolved to a symbol. The only one the
// desugarer produces is the root namespace of a leading "::".
type ConstantLit struct {
	Range  core.Loc
	Symbol Symbol
}

// UnresolvedIdent is a bare name. As a class name it can only be the
// singleton marker of "class << self".
type UnresolvedIdent struct {
	Range core.Loc
	Name  string
}

// EmptyTree marks an absent expression.
type EmptyTree struct{}

// Literal is any leaf the plugin does not look into.
type Literal struct {
	Range core.Loc
}

// InsSeq is any compound statement. Its Stmts are walked so classes nested
// inside conditionals or blocks are still visited.
type InsSeq struct {
	Range core.Loc
	Stmts []Expression
}

func (c *ClassDef) Loc() core.Loc              { return c.Range }
func (s *Send) Loc() core.Loc                  { return s.Range }
func (u *UnresolvedConstantLit) Loc() core.Loc { return u.Range }
func (c *ConstantLit) Loc() core.Loc           { return c.Range }
func (u *UnresolvedIdent) Loc() core.Loc       { return u.Range }
func (*EmptyTree) Loc() core.Loc               { return core.NoLoc() }
func (l *Literal) Loc() core.Loc               { return l.Range }
func (i *InsSeq) Loc() core.Loc                { return i.Range }

func (*ClassDef) isExpression()              {}
func (*Send) isExpression()                  {}
func (*UnresolvedConstantLit) isExpression() {}
func (*ConstantLit) isExpression()           {}
func (*UnresolvedIdent) isExpression()       {}
func (*EmptyTree) isExpression()             {}
func (*Literal) isExpression()               {}
func (*InsSeq) isExpression()                {}
