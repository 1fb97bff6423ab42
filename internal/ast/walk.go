package ast

// ClassDefVisitor receives every ClassDef of a tree, including the root,
// before and after its body is walked.
type ClassDefVisitor interface {
	PreTransformClassDef(klass *ClassDef) (*ClassDef, error)
	PostTransformClassDef(klass *ClassDef) (*ClassDef, error)
}

// Walk traverses tree depth first in source order. The first error returned
// by the visitor stops the walk and is returned as is.
func Walk(tree Expression, v ClassDefVisitor) (Expression, error) {
	if err := walk(tree, v); err != nil {
		return nil, err
	}
	return tree, nil
}

func walk(e Expression, v ClassDefVisitor) error {
	switch n := e.(type) {
	case *ClassDef:
		klass, err := v.PreTransformClassDef(n)
		if err != nil {
			return err
		}
		for _, stmt := range klass.RHS {
			if err := walk(stmt, v); err != nil {
				return err
			}
		}
		_, err = v.PostTransformClassDef(klass)
		return err
	case *InsSeq:
		for _, stmt := range n.Stmts {
			if err := walk(stmt, v); err != nil {
				return err
			}
		}
	case *Send:
		for _, arg := range n.Args {
			if err := walk(arg, v); err != nil {
				return err
			}
		}
		if n.Block != nil {
			return walk(n.Block, v)
		}
	}
	return nil
}
