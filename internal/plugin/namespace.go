package plugin

import (
	"errors"
	"fmt"

	"github.com/phobologic/dslgen/internal/ast"
)

// ErrMalformedScope reports a class name whose scope chain has a shape the
// desugarer never produces. It aborts the run.
var ErrMalformedScope = errors.New("malformed class scope")

// namespace is one entry of the nesting stack. components are stored
// innermost first.
type namespace struct {
	kind       ast.ClassKind
	components []string
}

func newNamespace(klass *ast.ClassDef) (namespace, error) {
	ns := namespace{kind: klass.Kind}
	if err := ns.fillComponents(klass.Name); err != nil {
		return namespace{}, err
	}
	return ns, nil
}

func (ns *namespace) fillComponents(constant ast.Expression) error {
	for constant != nil {
		switch c := constant.(type) {
		case *ast.UnresolvedConstantLit:
			ns.components = append(ns.components, c.Cnst)
			constant = c.Scope
		case *ast.UnresolvedIdent:
			if c.Name != ast.Singleton {
				return fmt.Errorf("%w: identifier %q at %s", ErrMalformedScope, c.Name, c.Range)
			}
			ns.components = append(ns.components, ast.Singleton)
			return nil
		case *ast.ConstantLit:
			if c.Symbol != ast.RootSymbol {
				return fmt.Errorf("%w: resolved constant at %s is not the root", ErrMalformedScope, c.Range)
			}
			ns.components = append(ns.components, ast.Root)
			return nil
		default:
			return nil
		}
	}
	return nil
}

// isSingleton reports whether the outermost component reopens a singleton
// class.
func (ns namespace) isSingleton() bool {
	return len(ns.components) > 0 && ns.components[len(ns.components)-1] == ast.Singleton
}
