package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phobologic/dslgen/internal/ast"
	"github.com/phobologic/dslgen/internal/core"
)

const generatedSuffix = "//plugin-generated|"

var errNestingUnderflow = errors.New("class nesting stack underflow")

// spawningWalker runs generators for one file. It owns the stack of
// enclosing class and module scopes.
type spawningWalker struct {
	ctx     context.Context
	gs      *GlobalState
	file    *core.File
	results []*core.File
	nesting []namespace
}

func (w *spawningWalker) PreTransformClassDef(klass *ast.ClassDef) (*ast.ClassDef, error) {
	if klass.IsRoot {
		return klass, nil
	}
	ns, err := newNamespace(klass)
	if err != nil {
		return nil, err
	}
	w.nesting = append(w.nesting, ns)

	for _, statement := range klass.RHS {
		send, ok := statement.(*ast.Send)
		if !ok {
			continue
		}
		command, ok := w.gs.Registry.FindDslPlugin(send.Fun)
		if !ok {
			continue
		}
		w.generate(klass, send, command)
	}
	return klass, nil
}

func (w *spawningWalker) PostTransformClassDef(klass *ast.ClassDef) (*ast.ClassDef, error) {
	if klass.IsRoot {
		return klass, nil
	}
	if len(w.nesting) == 0 {
		return nil, fmt.Errorf("%w at %s", errNestingUnderflow, klass.Range)
	}
	w.nesting = w.nesting[:len(w.nesting)-1]
	return klass, nil
}

// generate runs command for one triggering send inside klass and records the
// wrapped output, or a diagnostic at the send on failure.
func (w *spawningWalker) generate(klass *ast.ClassDef, send *ast.Send, command string) {
	className := klass.Name.Loc().Source()
	sendSource := send.Range.Source()

	extra := w.gs.Registry.ExtraArgs()
	args := make([]string, 0, len(extra)+7)
	args = append(args, extra...)
	args = append(args,
		command,
		"--class", className,
		"--method", send.Fun,
		"--source", sendSource,
	)

	log := w.gs.logger().With("command", command, "class", className, "method", send.Fun, "loc", send.Range.String())
	log.Debug("running dsl plugin")

	output, err := w.gs.Spawner.Spawn(w.ctx, w.gs.Registry.Executable(), args)
	if err != nil {
		log.Warn("dsl plugin failed", "error", err)
		if e := w.gs.Errors.BeginError(send.Range, core.SubprocessError); e != nil {
			e.SetHeader("Error while executing subprocess plugin `%s`", command).
				AddLine("%v", err).
				Done()
		}
		return
	}

	path := fmt.Sprintf("%s%s%d.rbi", w.file.Path(), generatedSuffix, len(w.results))
	w.results = append(w.results, core.NewGeneratedFile(path, w.wrap(output)))
	log.Debug("dsl plugin generated file", "path", path, "bytes", len(output))
}

// wrap reopens every enclosing scope around output, outermost first.
func (w *spawningWalker) wrap(output string) string {
	var b strings.Builder
	for _, n := range w.nesting {
		if n.isSingleton() {
			b.WriteString("class << self;")
			continue
		}
		if n.kind == ast.Module {
			b.WriteString("module ")
		} else {
			b.WriteString("class ")
		}
		for i := len(n.components) - 1; i >= 0; i-- {
			if i != len(n.components)-1 {
				b.WriteString("::")
			}
			if name := n.components[i]; name != ast.Root {
				b.WriteString(name)
			}
		}
		b.WriteByte(';')
	}
	b.WriteByte('\n')
	b.WriteString(output)
	for range w.nesting {
		b.WriteString("end;")
	}
	return b.String()
}
