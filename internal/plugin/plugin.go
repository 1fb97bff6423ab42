// Package plugin runs subprocess DSL plugins over a desugared file.
//
// Every call in a class or module body whose method name is registered as a
// trigger runs the configured generator once. The generator's output is
// wrapped in the lexical nesting of the call and returned as a new,
// plugin-generated file; the input tree itself is left untouched.
package plugin

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/phobologic/dslgen/internal/ast"
	"github.com/phobologic/dslgen/internal/core"
)

// Registry answers which methods trigger a generator and how to launch it.
type Registry interface {
	HasAnyDslPlugin() bool
	FindDslPlugin(method string) (string, bool)
	ExtraArgs() []string
	Executable() string
}

// Spawner runs a program and returns its standard output. A non-nil error
// means no output was produced, even if the program printed something.
type Spawner interface {
	Spawn(ctx context.Context, name string, args []string) (string, error)
}

// GlobalState is the read-only state shared by every Run.
type GlobalState struct {
	Registry Registry
	Spawner  Spawner
	Errors   *core.ErrorQueue
	Logger   *slog.Logger
}

func (gs *GlobalState) logger() *slog.Logger {
	if gs.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return gs.Logger
}

// Run drives the plugins over tree, which must be the desugared form of
// file. It returns tree unchanged together with the generated files in
// discovery order. Files that are themselves plugin-generated are never
// expanded again. Generator failures are reported to gs.Errors and never
// returned; the error result is reserved for malformed trees.
func Run(ctx context.Context, gs *GlobalState, file *core.File, tree ast.Expression) (ast.Expression, []*core.File, error) {
	if file.PluginGenerated() || !gs.Registry.HasAnyDslPlugin() {
		return tree, nil, nil
	}
	walker := &spawningWalker{ctx: ctx, gs: gs, file: file}
	if _, err := ast.Walk(tree, walker); err != nil {
		return nil, nil, err
	}
	return tree, walker.results, nil
}

// SplitGeneratedPath recovers the originating path and sequence number from
// the path of a plugin-generated file.
func SplitGeneratedPath(path string) (origin string, seq int, ok bool) {
	origin, rest, found := strings.Cut(path, generatedSuffix)
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(rest, ".rbi"))
	if err != nil || n < 0 || !strings.HasSuffix(rest, ".rbi") {
		return "", 0, false
	}
	return origin, n, true
}
