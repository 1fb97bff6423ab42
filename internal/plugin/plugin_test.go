package plugin

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/dslgen/internal/ast"
	"github.com/phobologic/dslgen/internal/config"
	"github.com/phobologic/dslgen/internal/core"
	"github.com/phobologic/dslgen/internal/lang"
)

type spawnCall struct {
	name string
	args []string
}

// fakeSpawner echoes the --source argument back as a comment, unless the
// source is listed in fail.
type fakeSpawner struct {
	calls []spawnCall
	fail  map[string]bool
}

func (s *fakeSpawner) Spawn(_ context.Context, name string, args []string) (string, error) {
	s.calls = append(s.calls, spawnCall{name: name, args: slices.Clone(args)})
	source := argAfter(args, "--source")
	if s.fail[source] {
		return "", errors.New("exit status 1")
	}
	return "# " + source + "\n", nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func desugar(t *testing.T, path, src string) (*core.File, *ast.ClassDef) {
	t.Helper()
	file := core.NewFile(path, src)
	errs := core.NewErrorQueue()
	tree, err := lang.Desugar(context.Background(), lang.Ruby().NewParser(), file, errs)
	require.NoError(t, err)
	require.Empty(t, errs.Drain(), "fixture should parse cleanly")
	return file, tree
}

func newState(registry Registry, spawner Spawner) *GlobalState {
	return &GlobalState{Registry: registry, Spawner: spawner, Errors: core.NewErrorQueue()}
}

func runSource(t *testing.T, gs *GlobalState, src string) []*core.File {
	t.Helper()
	file, tree := desugar(t, "a.rb", src)
	out, units, err := Run(context.Background(), gs, file, tree)
	require.NoError(t, err)
	assert.Same(t, tree, out)
	return units
}

func sources(units []*core.File) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Source()
	}
	return out
}

func TestRunNoPluginsConfigured(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{}
	gs := newState(config.New("", nil, nil), spawner)
	units := runSource(t, gs, "class A\n  gen :x\nend\n")

	assert.Empty(t, units)
	assert.Empty(t, spawner.calls)
}

func TestRunNilConfig(t *testing.T) {
	t.Parallel()

	var cfg *config.Config
	spawner := &fakeSpawner{}
	units := runSource(t, newState(cfg, spawner), "class A\n  gen :x\nend\n")

	assert.Empty(t, units)
	assert.Empty(t, spawner.calls)
}

func TestRunWrapsNesting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "top level class",
			src:  "class A\n  gen :x\nend\n",
			want: "class A;\n# gen :x\nend;",
		},
		{
			name: "top level module",
			src:  "module M\n  gen :x\nend\n",
			want: "module M;\n# gen :x\nend;",
		},
		{
			name: "class in module",
			src:  "module M\n  class B < Base\n    gen :y\n  end\nend\n",
			want: "module M;class B;\n# gen :y\nend;end;",
		},
		{
			name: "singleton class",
			src:  "class A\n  class << self\n    gen :z\n  end\nend\n",
			want: "class A;class << self;\n# gen :z\nend;end;",
		},
		{
			name: "qualified name",
			src:  "class A::B::C\n  gen\nend\n",
			want: "class A::B::C;\n# gen\nend;",
		},
		{
			name: "root qualified name",
			src:  "class ::Top\n  gen :t\nend\n",
			want: "class ::Top;\n# gen :t\nend;",
		},
		{
			name: "module qualified inside class",
			src:  "class A\n  module B::C\n    gen(:w)\n  end\nend\n",
			want: "class A;module B::C;\n# gen(:w)\nend;end;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), &fakeSpawner{})
			units := runSource(t, gs, tt.src)
			require.Len(t, units, 1)
			assert.Equal(t, tt.want, units[0].Source())
			assert.True(t, units[0].PluginGenerated())
			assert.Equal(t, "a.rb//plugin-generated|0.rbi", units[0].Path())
		})
	}
}

func TestRunGeneratorArguments(t *testing.T) {
	t.Parallel()

	cfg := config.New("ruby", []string{"-I", "lib"}, map[string]string{"has_money": "gen/money.rb"})
	spawner := &fakeSpawner{}
	runSource(t, newState(cfg, spawner), "module Shop\n  class Order\n    has_money :total, currency: :usd\n  end\nend\n")

	require.Len(t, spawner.calls, 1)
	assert.Equal(t, "ruby", spawner.calls[0].name)
	assert.Equal(t, []string{
		"-I", "lib",
		"gen/money.rb",
		"--class", "Order",
		"--method", "has_money",
		"--source", "has_money :total, currency: :usd",
	}, spawner.calls[0].args)
}

func TestRunClassArgumentIsVerbatimName(t *testing.T) {
	t.Parallel()

	cfg := config.New("", nil, map[string]string{"gen": "gen.rb"})
	spawner := &fakeSpawner{}
	runSource(t, newState(cfg, spawner), "class A::B\n  gen\n  class << self\n    gen\n  end\nend\n")

	require.Len(t, spawner.calls, 2)
	assert.Equal(t, "A::B", argAfter(spawner.calls[0].args, "--class"))
	assert.Equal(t, "self", argAfter(spawner.calls[1].args, "--class"))
}

func TestRunOnlyDirectBodyCalls(t *testing.T) {
	t.Parallel()

	src := `gen :top
class A
  def helper
    gen :in_method
  end
  if something
    gen :in_condition
  end
  other :x
  gen :direct
end
`
	spawner := &fakeSpawner{}
	units := runSource(t, newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), spawner), src)

	require.Len(t, units, 1)
	assert.Equal(t, "class A;\n# gen :direct\nend;", units[0].Source())
	require.Len(t, spawner.calls, 1)
}

func TestRunFindsClassesInsideCompoundStatements(t *testing.T) {
	t.Parallel()

	src := `if defined?(Rails)
  class A
    gen :a
  end
end
`
	units := runSource(t, newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), &fakeSpawner{}), src)

	require.Len(t, units, 1)
	assert.Equal(t, "class A;\n# gen :a\nend;", units[0].Source())
}

func TestRunOrderAndSequence(t *testing.T) {
	t.Parallel()

	src := `class A
  gen :a1
  gen :a2
  class Inner
    gen :inner
  end
end
module B
  gen :b
end
`
	units := runSource(t, newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), &fakeSpawner{}), src)

	assert.Equal(t, []string{
		"class A;\n# gen :a1\nend;",
		"class A;\n# gen :a2\nend;",
		"class A;class Inner;\n# gen :inner\nend;end;",
		"module B;\n# gen :b\nend;",
	}, sources(units))
	for i, u := range units {
		_, seq, ok := SplitGeneratedPath(u.Path())
		require.True(t, ok)
		assert.Equal(t, i, seq)
	}
}

func TestRunGeneratorFailure(t *testing.T) {
	t.Parallel()

	src := "class A\n  gen :ok1\n  gen :bad\n  gen :ok2\nend\nclass B\n  gen :ok3\nend\n"
	spawner := &fakeSpawner{fail: map[string]bool{"gen :bad": true}}
	gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), spawner)
	units := runSource(t, gs, src)

	assert.Len(t, spawner.calls, 4)
	assert.Equal(t, []string{
		"class A;\n# gen :ok1\nend;",
		"class A;\n# gen :ok2\nend;",
		"class B;\n# gen :ok3\nend;",
	}, sources(units))
	assert.Equal(t, "a.rb//plugin-generated|1.rbi", units[1].Path())

	errs := gs.Errors.Drain()
	require.Len(t, errs, 1)
	assert.Equal(t, core.SubprocessError, errs[0].Class)
	assert.Equal(t, "gen :bad", errs[0].Loc.Source())
	assert.Equal(t, "Error while executing subprocess plugin `gen.rb`", errs[0].Header)
	assert.Equal(t, []string{"exit status 1"}, errs[0].Lines)
	begin, _ := errs[0].Loc.Position()
	assert.Equal(t, core.Detail{Line: 3, Column: 3}, begin)
}

func TestRunSkipsGeneratedFiles(t *testing.T) {
	t.Parallel()

	file := core.NewGeneratedFile("a.rb//plugin-generated|0.rbi", "class A;\ngen :x\nend;")
	tree, err := lang.Desugar(context.Background(), lang.Ruby().NewParser(), file, core.NewErrorQueue())
	require.NoError(t, err)

	spawner := &fakeSpawner{}
	gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), spawner)
	out, units, err := Run(context.Background(), gs, file, tree)
	require.NoError(t, err)
	assert.Same(t, tree, out)
	assert.Empty(t, units)
	assert.Empty(t, spawner.calls)
}

func TestRunSuppressedFailureStillSkipsUnit(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{fail: map[string]bool{"gen": true}}
	gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), spawner)
	gs.Errors.Suppress(core.SubprocessError.Code)
	units := runSource(t, gs, "class A\n  gen\nend\n")

	assert.Empty(t, units)
	assert.Empty(t, gs.Errors.Drain())
	assert.Zero(t, gs.Errors.NonSilencedCount())
}

func TestRunEmptyOutputIsSuccess(t *testing.T) {
	t.Parallel()

	gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), spawnerFunc(func([]string) (string, error) {
		return "", nil
	}))
	units := runSource(t, gs, "class A\n  gen\nend\n")

	require.Len(t, units, 1)
	assert.Equal(t, "class A;\nend;", units[0].Source())
}

func TestRunMalformedScopeAborts(t *testing.T) {
	t.Parallel()

	file := core.NewFile("a.rb", "class x\nend\n")
	tree := &ast.ClassDef{
		IsRoot: true,
		Name:   &ast.EmptyTree{},
		RHS: []ast.Expression{
			&ast.ClassDef{Name: &ast.UnresolvedIdent{Name: "x"}},
		},
	}
	gs := newState(config.New("", nil, map[string]string{"gen": "gen.rb"}), &fakeSpawner{})

	_, units, err := Run(context.Background(), gs, file, tree)
	require.ErrorIs(t, err, ErrMalformedScope)
	assert.Nil(t, units)
}

func TestSplitGeneratedPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		origin string
		seq    int
		ok     bool
	}{
		{"a.rb//plugin-generated|0.rbi", "a.rb", 0, true},
		{"app/models/user.rb//plugin-generated|12.rbi", "app/models/user.rb", 12, true},
		{"a.rb", "", 0, false},
		{"a.rb//plugin-generated|x.rbi", "", 0, false},
		{"a.rb//plugin-generated|3.rb", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			origin, seq, ok := SplitGeneratedPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.origin, origin)
			assert.Equal(t, tt.seq, seq)
		})
	}
}

type spawnerFunc func(args []string) (string, error)

func (f spawnerFunc) Spawn(_ context.Context, _ string, args []string) (string, error) {
	return f(args)
}
