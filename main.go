// dslgen runs subprocess DSL plugins over a Ruby project and emits the
// generated declaration files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/dslgen/internal/ast"
	"github.com/phobologic/dslgen/internal/config"
	"github.com/phobologic/dslgen/internal/core"
	"github.com/phobologic/dslgen/internal/discover"
	"github.com/phobologic/dslgen/internal/lang"
	"github.com/phobologic/dslgen/internal/model"
	"github.com/phobologic/dslgen/internal/plugin"
	"github.com/phobologic/dslgen/internal/subprocess"
	"github.com/phobologic/dslgen/internal/toon"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

var errDiagnostics = errors.New("errors reported")

type options struct {
	configPath  string
	outDir      string
	format      string
	jobs        int
	maxFileSize int
	exclude     []string
	suppressed  []int
	silenced    []int
	logLevel    string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "dslgen [flags] [path]",
		Short: "Run subprocess DSL plugins over a Ruby project",
		Long: `dslgen finds calls to configured DSL methods inside Ruby class and module
bodies, runs the configured generator once per call, and wraps each
generator's output in the class/module nesting of the call so the
declarations it produces resolve as if written in place.

Generators are run as: <executable> <ruby_extra_args...> <command>
  --class <class name> --method <method> --source <call source>`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return generate(cmd.Context(), &opts, root, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("dslgen {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "DSL plugin configuration file (YAML)")
	flags.StringVarP(&opts.outDir, "out", "o", "", "directory to write generated .rbi files to")
	flags.StringVarP(&opts.format, "format", "f", "toon", "report format: toon or yaml")
	flags.IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of files parsed in parallel")
	flags.IntVar(&opts.maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "gitignore-style patterns of files to skip")
	flags.IntSliceVar(&opts.suppressed, "suppress-error-code", nil, "error codes to drop")
	flags.IntSliceVar(&opts.silenced, "silence-error-code", nil, "error codes to keep out of the output and the error count")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func generate(ctx context.Context, opts *options, root string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.format != "toon" && opts.format != "yaml" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	logger := newLogger(stderr, opts.logLevel)

	var cfg *config.Config
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	files, err := discover.Files(root, discover.Options{Exclude: opts.exclude})
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	files = filterBySize(root, files, opts.maxFileSize, logger)
	if len(files) == 0 {
		return fmt.Errorf("no Ruby files found")
	}

	errs := core.NewErrorQueue()
	errs.Suppress(opts.suppressed...)
	errs.Silence(opts.silenced...)

	parsed, err := parseFilesConcurrent(ctx, root, files, opts.jobs, errs, logger)
	if err != nil {
		return err
	}

	gs := &plugin.GlobalState{
		Registry: cfg,
		Spawner:  &subprocess.Runner{Dir: root, Timeout: cfg.Timeout()},
		Errors:   errs,
		Logger:   logger,
	}

	report := &model.Report{
		Root:     filepath.Base(root),
		Scanned:  len(parsed),
		Triggers: cfg.Triggers(),
	}
	for _, p := range parsed {
		_, units, err := plugin.Run(ctx, gs, p.file, p.tree)
		if err != nil {
			return fmt.Errorf("%s: %w", p.file.Path(), err)
		}
		for _, u := range units {
			entry := model.Unit{Source: p.file.Path(), Path: u.Path(), Bytes: len(u.Source())}
			if opts.outDir != "" {
				if entry.Written, err = writeUnit(opts.outDir, u); err != nil {
					return err
				}
			}
			report.Units = append(report.Units, entry)
		}
	}

	for _, e := range errs.Flush(stderr) {
		report.Diagnostics = append(report.Diagnostics, diagnostic(e))
	}

	out, err := encodeReport(report, opts.format)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, out)

	if n := errs.NonSilencedCount(); n > 0 {
		errs.FlushErrorCount(stderr)
		return fmt.Errorf("%w: %d", errDiagnostics, n)
	}
	return nil
}

type parsedFile struct {
	file *core.File
	tree *ast.ClassDef
}

// parseFilesConcurrent desugars every file, one parser per worker, and
// returns the results in the order of files. Unreadable files are skipped.
func parseFilesConcurrent(ctx context.Context, root string, files []discover.FileEntry, jobs int, errs *core.ErrorQueue, logger *slog.Logger) ([]parsedFile, error) {
	numWorkers := max(1, min(jobs, len(files)))

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	indexed := make([]*parsedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for range numWorkers {
		g.Go(func() error {
			// Each goroutine gets its own parser
			parser := lang.Ruby().NewParser()

			for idx := range work {
				f := files[idx]
				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					logger.Warn("skipping unreadable file", "path", f.Path, "error", err)
					continue
				}
				file := core.NewFile(filepath.ToSlash(f.Path), string(source))
				tree, err := lang.Desugar(gctx, parser, file, errs)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Warn("skipping unparsable file", "path", f.Path, "error", err)
					continue
				}
				indexed[idx] = &parsedFile{file: file, tree: tree}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parsed := make([]parsedFile, 0, len(files))
	for _, p := range indexed {
		if p != nil {
			parsed = append(parsed, *p)
		}
	}
	return parsed, nil
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, logger *slog.Logger) []discover.FileEntry {
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if maxSize > 0 && fi.Size() > int64(maxSize) {
			logger.Warn("skipping large file", "path", f.Path, "limit", maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// writeUnit stores a generated file under dir, mirroring the source layout.
func writeUnit(dir string, unit *core.File) (string, error) {
	origin, seq, ok := plugin.SplitGeneratedPath(unit.Path())
	if !ok {
		return "", fmt.Errorf("not a plugin-generated path: %s", unit.Path())
	}
	target := filepath.Join(dir, filepath.FromSlash(fmt.Sprintf("%s.plugin-generated-%d.rbi", origin, seq)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, []byte(unit.Source()), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", target, err)
	}
	return filepath.ToSlash(target), nil
}

func diagnostic(e *core.Error) model.Diagnostic {
	begin, _ := e.Loc.Position()
	var path string
	if e.Loc.File != nil {
		path = e.Loc.File.Path()
	}
	return model.Diagnostic{
		File:    path,
		Line:    begin.Line,
		Column:  begin.Column,
		Code:    e.Class.Code,
		Message: e.Header,
	}
}

func encodeReport(r *model.Report, format string) (string, error) {
	if format == "yaml" {
		data, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	return toon.Encode(r), nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
