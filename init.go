package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	sentinelStart = "# dslgen:start"
	sentinelEnd   = "# dslgen:end"

	defaultConfigPath = "dsl-plugins.yaml"
	starterConfig     = "ruby_extra_args: []\ntriggers: {}\n"
)

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "init [flags] [path-to-config]",
		Short: "Write or refresh a DSL plugin configuration file",
		Long: `Write a documented DSL plugin configuration file. The documentation header is
wrapped in sentinel comments so it can be updated in place on subsequent runs
without touching the triggers below it. Creates the file, with an empty
trigger table, if it does not exist.

path-to-config defaults to ./` + defaultConfigPath + `.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			section := generateSection()

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(stdout, section)
				return nil
			}

			path := defaultConfigPath
			if len(args) > 0 {
				path = args[0]
			}

			existing, err := os.ReadFile(path)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			var updated string
			if len(bytes.TrimSpace(existing)) == 0 {
				updated = section + "\n" + starterConfig
			} else {
				updated = applySection(string(existing), section)
			}

			if dryRun {
				_, _ = fmt.Fprint(stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote dslgen configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

// runInit runs the init subcommand on its own.
func runInit(args []string, stdout, stderr io.Writer) error {
	cmd := newInitCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// generateSection returns the full sentinel-wrapped documentation header.
func generateSection() string {
	body := `# DSL plugin configuration for dslgen.
#
# Every call to a method listed under "triggers" made directly in a class or
# module body runs:
#
#   ruby <ruby_extra_args...> <command> --class <class name> \
#        --method <method> --source <call source>
#
# The command's standard output is wrapped in the class/module nesting of the
# call and emitted as <file>//plugin-generated|<n>.rbi. A non-zero exit
# reports error 3001 at the call site.
#
# Keys:
#   ruby_extra_args  arguments placed before the command (e.g. ["-I", "lib"])
#   executable       program to run instead of "ruby"
#   timeout          per-call limit such as "30s"; unset means no limit
#   triggers         map of method name to generator command
#
# Example:
#   triggers:
#     has_many: generators/has_many.rb`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or prepending it if not. It is a pure function for easy
// testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	return section + "\n\n" + content
}
