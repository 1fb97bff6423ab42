// Package subprocess runs generator programs and captures their output.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/go-analyze/bulk"
)

// ErrFailed is wrapped by every failed invocation, whatever the cause.
var ErrFailed = errors.New("subprocess failed")

const stderrLimit = 4 << 10

// Runner spawns programs with a controlled environment. The zero value runs
// in the current directory with the sanitized parent environment and no time
// limit.
type Runner struct {
	// Dir is the working directory of spawned programs.
	Dir string
	// Env entries override or extend the parent environment.
	Env []string
	// Timeout bounds a single invocation; zero means no limit.
	Timeout time.Duration
}

// Spawn runs name with args and returns its standard output. Any launch
// failure, non-zero exit or read error returns an error wrapping ErrFailed
// and no output.
func (r *Runner) Spawn(ctx context.Context, name string, args []string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = mergeSafeEnv(r.Env)
	cmd.Stdin = nil
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s: %w: %s", ErrFailed, name, err, msg)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrFailed, name, err)
	}
	return stdout.String(), nil
}

// mergeSafeEnv returns the parent environment without dynamic loader
// variables, with env applied on top.
func mergeSafeEnv(env []string) []string {
	envKeys := make([]string, len(env))
	for i, kv := range env {
		envKeys[i], _, _ = strings.Cut(kv, "=")
	}
	safeEnv := bulk.SliceFilter(func(envVar string) bool {
		if envVar == "" || envVar == "=" || strings.HasPrefix(envVar, "LD_") {
			return false
		}
		key, _, _ := strings.Cut(envVar, "=")
		return !slices.Contains(envKeys, key)
	}, os.Environ())
	return append(safeEnv, env...)
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
