// Package process runs external commands and streams their output to the log.
package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"provisioner/internal/apperrors"
	"slices"
	"strings"
	"sync"
)

// maxLineSize bounds a single logged output line.
const maxLineSize = 1 << 20

// Executor runs a command to completion and returns its exit code.
// A non-zero exit code is not an error; callers interpret it.
type Executor interface {
	Run(argv []string, env map[string]string) (int, error)
}

// Runner spawns child processes with the current environment plus an
// overlay, logging every stdout/stderr line as it arrives.
type Runner struct {
	logger   *slog.Logger
	redacted map[string]bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for command and output lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRedactedFlags masks the argument following any of the given flags
// when the command line is logged.
func WithRedactedFlags(flags ...string) Option {
	return func(r *Runner) {
		for _, f := range flags {
			r.redacted[f] = true
		}
	}
}

// NewRunner creates a process runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:   slog.With("component", "process"),
		redacted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts argv[0] with the remaining arguments and blocks until it exits.
// Both output pipes are drained concurrently and fully consumed before
// Run returns. Failing to start the process is a SpawnFailed error.
func (r *Runner) Run(argv []string, env map[string]string) (int, error) {
	if len(argv) == 0 {
		return -1, apperrors.SpawnFailed("process.start", errors.New("empty command"))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, apperrors.SpawnFailed("process.stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, apperrors.SpawnFailed("process.stderr", err)
	}

	logger := r.logger.With("command", argv[0])
	logger.Info("Running command", "args", r.redact(argv[1:]), "envOverlay", slices.Sorted(maps.Keys(env)))

	if err := cmd.Start(); err != nil {
		return -1, apperrors.SpawnFailed("process.start", err)
	}
	logger = logger.With("pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(stdout, logger, slog.LevelInfo, "stdout")
	}()
	go func() {
		defer wg.Done()
		drain(stderr, logger, slog.LevelWarn, "stderr")
	}()

	// Wait closes the pipes, so every reader must be done first.
	wg.Wait()

	err = cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		logger.Error("Waiting for process failed", "error", err)
	}

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	logger.Info("Command finished", "exitCode", code)
	return code, nil
}

// drain logs src line by line until EOF.
func drain(src io.Reader, logger *slog.Logger, level slog.Level, stream string) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		logger.Log(context.Background(), level, scanner.Text(), "stream", stream)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Reading process output failed", "stream", stream, "error", err)
		// Keep the pipe flowing so the child cannot block on a full buffer.
		_, _ = io.Copy(io.Discard, src)
	}
}

// mergeEnv appends the overlay in key order; exec keeps the last value of a
// duplicated key, so overlay entries win.
func mergeEnv(base []string, overlay map[string]string) []string {
	env := make([]string, 0, len(base)+len(overlay))
	env = append(env, base...)
	for _, k := range slices.Sorted(maps.Keys(overlay)) {
		env = append(env, k+"="+overlay[k])
	}
	return env
}

func (r *Runner) redact(args []string) string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if r.redacted[out[i]] {
			out[i+1] = "******"
			i++
		}
	}
	return strings.Join(out, " ")
}
