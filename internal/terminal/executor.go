// Package terminal runs workflow commands as local subprocesses.
//
// Commands run through "sh -c" in a configured working directory, bounded
// by a per-command timeout and a concurrency semaphore. Combined output is
// capped, and a bounded transcript ring feeds the workspace context
// builder.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxConcurrent  = 4
	defaultMaxOutputBytes = 64 * 1024
	defaultHistorySize    = 50
)

// Options configures an Executor. Zero values fall back to defaults.
type Options struct {
	WorkDir        string
	Timeout        time.Duration
	MaxConcurrent  int
	MaxOutputBytes int
	HistorySize    int
}

// Result carries the outcome of one command.
type Result struct {
	Command   string
	Output    string // combined stdout and stderr
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Executor runs commands as local subprocesses. Safe for concurrent use.
type Executor struct {
	opts Options
	log  *logging.Logger

	// Semaphore for max concurrent
	semaphore chan struct{}

	mu      sync.Mutex
	history []string
}

// NewExecutor creates an executor with opts, applying defaults for any
// zero values.
func NewExecutor(opts Options, log *logging.Logger) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = defaultMaxOutputBytes
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}

	return &Executor{
		opts:      opts,
		log:       log.Named("terminal"),
		semaphore: make(chan struct{}, opts.MaxConcurrent),
	}
}

// Run executes command through "sh -c" and returns its combined output.
// Non-zero exit and timeout return the partial Result alongside the error
// so callers can still report what the command printed.
func (e *Executor) Run(ctx context.Context, command string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}

	// Acquire semaphore slot
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if e.opts.WorkDir != "" {
		cmd.Dir = e.opts.WorkDir
	}

	output := newCapBuffer(e.opts.MaxOutputBytes)
	cmd.Stdout = output
	cmd.Stderr = output

	e.log.Debug(ctx, "executing command", zap.String("command", command))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Command:   command,
		Output:    output.String(),
		Duration:  elapsed,
		Truncated: output.Truncated(),
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			e.record(result, "timed out")
			e.log.Warn(ctx, "command timed out",
				zap.String("command", command),
				zap.Duration("timeout", e.opts.Timeout))
			return result, fmt.Errorf("%w after %s", ErrTimeout, e.opts.Timeout)
		}
		return result, fmt.Errorf("command canceled: %w", ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			e.record(result, fmt.Sprintf("exit status %d", result.ExitCode))
			e.log.Debug(ctx, "command failed",
				zap.String("command", command),
				zap.Int("exit_code", result.ExitCode),
				zap.Duration("duration", elapsed))
			return result, fmt.Errorf("%w: status %d", ErrNonZeroExit, result.ExitCode)
		}
		result.ExitCode = -1
		return result, fmt.Errorf("starting command: %w", err)
	}

	e.record(result, "")
	e.log.Debug(ctx, "command completed",
		zap.String("command", command),
		zap.Duration("duration", elapsed))
	return result, nil
}

// History returns up to n of the most recent transcript lines.
func (e *Executor) History(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n <= 0 || len(e.history) == 0 {
		return nil
	}
	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]string, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// record appends a command transcript to the bounded history ring.
func (e *Executor) record(r *Result, note string) {
	lines := []string{"$ " + r.Command}
	if out := strings.TrimRight(r.Output, "\n"); out != "" {
		lines = append(lines, strings.Split(out, "\n")...)
	}
	if note != "" {
		lines = append(lines, note)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, lines...)
	if overflow := len(e.history) - e.opts.HistorySize; overflow > 0 {
		e.history = e.history[overflow:]
	}
}

// capBuffer keeps the first max bytes written and drops the rest. os/exec
// serializes writes when stdout and stderr share a writer, so no locking
// is needed here.
type capBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCapBuffer(max int) *capBuffer {
	return &capBuffer{max: max}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	switch {
	case remaining >= len(p):
		b.buf.Write(p)
	case remaining > 0:
		b.buf.Write(p[:remaining])
		b.truncated = true
	case len(p) > 0:
		b.truncated = true
	}
	return len(p), nil
}

func (b *capBuffer) String() string {
	return b.buf.String()
}

func (b *capBuffer) Truncated() bool {
	return b.truncated
}
