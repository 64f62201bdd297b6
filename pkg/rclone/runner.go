package rclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for the output pipes after the
// context is done and rclone has been killed.
const DefaultWaitDelay = time.Second

// Result holds the captured outcome of a single rclone invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs the rclone binary with the given arguments.
// A non-zero exit is reported through Result.ExitCode; the error return is
// reserved for invocations that could not run to completion at all.
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs rclone as a subprocess
type ExecRunner struct {
	Binary     string
	ConfigFile string
	Env        []string
	// WaitDelay is applied to exec.Cmd.WaitDelay. Children of the binary that
	// still hold stdout/stderr would otherwise keep Run blocked past the deadline.
	WaitDelay time.Duration
}

// NewExecRunner creates a runner for the given binary
func NewExecRunner(binary, configFile string) *ExecRunner {
	return &ExecRunner{
		Binary:     binary,
		ConfigFile: configFile,
		Env:        os.Environ(),
		WaitDelay:  DefaultWaitDelay,
	}
}

// Run executes the binary and captures stdout and stderr
func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	if r.ConfigFile != "" {
		args = append([]string{"--config", r.ConfigFile}, args...)
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Env = r.Env
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s %s interrupted: %w", r.Binary, firstArg(args), ctxErr)
		}
		// rclone exited cleanly but something it spawned kept the pipes open
		if errors.Is(err, exec.ErrWaitDelay) {
			return result, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Binary missing, not executable, etc.
		return nil, fmt.Errorf("failed to run %s: %w", r.Binary, err)
	}

	return result, nil
}

func firstArg(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}
