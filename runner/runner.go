// Package runner executes job commands. The engine depends only on the
// [Runner] interface; [Shell] is the production implementation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Result is the outcome of a command that ran to completion.
type Result struct {
	// ExitCode is the process exit code, or -1 if it was terminated by a
	// signal.
	ExitCode int
	// Status is the human-readable exit status, e.g. "exit status 1".
	Status string
	// Output holds stdout and stderr interleaved in write order.
	Output string
}

// Runner executes a command string.
//
// A non-nil error means the command could not be run at all (a runner
// error). A command that ran and exited non-zero is reported through
// Result.ExitCode with a nil error.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, command string) (Result, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, command string) (Result, error) { return f(ctx, command) }

// Error is a runner-level failure: the process could not be started.
type Error struct {
	Command string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("runner: start %q: %v", e.Command, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Shell runs commands through a POSIX shell ("sh -c <command>").
type Shell struct {
	// Path is the shell binary. Empty means "sh".
	Path string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the worker's own environment.
	Env []string
}

// NewShell returns a Shell using "sh" in the current directory.
func NewShell() *Shell {
	return &Shell{}
}

// Run starts command and waits for it to exit.
func (s *Shell) Run(ctx context.Context, command string) (Result, error) {
	path := s.Path
	if path == "" {
		path = "sh"
	}

	cmd := exec.CommandContext(ctx, path, "-c", command)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0, Status: cmd.ProcessState.String(), Output: out.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			ExitCode: exitErr.ExitCode(),
			Status:   exitErr.ProcessState.String(),
			Output:   out.String(),
		}, nil
	}

	return Result{ExitCode: -1, Output: out.String()}, &Error{Command: command, Err: err}
}
