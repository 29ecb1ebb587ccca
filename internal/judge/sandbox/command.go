// Package sandbox runs untrusted programs inside resource-bounded containers
// and classifies how they ended.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Command is one host process invocation, such as a compile step.
type Command struct {
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long Run waits for I/O after the process is killed.
	WaitDelay time.Duration
}

// CommandRunner starts a process and waits for it. A process that ran and
// exited returns its exit code with a nil error. The error is reserved for
// failures to start or wait.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

// Run implements CommandRunner.
func (OSRunner) Run(ctx context.Context, cmd Command) (int, error) {
	if len(cmd.Args) == 0 {
		return -1, fmt.Errorf("command is required")
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	c.WaitDelay = cmd.WaitDelay

	err := c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		if errors.Is(err, exec.ErrWaitDelay) && c.ProcessState != nil {
			return c.ProcessState.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// LimitedBuffer keeps the first max bytes written and discards the rest.
type LimitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

// NewLimitedBuffer creates a buffer holding at most max bytes.
func NewLimitedBuffer(max int) *LimitedBuffer {
	return &LimitedBuffer{max: max}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *LimitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
