// Package compiler runs toolchain compile steps on the host.
package compiler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	waitDelay      = 2 * time.Second

	// MaxDiagnosticBytes caps the compiler output kept for diagnostics.
	MaxDiagnosticBytes = 64 * 1024
)

// Compiler compiles staged sources inside a workspace directory.
type Compiler struct {
	runner  sandbox.CommandRunner
	timeout time.Duration
}

// New creates a compiler. A zero timeout uses 30s.
func New(runner sandbox.CommandRunner, timeout time.Duration) *Compiler {
	if runner == nil {
		runner = sandbox.OSRunner{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Compiler{runner: runner, timeout: timeout}
}

// Compile builds program in dir. Languages without a compile step succeed
// immediately. Compiler failures return a CompilationError carrying the
// compiler's stderr.
func (c *Compiler) Compile(ctx context.Context, dir string, tc toolchain.Toolchain, program toolchain.Program) error {
	args := tc.CompileArgs(program)
	if len(args) == 0 {
		return nil
	}
	return c.Run(ctx, dir, args)
}

// Run executes one compile argv in dir.
func (c *Compiler) Run(ctx context.Context, dir string, args []string) error {
	compileCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stdout := sandbox.NewLimitedBuffer(MaxDiagnosticBytes)
	stderr := sandbox.NewLimitedBuffer(MaxDiagnosticBytes)
	start := time.Now()
	code, err := c.runner.Run(compileCtx, sandbox.Command{
		Args:      args,
		Dir:       dir,
		Stdout:    stdout,
		Stderr:    stderr,
		WaitDelay: waitDelay,
	})
	elapsed := time.Since(start)

	if errors.Is(compileCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn(ctx, "compile timed out", zap.Strings("args", args), zap.Duration("timeout", c.timeout))
		return appErr.New(appErr.CompilationError).WithMessage("Compilation timed out")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return appErr.Wrapf(ctxErr, appErr.JudgeSystemError, "compile cancelled")
	}
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "start compiler failed: %v", err)
	}
	if code != 0 {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = strings.TrimSpace(stdout.String())
		}
		if diag == "" {
			diag = "Compilation failed."
		}
		logger.Debug(ctx, "compile failed", zap.Int("exit_code", code), zap.Duration("elapsed", elapsed))
		return appErr.New(appErr.CompilationError).WithMessage(diag).WithDetail("exit_code", code)
	}
	logger.Debug(ctx, "compile succeeded", zap.Duration("elapsed", elapsed))
	return nil
}
