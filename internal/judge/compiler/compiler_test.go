package compiler

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

type stubRunner struct {
	calls []sandbox.Command
	run   func(ctx context.Context, cmd sandbox.Command) (int, error)
}

func (s *stubRunner) Run(ctx context.Context, cmd sandbox.Command) (int, error) {
	s.calls = append(s.calls, cmd)
	return s.run(ctx, cmd)
}

func lookup(t *testing.T, lang string) toolchain.Toolchain {
	t.Helper()
	reg, err := toolchain.NewRegistry(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	tc, err := reg.Lookup(lang)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return tc
}

func TestCompileNoopForInterpreted(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	c := New(runner, 0)
	prog := toolchain.Program{SourceFile: "submission_x.py"}
	if err := c.Compile(context.Background(), t.TempDir(), lookup(t, "python"), prog); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("compiler should not run for python")
	}
}

func TestCompileSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &stubRunner{run: func(context.Context, sandbox.Command) (int, error) { return 0, nil }}
	prog := toolchain.Program{SourceFile: "submission_x.cpp", ExecName: "submission_x_exec"}
	if err := New(runner, time.Second).Compile(context.Background(), dir, lookup(t, "cpp"), prog); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.Dir != dir {
		t.Fatalf("dir = %s, want %s", call.Dir, dir)
	}
	want := []string{"g++", "-o", "submission_x_exec", "submission_x.cpp"}
	if !reflect.DeepEqual(call.Args, want) {
		t.Fatalf("args = %v, want %v", call.Args, want)
	}
}

func TestCompileFailureCarriesStderr(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{run: func(_ context.Context, cmd sandbox.Command) (int, error) {
		_, _ = io.WriteString(cmd.Stderr, "main.cpp:1:20: error: expected ';' before '}' token\n")
		return 1, nil
	}}
	prog := toolchain.Program{SourceFile: "main.cpp", ExecName: "main"}
	err := New(runner, time.Second).Compile(context.Background(), t.TempDir(), lookup(t, "cpp"), prog)
	if appErr.GetCode(err) != appErr.CompilationError {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if err.Error() != "main.cpp:1:20: error: expected ';' before '}' token" {
		t.Fatalf("diag = %q", err.Error())
	}
}

func TestCompileFailureCapsDiagnostic(t *testing.T) {
	t.Parallel()

	line := "tmpl.cpp:9:1: error: no matching function for call to 'f<...>'\n"
	runner := &stubRunner{run: func(_ context.Context, cmd sandbox.Command) (int, error) {
		for i := 0; i < 20000; i++ {
			_, _ = io.WriteString(cmd.Stderr, line)
		}
		return 1, nil
	}}
	err := New(runner, time.Second).Run(context.Background(), t.TempDir(), []string{"g++", "tmpl.cpp"})
	if appErr.GetCode(err) != appErr.CompilationError {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if len(err.Error()) > MaxDiagnosticBytes {
		t.Fatalf("diagnostic is %d bytes, want at most %d", len(err.Error()), MaxDiagnosticBytes)
	}
	if !strings.HasPrefix(err.Error(), "tmpl.cpp:9:1: error") {
		t.Fatalf("diagnostic lost its head: %q", err.Error()[:40])
	}
}

func TestCompileFailureWithoutOutput(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{run: func(context.Context, sandbox.Command) (int, error) { return 2, nil }}
	err := New(runner, time.Second).Run(context.Background(), t.TempDir(), []string{"javac", "Main.java"})
	if appErr.GetCode(err) != appErr.CompilationError || err.Error() != "Compilation failed." {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileTimeout(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{run: func(ctx context.Context, _ sandbox.Command) (int, error) {
		<-ctx.Done()
		return -1, nil
	}}
	err := New(runner, 30*time.Millisecond).Run(context.Background(), t.TempDir(), []string{"g++", "slow.cpp"})
	if appErr.GetCode(err) != appErr.CompilationError || err.Error() != "Compilation timed out" {
		t.Fatalf("expected compile timeout, got %v", err)
	}
}

func TestCompileCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &stubRunner{run: func(ctx context.Context, _ sandbox.Command) (int, error) {
		return -1, ctx.Err()
	}}
	err := New(runner, time.Second).Run(ctx, t.TempDir(), []string{"g++", "a.cpp"})
	if appErr.GetCode(err) != appErr.JudgeSystemError {
		t.Fatalf("expected JudgeSystemError, got %v", err)
	}
}
