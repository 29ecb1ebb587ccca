// Package oracle runs a problem's reference solution to produce the expected
// output for an input.
package oracle

import (
	"context"
	"io"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/testdata"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// ContainerRole distinguishes the oracle container from the user's.
	ContainerRole = "oracle"

	execName   = "solution_exec"
	outputName = "expected_output.txt"

	defaultImage   = "gcc:latest"
	defaultTimeout = 10 * time.Second
)

// Expected is an optional reference output. OK is false when no output could
// be produced, with Reason describing why.
type Expected struct {
	Value  string
	Reason string
	OK     bool
}

// Some wraps a produced output.
func Some(value string) Expected {
	return Expected{Value: value, OK: true}
}

// None records why no output was produced.
func None(reason string) Expected {
	return Expected{Reason: reason}
}

// Ptr returns the value as a pointer, or nil for None.
func (e Expected) Ptr() *string {
	if !e.OK {
		return nil
	}
	v := e.Value
	return &v
}

// SourceReader opens per-problem files.
type SourceReader interface {
	Open(ctx context.Context, problemID, name string) (io.ReadCloser, error)
}

// Builder runs a host compile command.
type Builder interface {
	Run(ctx context.Context, dir string, args []string) error
}

// Executor runs a program in the sandbox.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) (sandbox.Outcome, error)
}

// Config controls the reference run.
type Config struct {
	Image   string        `yaml:"image"`
	Timeout time.Duration `yaml:"timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Image == "" {
		c.Image = defaultImage
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Oracle compiles and runs reference solutions.
type Oracle struct {
	cfg      Config
	sources  SourceReader
	builder  Builder
	executor Executor
}

// New creates an oracle.
func New(cfg Config, sources SourceReader, builder Builder, executor Executor) *Oracle {
	cfg.ApplyDefaults()
	return &Oracle{cfg: cfg, sources: sources, builder: builder, executor: executor}
}

// ProduceExpected runs the reference solution of problemID on inputFile.
// Failures are reported as None and never returned as errors.
func (o *Oracle) ProduceExpected(ctx context.Context, problemID string, ws *workspace.Workspace, inputFile string) Expected {
	value, err := o.produce(ctx, problemID, ws, inputFile)
	if err != nil {
		logger.Warn(ctx, "reference solution failed", zap.String("problem_id", problemID), zap.Error(err))
		return None(err.Error())
	}
	return Some(value)
}

func (o *Oracle) produce(ctx context.Context, problemID string, ws *workspace.Workspace, inputFile string) (string, error) {
	src, err := o.sources.Open(ctx, problemID, testdata.SolutionFile)
	if err != nil {
		if appErr.Is(err, appErr.NotFound) {
			return "", appErr.New(appErr.ReferenceSolutionFailed).WithMessage("Reference solution not found")
		}
		return "", err
	}
	err = ws.AddSource(testdata.SolutionFile, src)
	src.Close()
	if err != nil {
		return "", err
	}

	if err := o.builder.Run(ctx, ws.Root, []string{"g++", "-o", execName, testdata.SolutionFile}); err != nil {
		if appErr.Is(err, appErr.CompilationError) {
			return "", appErr.New(appErr.ReferenceSolutionFailed).WithMessagef("Reference solution compilation failed: %s", err.Error())
		}
		return "", err
	}

	outcome, err := o.executor.Execute(ctx, sandbox.Request{
		Name:       sandbox.ContainerName(ws.ID, ContainerRole),
		HostDir:    ws.HostPath(),
		Image:      o.cfg.Image,
		Command:    []string{"./" + execName},
		InputFile:  inputFile,
		OutputFile: ws.OutputPath(outputName),
		Timeout:    o.cfg.Timeout,
	})
	if err != nil {
		return "", err
	}
	if outcome.Status != sandbox.StatusSuccess {
		return "", appErr.New(appErr.ReferenceSolutionFailed).
			WithMessagef("Reference solution failed: %s", outcome.Diagnostic).
			WithDetail("status", string(outcome.Status))
	}
	return verdict.ReadTrimmed(outcome.OutputFile)
}
