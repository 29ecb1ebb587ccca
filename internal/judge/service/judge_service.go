// Package service runs the run, submit and system-run pipelines for one
// decoded submission.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/observer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/oracle"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	runnerRole = "runner"

	customInputFile  = "custom_input.txt"
	customOutputFile = "custom_output.txt"
)

// Compiler builds staged programs.
type Compiler interface {
	Compile(ctx context.Context, dir string, tc toolchain.Toolchain, program toolchain.Program) error
}

// Executor runs programs in the sandbox.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) (sandbox.Outcome, error)
}

// Oracle produces reference outputs.
type Oracle interface {
	ProduceExpected(ctx context.Context, problemID string, ws *workspace.Workspace, inputFile string) oracle.Expected
}

// ProblemFiles reads per-problem files such as the sample input.
type ProblemFiles interface {
	ReadAll(ctx context.Context, problemID, name string) (string, error)
}

// TestStager materializes the test set of a submission.
type TestStager interface {
	Stage(ctx context.Context, ws *workspace.Workspace, sub model.Submission) ([]workspace.TestCase, error)
}

// Service handles judge pipelines.
type Service struct {
	registry   *toolchain.Registry
	workspaces *workspace.Manager
	compiler   Compiler
	executor   Executor
	oracle     Oracle
	problems   ProblemFiles
	tests      TestStager
	metrics    observer.MetricsRecorder
}

// Config holds service dependencies.
type Config struct {
	Registry   *toolchain.Registry
	Workspaces *workspace.Manager
	Compiler   Compiler
	Executor   Executor
	Oracle     Oracle
	Problems   ProblemFiles
	Tests      TestStager
	Metrics    observer.MetricsRecorder
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("toolchain registry is required")
	}
	if cfg.Workspaces == nil {
		return nil, fmt.Errorf("workspace manager is required")
	}
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem files are required")
	}
	if cfg.Tests == nil {
		return nil, fmt.Errorf("test stager is required")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &Service{
		registry:   cfg.Registry,
		workspaces: cfg.Workspaces,
		compiler:   cfg.Compiler,
		executor:   cfg.Executor,
		oracle:     cfg.Oracle,
		problems:   cfg.Problems,
		tests:      cfg.Tests,
		metrics:    metrics,
	}, nil
}

// Handle runs the pipeline for sub's mode. It never panics and always
// returns a verdict; unexpected faults become InternalFailure.
func (s *Service) Handle(ctx context.Context, sub model.Submission) (v verdict.Verdict) {
	if sub.ExecutionID == "" {
		sub.ExecutionID = model.NewExecutionID(sub.ID)
	}
	ctx = logger.WithSubmission(ctx, sub.ID, sub.ExecutionID)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			v = s.recovered(ctx, r)
		}
		s.metrics.ObserveVerdict(ctx, string(sub.Mode), v.Status())
		logger.Info(ctx, "judge finished",
			zap.String("mode", string(sub.Mode)),
			zap.String("verdict", v.Kind.String()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	switch sub.Mode {
	case model.ModeRun:
		return s.run(ctx, sub)
	case model.ModeSubmit:
		return s.submit(ctx, sub)
	case model.ModeSystemRun:
		return s.systemRun(ctx, sub)
	default:
		return verdict.Failed(fmt.Sprintf("unknown mode %q", sub.Mode))
	}
}

// acquire creates the workspace and returns its release func.
func (s *Service) acquire(ctx context.Context, executionID string) (*workspace.Workspace, func(), error) {
	ws, err := s.workspaces.Acquire(executionID)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := s.workspaces.Release(ws); err != nil {
			logger.Error(ctx, "release workspace failed", zap.String("path", ws.Root), zap.Error(err))
		}
	}
	return ws, release, nil
}

// compile stages code and builds it, recording the compile metric.
func (s *Service) compile(ctx context.Context, ws *workspace.Workspace, tc toolchain.Toolchain, code string) (toolchain.Program, error) {
	program, err := tc.ProgramFor(code, ws.ID)
	if err != nil {
		return program, err
	}
	if _, err := ws.StageSource(program.SourceFile, code); err != nil {
		return program, err
	}
	if !tc.NeedsCompile() {
		return program, nil
	}
	start := time.Now()
	err = s.compiler.Compile(ctx, ws.Root, tc, program)
	s.metrics.ObserveCompile(ctx, string(tc.Language), err == nil, time.Since(start))
	return program, err
}

// execute runs the user program on one input.
func (s *Service) execute(ctx context.Context, ws *workspace.Workspace, tc toolchain.Toolchain, program toolchain.Program, inputFile, outputName string) (sandbox.Outcome, error) {
	outcome, err := s.executor.Execute(ctx, sandbox.Request{
		Name:       sandbox.ContainerName(ws.ID, runnerRole),
		HostDir:    ws.HostPath(),
		Image:      tc.Image,
		Command:    tc.RunArgs(program),
		InputFile:  inputFile,
		OutputFile: ws.OutputPath(outputName),
		Timeout:    tc.Timeout,
		MemoryMB:   tc.MemoryMB,
	})
	if err == nil {
		s.metrics.ObserveRun(ctx, string(tc.Language), string(outcome.Status), outcome.Duration)
	}
	return outcome, err
}
