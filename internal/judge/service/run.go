package service

import (
	"context"
	"strings"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/testdata"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const sampleNotFound = "Sample input file not found."

// run executes user code once on the custom or sample input.
func (s *Service) run(ctx context.Context, sub model.Submission) verdict.Verdict {
	expectedOnly := sub.ReverseCoding() && strings.TrimSpace(sub.Code) == ""

	var tc toolchain.Toolchain
	if !expectedOnly {
		var err error
		if tc, err = s.registry.Lookup(sub.Language); err != nil {
			return s.handleFailure(ctx, err)
		}
	}

	ws, release, err := s.acquire(ctx, sub.ExecutionID)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	defer release()

	inputFile, err := s.stageInput(ctx, ws, sub)
	if err != nil {
		return s.handleFailure(ctx, err)
	}

	if expectedOnly {
		logger.Info(ctx, "empty code, producing expected output only")
		expected := s.oracle.ProduceExpected(ctx, sub.ProblemID, ws, inputFile)
		if !expected.OK {
			return verdict.Failed(expected.Reason)
		}
		return verdict.Verdict{Kind: verdict.Executed, Expected: expected.Ptr(), ExpectedOnly: true}
	}

	v := s.runOnce(ctx, ws, tc, sub.Code, inputFile)
	if sub.ReverseCoding() {
		switch v.Kind {
		case verdict.Executed, verdict.CompilationError, verdict.RuntimeError,
			verdict.TimeLimitExceeded, verdict.MemoryLimitExceeded:
			v.Expected = s.oracle.ProduceExpected(ctx, sub.ProblemID, ws, inputFile).Ptr()
		}
	}
	return v
}

func (s *Service) runOnce(ctx context.Context, ws *workspace.Workspace, tc toolchain.Toolchain, code, inputFile string) verdict.Verdict {
	program, err := s.compile(ctx, ws, tc, code)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	outcome, err := s.execute(ctx, ws, tc, program, inputFile, customOutputFile)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	v, err := verdict.FromRun(outcome)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	return v
}

// systemRun runs only the reference solution.
func (s *Service) systemRun(ctx context.Context, sub model.Submission) verdict.Verdict {
	ws, release, err := s.acquire(ctx, sub.ExecutionID)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	defer release()

	inputFile, err := s.stageInput(ctx, ws, sub)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	expected := s.oracle.ProduceExpected(ctx, sub.ProblemID, ws, inputFile)
	if !expected.OK {
		return verdict.Failed(expected.Reason)
	}
	return verdict.Verdict{Kind: verdict.Executed, Expected: expected.Ptr(), ExpectedOnly: true}
}

// stageInput writes the custom input, or the problem's sample when the job
// carries none.
func (s *Service) stageInput(ctx context.Context, ws *workspace.Workspace, sub model.Submission) (string, error) {
	if sub.CustomInput != nil {
		return ws.WriteInput(customInputFile, *sub.CustomInput)
	}
	sample, err := s.problems.ReadAll(ctx, sub.ProblemID, testdata.SampleFile)
	if err != nil {
		if appErr.Is(err, appErr.NotFound) || appErr.Is(err, appErr.InvalidParams) {
			return "", appErr.New(appErr.SampleNotFound).WithMessage(sampleNotFound)
		}
		return "", err
	}
	logger.Debug(ctx, "using sample input", zap.String("problem_id", sub.ProblemID))
	return ws.WriteInput(customInputFile, sample)
}
