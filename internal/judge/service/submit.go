package service

import (
	"context"
	"fmt"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

// submit grades user code against the full test set, stopping at the first
// failing test case.
func (s *Service) submit(ctx context.Context, sub model.Submission) verdict.Verdict {
	tc, err := s.registry.Lookup(sub.Language)
	if err != nil {
		return s.handleFailure(ctx, err)
	}

	ws, release, err := s.acquire(ctx, sub.ExecutionID)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	defer release()

	cases, err := s.tests.Stage(ctx, ws, sub)
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	logger.Debug(ctx, "test cases staged", zap.Int("count", len(cases)))

	program, err := s.compile(ctx, ws, tc, sub.Code)
	if err != nil {
		return s.handleFailure(ctx, err)
	}

	v, err := verdict.Grade(ctx, cases, func(ctx context.Context, c workspace.TestCase) (sandbox.Outcome, error) {
		return s.execute(ctx, ws, tc, program, c.InputPath, fmt.Sprintf("output_%d.txt", c.Index+1))
	})
	if err != nil {
		return s.handleFailure(ctx, err)
	}
	return v
}
