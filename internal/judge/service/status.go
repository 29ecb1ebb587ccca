package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

// handleFailure converts a pipeline error into its verdict.
func (s *Service) handleFailure(ctx context.Context, err error) verdict.Verdict {
	code := appErr.GetCode(err)
	switch {
	case code == appErr.CompilationError, code == appErr.TestDataMismatch:
		logger.Debug(ctx, "judge rejected submission", zap.Int("code", int(code)), zap.Error(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn(ctx, "judge interrupted", zap.Error(err))
	default:
		logger.Error(ctx, "judge failed", zap.Int("code", int(code)), zap.Error(err))
	}
	return verdict.FromError(err)
}

func (s *Service) recovered(ctx context.Context, r any) verdict.Verdict {
	logger.Error(ctx, "judge panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
	return verdict.Failed(fmt.Sprint(r))
}
