// Package verdict turns sandbox outcomes into verdicts and result records.
package verdict

import (
	"fmt"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

// Kind is the verdict category.
type Kind int

const (
	Accepted Kind = iota
	Executed
	WrongAnswer
	CompilationError
	RuntimeError
	TimeLimitExceeded
	MemoryLimitExceeded
	TestDataMismatch
	InternalFailure
)

var kindNames = map[Kind]string{
	Accepted:            "Accepted",
	Executed:            "Executed",
	WrongAnswer:         "WrongAnswer",
	CompilationError:    "CompilationError",
	RuntimeError:        "RuntimeError",
	TimeLimitExceeded:   "TimeLimitExceeded",
	MemoryLimitExceeded: "MemoryLimitExceeded",
	TestDataMismatch:    "TestDataMismatch",
	InternalFailure:     "InternalFailure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Verdict is the outcome of one job.
type Verdict struct {
	Kind Kind
	// TestIndex is the 1-based failing test in submit mode, 0 otherwise.
	TestIndex  int
	Diagnostic string
	// Output is the trimmed program output in run mode.
	Output string
	// Expected is attached by the reference oracle when requested.
	Expected *string
	// ExpectedOnly suppresses user output when no user code ran.
	ExpectedOnly bool
}

// Failed builds an InternalFailure verdict.
func Failed(reason string) Verdict {
	return Verdict{Kind: InternalFailure, Diagnostic: reason}
}

// FromOutcome maps a non-success sandbox outcome at a 1-based test index.
func FromOutcome(o sandbox.Outcome, index int) Verdict {
	switch o.Status {
	case sandbox.StatusTimeout:
		return Verdict{Kind: TimeLimitExceeded, TestIndex: index, Diagnostic: "Time Limit Exceeded"}
	case sandbox.StatusMemoryExceeded:
		return Verdict{Kind: MemoryLimitExceeded, TestIndex: index, Diagnostic: "Memory Limit Exceeded"}
	case sandbox.StatusRuntimeError:
		return Verdict{Kind: RuntimeError, TestIndex: index, Diagnostic: o.Diagnostic}
	default:
		return Failed(fmt.Sprintf("unexpected outcome %q", o.Status))
	}
}

// FromError classifies a pipeline error.
func FromError(err error) Verdict {
	if err == nil {
		return Failed("unknown error")
	}
	switch appErr.GetCode(err) {
	case appErr.CompilationError:
		return Verdict{Kind: CompilationError, Diagnostic: err.Error()}
	case appErr.TestDataMismatch:
		return Verdict{Kind: TestDataMismatch, Diagnostic: err.Error()}
	default:
		return Failed(err.Error())
	}
}

// Status returns the wire status string.
func (v Verdict) Status() string {
	switch v.Kind {
	case Accepted:
		return model.StatusAccepted
	case Executed:
		return model.StatusExecuted
	case WrongAnswer:
		return fmt.Sprintf("Wrong Answer on Test Case %d", v.TestIndex)
	case CompilationError:
		return model.StatusCompilationError
	case RuntimeError:
		return model.StatusRuntimeError
	case TimeLimitExceeded:
		return model.StatusTimeLimitExceeded
	case MemoryLimitExceeded:
		return model.StatusMemoryLimitExceeded
	default:
		return model.StatusFailed
	}
}

// Record renders the verdict as the result record for a mode.
func (v Verdict) Record(submissionID string, mode model.Mode) model.ResultRecord {
	rec := model.ResultRecord{
		SubmissionID:   submissionID,
		Status:         v.Status(),
		ExpectedOutput: v.Expected,
	}
	if mode == model.ModeSubmit {
		v.fillSubmit(&rec)
		return rec
	}
	switch v.Kind {
	case Executed:
		if mode == model.ModeRun && !v.ExpectedOnly {
			rec.UserOutput = model.StringPtr(v.Output)
		}
	case Accepted:
	case InternalFailure, TestDataMismatch:
		rec.Message = model.StringPtr(v.Diagnostic)
		if mode == model.ModeRun {
			rec.UserOutput = model.StringPtr(v.Diagnostic)
		}
	default:
		rec.UserOutput = model.StringPtr(v.Diagnostic)
	}
	return rec
}

func (v Verdict) fillSubmit(rec *model.ResultRecord) {
	if v.TestIndex > 0 {
		rec.FailedTestCase = model.IntPtr(v.TestIndex)
	}
	switch v.Kind {
	case TimeLimitExceeded:
		rec.Message = model.StringPtr(fmt.Sprintf("Time Limit Exceeded on Test Case %d", v.TestIndex))
	case MemoryLimitExceeded:
		rec.Message = model.StringPtr(fmt.Sprintf("Memory Limit Exceeded on Test Case %d", v.TestIndex))
	case RuntimeError:
		rec.Message = model.StringPtr(fmt.Sprintf("Runtime Error on Test Case %d: %s", v.TestIndex, v.Diagnostic))
	case CompilationError, TestDataMismatch, InternalFailure:
		rec.Message = model.StringPtr(v.Diagnostic)
	}
}
