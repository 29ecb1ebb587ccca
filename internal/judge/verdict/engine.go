package verdict

import (
	"context"
	"os"
	"strings"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

// RunFunc executes the compiled program against one test case.
type RunFunc func(ctx context.Context, tc workspace.TestCase) (sandbox.Outcome, error)

// Grade runs test cases in order and stops at the first failure. Errors from
// run are returned as-is so the caller can report an internal failure.
func Grade(ctx context.Context, cases []workspace.TestCase, run RunFunc) (Verdict, error) {
	for _, tc := range cases {
		outcome, err := run(ctx, tc)
		if err != nil {
			return Verdict{}, err
		}
		index := tc.Index + 1
		if outcome.Status != sandbox.StatusSuccess {
			return FromOutcome(outcome, index), nil
		}
		ok, err := Matches(outcome.OutputFile, tc.ExpectedPath)
		if err != nil {
			return Verdict{}, err
		}
		if !ok {
			return Verdict{Kind: WrongAnswer, TestIndex: index}, nil
		}
	}
	return Verdict{Kind: Accepted}, nil
}

// FromRun maps a run-mode outcome. Success yields the trimmed output.
func FromRun(o sandbox.Outcome) (Verdict, error) {
	if o.Status != sandbox.StatusSuccess {
		return FromOutcome(o, 0), nil
	}
	output, err := ReadTrimmed(o.OutputFile)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Kind: Executed, Output: output}, nil
}

// Matches compares two files after trimming surrounding whitespace.
func Matches(gotPath, wantPath string) (bool, error) {
	got, err := ReadTrimmed(gotPath)
	if err != nil {
		return false, err
	}
	want, err := ReadTrimmed(wantPath)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

// ReadTrimmed reads a file and trims surrounding whitespace.
func ReadTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.JudgeSystemError, "read %s failed", path)
	}
	return strings.TrimSpace(string(data)), nil
}
