package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/workspace"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

func recordJSON(t *testing.T, v Verdict, mode model.Mode) string {
	t.Helper()
	data, err := json.Marshal(v.Record("7", mode))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestSubmitRecords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		verdict Verdict
		want    string
	}{
		{
			name:    "accepted",
			verdict: Verdict{Kind: Accepted},
			want:    `{"submission_id":"7","status":"Accepted","message":null,"user_output":null,"expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "wrong answer",
			verdict: Verdict{Kind: WrongAnswer, TestIndex: 2},
			want:    `{"submission_id":"7","status":"Wrong Answer on Test Case 2","message":null,"user_output":null,"expected_output":null,"failed_test_case":2}`,
		},
		{
			name:    "time limit",
			verdict: Verdict{Kind: TimeLimitExceeded, TestIndex: 3},
			want:    `{"submission_id":"7","status":"Time Limit Exceeded","message":"Time Limit Exceeded on Test Case 3","user_output":null,"expected_output":null,"failed_test_case":3}`,
		},
		{
			name:    "memory limit",
			verdict: Verdict{Kind: MemoryLimitExceeded, TestIndex: 1},
			want:    `{"submission_id":"7","status":"Memory Limit Exceeded","message":"Memory Limit Exceeded on Test Case 1","user_output":null,"expected_output":null,"failed_test_case":1}`,
		},
		{
			name:    "runtime error",
			verdict: Verdict{Kind: RuntimeError, TestIndex: 4, Diagnostic: "ZeroDivisionError"},
			want:    `{"submission_id":"7","status":"Runtime Error","message":"Runtime Error on Test Case 4: ZeroDivisionError","user_output":null,"expected_output":null,"failed_test_case":4}`,
		},
		{
			name:    "compilation error",
			verdict: Verdict{Kind: CompilationError, Diagnostic: "expected ';'"},
			want:    `{"submission_id":"7","status":"Compilation Error","message":"expected ';'","user_output":null,"expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "test data mismatch",
			verdict: Verdict{Kind: TestDataMismatch, Diagnostic: "Test case and output file count mismatch"},
			want:    `{"submission_id":"7","status":"failed","message":"Test case and output file count mismatch","user_output":null,"expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "internal failure",
			verdict: Failed("Unsupported Programming Language"),
			want:    `{"submission_id":"7","status":"failed","message":"Unsupported Programming Language","user_output":null,"expected_output":null,"failed_test_case":null}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := recordJSON(t, tc.verdict, model.ModeSubmit); got != tc.want {
				t.Fatalf("record = %s\nwant     %s", got, tc.want)
			}
		})
	}
}

func TestRunRecords(t *testing.T) {
	t.Parallel()

	expected := "27"
	cases := []struct {
		name    string
		verdict Verdict
		mode    model.Mode
		want    string
	}{
		{
			name:    "executed",
			verdict: Verdict{Kind: Executed, Output: "27"},
			mode:    model.ModeRun,
			want:    `{"submission_id":"7","status":"executed_successfully","message":null,"user_output":"27","expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "compilation error",
			verdict: Verdict{Kind: CompilationError, Diagnostic: "error: expected ';'"},
			mode:    model.ModeRun,
			want:    `{"submission_id":"7","status":"Compilation Error","message":null,"user_output":"error: expected ';'","expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "timeout with expected",
			verdict: Verdict{Kind: TimeLimitExceeded, Diagnostic: "Time Limit Exceeded", Expected: &expected},
			mode:    model.ModeRun,
			want:    `{"submission_id":"7","status":"Time Limit Exceeded","message":null,"user_output":"Time Limit Exceeded","expected_output":"27","failed_test_case":null}`,
		},
		{
			name:    "sample missing",
			verdict: Failed("Sample input file not found."),
			mode:    model.ModeRun,
			want:    `{"submission_id":"7","status":"failed","message":"Sample input file not found.","user_output":"Sample input file not found.","expected_output":null,"failed_test_case":null}`,
		},
		{
			name:    "expected only",
			verdict: Verdict{Kind: Executed, Expected: &expected, ExpectedOnly: true},
			mode:    model.ModeRun,
			want:    `{"submission_id":"7","status":"executed_successfully","message":null,"user_output":null,"expected_output":"27","failed_test_case":null}`,
		},
		{
			name:    "system run",
			verdict: Verdict{Kind: Executed, Expected: &expected},
			mode:    model.ModeSystemRun,
			want:    `{"submission_id":"7","status":"executed_successfully","message":null,"user_output":null,"expected_output":"27","failed_test_case":null}`,
		},
		{
			name:    "system run failed",
			verdict: Failed("reference solution not found"),
			mode:    model.ModeSystemRun,
			want:    `{"submission_id":"7","status":"failed","message":"reference solution not found","user_output":null,"expected_output":null,"failed_test_case":null}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := recordJSON(t, tc.verdict, tc.mode); got != tc.want {
				t.Fatalf("record = %s\nwant     %s", got, tc.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	t.Parallel()

	if v := FromError(appErr.New(appErr.CompilationError).WithMessage("boom")); v.Kind != CompilationError || v.Diagnostic != "boom" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v := FromError(appErr.New(appErr.TestDataMismatch)); v.Kind != TestDataMismatch {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v := FromError(errors.New("disk full")); v.Kind != InternalFailure || v.Diagnostic != "disk full" {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v := FromError(nil); v.Kind != InternalFailure {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

type gradeFixture struct {
	cases   []workspace.TestCase
	outputs []string
	dir     string
}

func newGradeFixture(t *testing.T, expected []string) *gradeFixture {
	t.Helper()
	dir := t.TempDir()
	f := &gradeFixture{dir: dir}
	for i, want := range expected {
		in := filepath.Join(dir, "input"+string(rune('1'+i))+".txt")
		exp := filepath.Join(dir, "output"+string(rune('1'+i))+".txt")
		_ = os.WriteFile(in, []byte("x"), 0644)
		_ = os.WriteFile(exp, []byte(want), 0644)
		f.cases = append(f.cases, workspace.TestCase{Index: i, InputPath: in, ExpectedPath: exp})
	}
	return f
}

func TestGradeShortCircuits(t *testing.T) {
	t.Parallel()

	f := newGradeFixture(t, []string{"1\n", "8", "27", "64", "125"})
	produced := []string{"  1  ", "9", "27", "64", "125"}
	executed := 0
	v, err := Grade(context.Background(), f.cases, func(_ context.Context, tc workspace.TestCase) (sandbox.Outcome, error) {
		executed++
		out := filepath.Join(f.dir, "got.txt")
		_ = os.WriteFile(out, []byte(produced[tc.Index]), 0644)
		return sandbox.Outcome{Status: sandbox.StatusSuccess, OutputFile: out}, nil
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if v.Kind != WrongAnswer || v.TestIndex != 2 {
		t.Fatalf("verdict = %+v", v)
	}
	if executed != 2 {
		t.Fatalf("executed %d test cases, want 2", executed)
	}
}

func TestGradeOutcomes(t *testing.T) {
	t.Parallel()

	f := newGradeFixture(t, []string{"1", "2"})
	out := filepath.Join(f.dir, "got.txt")

	v, err := Grade(context.Background(), f.cases, func(_ context.Context, tc workspace.TestCase) (sandbox.Outcome, error) {
		_ = os.WriteFile(out, []byte(string(rune('1'+tc.Index))+"\n"), 0644)
		return sandbox.Outcome{Status: sandbox.StatusSuccess, OutputFile: out}, nil
	})
	if err != nil || v.Kind != Accepted {
		t.Fatalf("expected accepted, got %+v err=%v", v, err)
	}

	v, err = Grade(context.Background(), f.cases, func(_ context.Context, tc workspace.TestCase) (sandbox.Outcome, error) {
		if tc.Index == 1 {
			return sandbox.Outcome{Status: sandbox.StatusTimeout}, nil
		}
		_ = os.WriteFile(out, []byte("1"), 0644)
		return sandbox.Outcome{Status: sandbox.StatusSuccess, OutputFile: out}, nil
	})
	if err != nil || v.Kind != TimeLimitExceeded || v.TestIndex != 2 {
		t.Fatalf("expected TLE on test 2, got %+v err=%v", v, err)
	}

	boom := errors.New("sandbox down")
	if _, err := Grade(context.Background(), f.cases, func(context.Context, workspace.TestCase) (sandbox.Outcome, error) {
		return sandbox.Outcome{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
}

func TestFromRun(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "custom_output.txt")
	_ = os.WriteFile(out, []byte("27\n\n"), 0644)
	v, err := FromRun(sandbox.Outcome{Status: sandbox.StatusSuccess, OutputFile: out})
	if err != nil || v.Kind != Executed || v.Output != "27" {
		t.Fatalf("unexpected verdict %+v err=%v", v, err)
	}

	v, err = FromRun(sandbox.Outcome{Status: sandbox.StatusRuntimeError, Diagnostic: "segfault"})
	if err != nil || v.Kind != RuntimeError || v.Diagnostic != "segfault" || v.TestIndex != 0 {
		t.Fatalf("unexpected verdict %+v err=%v", v, err)
	}

	if _, err := FromRun(sandbox.Outcome{Status: sandbox.StatusSuccess, OutputFile: filepath.Join(t.TempDir(), "none")}); appErr.GetCode(err) != appErr.JudgeSystemError {
		t.Fatalf("expected read error, got %v", err)
	}
}
