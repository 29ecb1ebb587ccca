package model

import (
	"encoding/json"
	"strings"
	"testing"

	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

func TestFlexibleIDUnmarshal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string", raw: `"run_1700000000"`, want: "run_1700000000"},
		{name: "integer", raw: `42`, want: "42"},
		{name: "float integral", raw: `42.0`, want: "42.0"},
		{name: "null", raw: `null`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var id FlexibleID
			if err := json.Unmarshal([]byte(tc.raw), &id); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if id.String() != tc.want {
				t.Fatalf("id = %q, want %q", id, tc.want)
			}
		})
	}

	var id FlexibleID
	if err := json.Unmarshal([]byte(`{"a":1}`), &id); err == nil {
		t.Fatal("expected error for object id")
	}
}

func TestDecodeJob(t *testing.T) {
	t.Parallel()

	code := "#include <iostream>\nint main(){int n;std::cin>>n;std::cout<<n*n*n;}\n"
	input := "3"
	raw, _ := json.Marshal(map[string]interface{}{
		"submission_id":  42,
		"language":       "cpp",
		"code":           EncodeBase64(code),
		"problem_id":     7,
		"customTestcase": EncodeBase64(input),
		"event":          EventReverseCoding,
		"user_id":        "ignored",
	})

	sub, err := DecodeJob(raw, ModeRun)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.ID != "42" || sub.ProblemID != "7" || sub.Language != "cpp" || sub.Mode != ModeRun {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.Code != code {
		t.Fatalf("code = %q", sub.Code)
	}
	if sub.CustomInput == nil || *sub.CustomInput != input {
		t.Fatalf("custom input = %v", sub.CustomInput)
	}
	if !sub.ReverseCoding() {
		t.Fatal("expected reverse coding event")
	}
}

func TestDecodeJobWithoutCustomInput(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"submission_id":"s1","language":"python","code":"","problem_id":"p1","inputPath":"/data/p1"}`)
	sub, err := DecodeJob(raw, ModeSubmit)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.CustomInput != nil {
		t.Fatalf("expected no custom input, got %q", *sub.CustomInput)
	}
	if sub.InputPath != "/data/p1" {
		t.Fatalf("input path = %q", sub.InputPath)
	}
}

func TestDecodeJobMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `not-json`},
		{name: "missing id", raw: `{"language":"cpp","code":""}`},
		{name: "bad base64", raw: `{"submission_id":"1","language":"cpp","code":"%%%"}`},
		{name: "bad custom input", raw: `{"submission_id":"1","language":"cpp","code":"","customTestcase":"%%%"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeJob([]byte(tc.raw), ModeRun)
			if err == nil {
				t.Fatal("expected error")
			}
			if appErr.GetCode(err) != appErr.MalformedJob {
				t.Fatalf("code = %d, want %d", appErr.GetCode(err), appErr.MalformedJob)
			}
		})
	}
}

func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()

	texts := []string{
		"",
		"print(\"hello\")\n",
		"line1\nline2\r\n\t'quoted' \"double\"",
		"unicode: héllo wörld 你好 🚀",
	}
	for _, text := range texts {
		got, err := DecodeBase64(EncodeBase64(text))
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if got != text {
			t.Fatalf("round trip mismatch: %q != %q", got, text)
		}
	}

	got, err := DecodeBase64("aGk")
	if err != nil || got != "hi" {
		t.Fatalf("unpadded decode = %q err=%v", got, err)
	}
}

func TestModeForQueue(t *testing.T) {
	t.Parallel()

	cases := map[string]Mode{
		QueueRun:    ModeRun,
		QueueSubmit: ModeSubmit,
		QueueSystem: ModeSystemRun,
	}
	for queue, want := range cases {
		got, ok := ModeForQueue(queue)
		if !ok || got != want {
			t.Fatalf("ModeForQueue(%s) = %s %v", queue, got, ok)
		}
	}
	if _, ok := ModeForQueue("otherQueue"); ok {
		t.Fatal("expected unknown queue")
	}
}

func TestResultRecordJSON(t *testing.T) {
	t.Parallel()

	rec := ResultRecord{
		SubmissionID:   "9",
		Status:         "Wrong Answer on Test Case 2",
		FailedTestCase: IntPtr(2),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"submission_id":"9","status":"Wrong Answer on Test Case 2","message":null,"user_output":null,"expected_output":null,"failed_test_case":2}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}

	data, err = json.Marshal(ResultRecord{SubmissionID: "run_1", Status: StatusExecuted, UserOutput: StringPtr("")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want = `{"submission_id":"run_1","status":"executed_successfully","message":null,"user_output":"","expected_output":null,"failed_test_case":null}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestExecutionID(t *testing.T) {
	t.Parallel()

	if got := SanitizeID("run_17/../x y"); got != "run_17_.._x_y" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := SanitizeID(""); got != "anon" {
		t.Fatalf("sanitize empty = %q", got)
	}

	a := NewExecutionID("42")
	b := NewExecutionID("42")
	if a == b {
		t.Fatal("execution ids must differ per dequeue")
	}
	if !strings.HasPrefix(a, "42-") || len(a) != len("42-")+8 {
		t.Fatalf("unexpected execution id %q", a)
	}
}
