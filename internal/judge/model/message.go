package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"

	"github.com/google/uuid"
)

// Queue names consumed by the worker.
const (
	QueueRun    = "runQueue"
	QueueSubmit = "submitQueue"
	QueueSystem = "systemQueue"
)

// EventReverseCoding asks run mode to attach the reference output.
const EventReverseCoding = "Reverse Coding"

// Mode selects the pipeline a job is routed to.
type Mode string

const (
	ModeRun       Mode = "run"
	ModeSubmit    Mode = "submit"
	ModeSystemRun Mode = "system-run"
)

// ModeForQueue maps a queue name to its pipeline mode.
func ModeForQueue(queue string) (Mode, bool) {
	switch queue {
	case QueueRun:
		return ModeRun, true
	case QueueSubmit:
		return ModeSubmit, true
	case QueueSystem:
		return ModeSystemRun, true
	default:
		return "", false
	}
}

// FlexibleID is an identifier that arrives as either a JSON string or number.
type FlexibleID string

// UnmarshalJSON accepts "run_17", 17 and 17.0.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string {
	return string(f)
}

// JobMessage is the queue payload pushed by the submission front door.
type JobMessage struct {
	SubmissionID   FlexibleID `json:"submission_id"`
	Language       string     `json:"language"`
	Code           string     `json:"code"`
	ProblemID      FlexibleID `json:"problem_id"`
	CustomTestcase *string    `json:"customTestcase,omitempty"`
	InputPath      string     `json:"inputPath,omitempty"`
	Event          string     `json:"event,omitempty"`
}

// Submission is a decoded job, alive for one pipeline invocation.
type Submission struct {
	ID          string
	ExecutionID string
	Mode        Mode
	Language    string
	Code        string
	ProblemID   string
	// CustomInput is nil when the job carries no custom test case.
	CustomInput *string
	InputPath   string
	Event       string
}

// ReverseCoding reports whether the run should attach the reference output.
func (s Submission) ReverseCoding() bool {
	return s.Event == EventReverseCoding
}

// DecodeJob parses a raw queue payload and base64-decodes its code and
// custom input. The returned submission has no execution id yet.
func DecodeJob(raw []byte, mode Mode) (Submission, error) {
	var msg JobMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Submission{}, appErr.Wrapf(err, appErr.MalformedJob, "decode job message failed: %v", err)
	}
	if msg.SubmissionID == "" {
		return Submission{}, appErr.New(appErr.MalformedJob).WithMessage("submission_id is required")
	}

	code, err := DecodeBase64(msg.Code)
	if err != nil {
		return Submission{ID: msg.SubmissionID.String()}, appErr.Wrapf(err, appErr.MalformedJob, "decode code failed: %v", err)
	}

	sub := Submission{
		ID:        msg.SubmissionID.String(),
		Mode:      mode,
		Language:  msg.Language,
		Code:      code,
		ProblemID: msg.ProblemID.String(),
		InputPath: msg.InputPath,
		Event:     msg.Event,
	}
	if msg.CustomTestcase != nil && *msg.CustomTestcase != "" {
		input, err := DecodeBase64(*msg.CustomTestcase)
		if err != nil {
			return sub, appErr.Wrapf(err, appErr.MalformedJob, "decode custom testcase failed: %v", err)
		}
		sub.CustomInput = &input
	}
	return sub, nil
}

// DecodeBase64 decodes standard base64, tolerating missing padding.
func DecodeBase64(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return "", err
		}
	}
	return string(data), nil
}

// EncodeBase64 is the inverse of DecodeBase64.
func EncodeBase64(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// SanitizeID keeps characters valid in container and directory names.
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

// NewExecutionID mints an id unique per dequeue that still shows which
// submission it belongs to.
func NewExecutionID(submissionID string) string {
	return SanitizeID(submissionID) + "-" + uuid.NewString()[:8]
}
