package model

// Result status strings seen by the front door.
const (
	StatusExecuted            = "executed_successfully"
	StatusAccepted            = "Accepted"
	StatusCompilationError    = "Compilation Error"
	StatusRuntimeError        = "Runtime Error"
	StatusTimeLimitExceeded   = "Time Limit Exceeded"
	StatusMemoryLimitExceeded = "Memory Limit Exceeded"
	StatusFailed              = "failed"
)

// ResultRecord is the cached and webhook-delivered outcome of one job. Unset
// fields are sent as null.
type ResultRecord struct {
	SubmissionID   string  `json:"submission_id"`
	Status         string  `json:"status"`
	Message        *string `json:"message"`
	UserOutput     *string `json:"user_output"`
	ExpectedOutput *string `json:"expected_output"`
	FailedTestCase *int    `json:"failed_test_case"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// ResultEvent is the payload published to the result event stream.
type ResultEvent struct {
	Mode      Mode         `json:"mode"`
	Result    ResultRecord `json:"result"`
	CreatedAt int64        `json:"created_at"`
}
