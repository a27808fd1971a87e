package model

// SessionStatus enumerates the lifecycle of one guest exam attempt.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "NOT_STARTED"
	SessionLoading    SessionStatus = "LOADING"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionSubmitting SessionStatus = "SUBMITTING"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAborted    SessionStatus = "ABORTED"
)

// SessionState is the reload snapshot of an attempt: everything the
// client needs to rebuild its screen after a refresh.
type SessionState struct {
	ExamID           string            `json:"exam_id"`
	VariantID        string            `json:"variant_id"`
	Status           SessionStatus     `json:"status"`
	Answers          map[string]string `json:"answers"`
	RemainingSeconds int               `json:"remaining_seconds"`
	RemainingDisplay string            `json:"remaining_display"`
	Progress         float64           `json:"progress"`
	ViolationCount   int               `json:"violation_count"`
}

// AnswerRequest is the payload for recording one answer selection.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	OptionID   string `json:"option_id" binding:"required,min=1,max=64"`
}

// ViolationRequest is the payload for reporting one integrity signal.
type ViolationRequest struct {
	Signal string `json:"signal" binding:"required,min=1,max=64"`
}
