package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client message shape; fields beyond
// Action are used depending on the action.
type RequestPayload struct {
	Action Action `json:"action"`
	// Autosave
	QuestionID string `json:"question_id,omitempty"`
	OptionID   string `json:"option_id,omitempty"`
	// Violation
	Signal string `json:"signal,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventViolation Event = "violation_recorded"
	EventGraded    Event = "graded"
	EventTick      Event = "tick"
)

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

type ViolationResponse struct {
	Event   Event  `json:"event"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Counted bool   `json:"counted"`
}

type GradedResponse struct {
	Event Event    `json:"event"`
	Score *float64 `json:"score,omitempty"`
}

// TickResponse keeps the client clock honest about the server's view of
// the countdown.
type TickResponse struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining_seconds"`
	Display   string `json:"display"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
