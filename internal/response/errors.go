package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Identity ──────────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Catalog / session ─────────────────────────────────────────────
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrExamFetchFailed ErrCode = "EXAM_FETCH_FAILED"
	ErrAccessGated     ErrCode = "ACCESS_GATED"
	ErrSessionActive   ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrNoSession       ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionFinished ErrCode = "SESSION_FINISHED"
	ErrSubmitFailed    ErrCode = "SUBMIT_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Identity ──────────────────────────────────────────────────────
	case ErrTokenRequired:
		return "A guest token is required."
	case ErrTokenInvalid:
		return "The guest token is not valid."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The id format is not valid."

	// ─── Catalog / session ─────────────────────────────────────────────
	case ErrExamNotFound:
		return "This exam does not exist or is not available."
	case ErrExamFetchFailed:
		return "The exam could not be loaded. Please return to the catalog and try again."
	case ErrAccessGated:
		return "You have used your free attempts. Request access to continue with this exam."
	case ErrSessionActive:
		return "Another exam session is already in progress. Finish or leave it first."
	case ErrNoSession:
		return "There is no active session for this exam."
	case ErrSessionFinished:
		return "This exam session has already finished."
	case ErrSubmitFailed:
		return "Submitting your answers failed. Your answers are kept, please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
