package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrAdminKey      ErrCode = "ADMIN_KEY_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrInvalidPin       ErrCode = "INVALID_PIN"
	ErrExamNotUsable    ErrCode = "EXAM_NOT_USABLE"
	ErrPinsExhausted    ErrCode = "PINS_EXHAUSTED"
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionFailed    ErrCode = "SESSION_FAILED"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"
	ErrTimeUp           ErrCode = "TIME_UP"
	ErrNameRequired     ErrCode = "NAME_REQUIRED"
	ErrNoAnswers        ErrCode = "NO_ANSWERS"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "A session token is required."
	case ErrTokenInvalid:
		return "The session token is invalid."
	case ErrTokenExpired:
		return "The session token has expired."
	case ErrAdminKey:
		return "A valid admin API key is required."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrInvalidPin:
		return "Invalid or already used pin."
	case ErrExamNotUsable:
		return "This exam cannot be taken: it has no questions, no duration, or questions without an answer key."
	case ErrPinsExhausted:
		return "Could not generate enough unique pins. Please try again."
	case ErrSessionNotFound:
		return "Exam session not found or already closed."
	case ErrSessionFailed:
		return "The exam could not be loaded."
	case ErrSessionNotActive:
		return "The exam session is not in progress."
	case ErrTimeUp:
		return "Time is up. Answers can no longer be changed."
	case ErrNameRequired:
		return "Please enter your name (at most 60 characters) before submitting the exam."
	case ErrNoAnswers:
		return "Please answer at least one question before submitting the exam."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
