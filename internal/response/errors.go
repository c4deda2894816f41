package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"
	ErrTeacherOnly      ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidScope   ErrCode = "INVALID_SCOPE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrQuizNotFound ErrCode = "QUIZ_NOT_FOUND"
	ErrRunNotFound  ErrCode = "RUN_NOT_FOUND"

	// ─── Regrade ───────────────────────────────────────────────────────
	ErrRegradeInProgress   ErrCode = "REGRADE_IN_PROGRESS"
	ErrInvalidBandConfig   ErrCode = "INVALID_BAND_CONFIGURATION"
	ErrGradeSyncFailed     ErrCode = "GRADE_SYNC_FAILED"
	ErrRegradeSourceFailed ErrCode = "REGRADE_SOURCE_FAILED"

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
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "You do not have permission to perform this action."
	case ErrTeacherOnly:
		return "This resource is restricted to teachers."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "The request contains invalid fields."
	case ErrInvalidID:
		return "The ID in the path is not valid."
	case ErrInvalidPayload:
		return "The request body could not be parsed."
	case ErrInvalidScope:
		return "The selected attempts do not form a valid regrade scope."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrRunNotFound:
		return "Regrade run not found or expired."

	// ─── Regrade ───────────────────────────────────────────────────────
	case ErrRegradeInProgress:
		return "A regrade is already running for this quiz."
	case ErrInvalidBandConfig:
		return "The quiz maximum grade cannot be split into grade bands."
	case ErrGradeSyncFailed:
		return "Attempts were regraded but quiz grades could not be updated."
	case ErrRegradeSourceFailed:
		return "The attempts to regrade could not be loaded."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."

	default:
		return "An unknown error occurred."
	}
}
