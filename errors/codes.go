package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline errors
const (
	// ErrCodeUnknownStep indicates a pipeline entry names a step that is not registered.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"
	// ErrCodeDuplicateStep indicates a second registration under an existing step name.
	ErrCodeDuplicateStep ErrorCode = "DUPLICATE_STEP"
	// ErrCodeMissingParam indicates a step was invoked without a required parameter.
	ErrCodeMissingParam ErrorCode = "MISSING_PARAM"
)

// Configuration errors
const (
	// ErrCodeConfiguration indicates an invalid agent or application configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Resource errors
const (
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Availability errors (retryable)
const (
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Access and internal errors
const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeRateLimited:     true,
	ErrCodeExternalService: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
