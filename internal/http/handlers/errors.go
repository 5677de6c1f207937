package handlers

// Stable, machine-readable error codes carried in ErrorResponse.Code.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeUnavailable  = "engine_unavailable"
	ErrCodeSubmitFailed = "submit_failed"
	ErrCodeListFailed   = "list_failed"
)
