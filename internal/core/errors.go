package core

// Error codes surfaced to clients as error frames.
const (
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodePersistenceFailure = "persistence_failure"
	ErrCodeBadRequest         = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
