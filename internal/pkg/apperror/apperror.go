package apperror

import "net/http"

// AppError is a custom error type that carries an HTTP status code, a user-facing message
// and, for validation failures, the offending fields.
type AppError struct {
	Code    int                 // HTTP Status Code (e.g., 404, 422)
	Message string              // User-facing error message
	Fields  map[string][]string // Field-level details, only set for validation failures
	Err     error               // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a 422 error listing the offending fields.
func Validation(fields map[string][]string) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "The given data was invalid.",
		Fields:  fields,
	}
}

// FieldErrors accumulates per-field validation messages.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Err returns a validation AppError, or nil when nothing was recorded.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Validation(f)
}
