// Package apierror defines the JSON error envelopes the API exposes. Every
// 4xx/5xx body is one of these two shapes, so clients parse errors uniformly
// and internals (SQL errors, stack traces) never reach the wire.
package apierror

// APIError is the single-message envelope: {"detail": "..."}.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError { return &APIError{Detail: msg} }

// ValidationError adds a field→message map for 422 responses, so the
// frontend can attach each message to the input that caused it.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
