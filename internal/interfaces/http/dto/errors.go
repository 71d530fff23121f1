// Package dto defines the HTTP error envelope.
package dto

// ErrorResponse is the JSON error envelope returned by every failing
// endpoint. Details carries internal error text and is only populated
// outside production.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: code, Message: message}
}

// WithDetails returns a copy carrying internal error detail.
func (e ErrorResponse) WithDetails(details string) ErrorResponse {
	e.Details = details
	return e
}
