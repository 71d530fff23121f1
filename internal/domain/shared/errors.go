package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrUnauthorized is returned when a caller's identity cannot be
// established from their token.
var ErrUnauthorized = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
