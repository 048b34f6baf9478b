package api

// Error codes returned alongside the message of a failed request.
const (
	CodeValidation    = "validation"
	CodeDateConflict  = "date_conflict"
	CodeGuestConflict = "guest_conflict"
	CodeNotFound      = "not_found"
	CodeInternal      = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
