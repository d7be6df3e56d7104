// Package response defines the JSON envelope shared by every API endpoint.
package response

// APIResponse wraps a successful payload. Data carries the endpoint-specific
// result type.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
