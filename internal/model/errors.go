package model

import "fmt"

// Error codes reported by the API boundary. Server failures reuse the HTTP
// status code; the client-only codes sit outside the HTTP range so they can
// never collide with a server response.
const (
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeBadRequest   = 400

	// CodeNetworkError marks a transport or decode failure that never
	// produced a structured server response.
	CodeNetworkError = -1
)

// ErrorResponse is the structured failure shape of every API call:
// {code, message}. The client distinguishes success from failure by the
// presence of the code field.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// NetworkError wraps a transport failure into the boundary error shape.
func NetworkError(err error) *ErrorResponse {
	return &ErrorResponse{Code: CodeNetworkError, Message: err.Error()}
}
