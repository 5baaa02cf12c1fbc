package models

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// Response represents an incoming chat message from an interviewee on a
// messaging transport.
type Response struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	Time      int64  `json:"time"`
	MessageID string `json:"message_id,omitempty"`
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status    string      `json:"status"`              // status of the API response
	Message   string      `json:"message,omitempty"`   // optional message for error responses or additional info
	Result    interface{} `json:"result,omitempty"`    // optional result data for successful responses
	Retryable bool        `json:"retryable,omitempty"` // set on errors the caller may retry unchanged
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// WithRetryable marks an error response as safe to retry.
func (b *APIResponseBuilder) WithRetryable(retryable bool) *APIResponseBuilder {
	b.response.Retryable = retryable
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// RetryableError creates an error API response the caller may retry unchanged.
func RetryableError(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		WithRetryable(true).
		Build()
}
