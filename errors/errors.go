package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Processor and pipeline errors ---

// Unavailable reports a processor invoked while not in the Available state.
func Unavailable(processor, state string) *AppError {
	return &AppError{
		Code: ErrCodeProcessorUnavailable, Message: fmt.Sprintf("processor %q is not available (state: %s)", processor, state),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"processor": processor, "state": state},
	}
}

// NullResponse reports a processor hook that returned no response.
func NullResponse(processor string) *AppError {
	return &AppError{
		Code: ErrCodeNullResponse, Message: fmt.Sprintf("processor %q returned a nil response", processor),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"processor": processor},
	}
}

// Unhandled wraps a fault raised inside a processor.
func Unhandled(processor string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUnhandled, Message: fmt.Sprintf("processor %q failed", processor),
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
		Details: map[string]any{"processor": processor},
	}
}

// PipelineFatal reports a child failure that aborted a pipeline.
func PipelineFatal(pipeline, processor string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePipelineFatal, Message: fmt.Sprintf("pipeline %q aborted at processor %q", pipeline, processor),
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
		Details: map[string]any{"pipeline": pipeline, "processor": processor},
	}
}

// PipelineStopped reports a pipeline that stopped on a recoverable error.
func PipelineStopped(pipeline string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePipelineStopped, Message: fmt.Sprintf("pipeline %q stopped with error", pipeline),
		HTTPStatus: http.StatusUnprocessableEntity, Cause: cause,
		Details: map[string]any{"pipeline": pipeline},
	}
}

// --- Definition errors ---

// InvalidCondition reports a condition that failed to compile or evaluate.
func InvalidCondition(condition string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInvalidCondition, Message: fmt.Sprintf("invalid condition %q", condition),
		HTTPStatus: http.StatusBadRequest, Cause: cause,
		Details: map[string]any{"condition": condition},
	}
}

// InvalidDefinition reports a malformed pipeline definition.
func InvalidDefinition(name, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidDefinition, Message: fmt.Sprintf("invalid definition %q: %s", name, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"definition": name},
	}
}

// FactoryNotRegistered reports a type key with no registered factory.
func FactoryNotRegistered(kind, key string) *AppError {
	return &AppError{
		Code: ErrCodeFactoryNotRegistered, Message: fmt.Sprintf("%s factory %q not registered", kind, key),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"kind": kind, "key": key},
	}
}

// ReferenceCycle reports pipelines that reference each other.
func ReferenceCycle(path []string) *AppError {
	return &AppError{
		Code: ErrCodeReferenceCycle, Message: fmt.Sprintf("pipeline reference cycle: %v", path),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"path": path},
	}
}

// --- Data errors ---

// DataSource wraps a failed fetch.
func DataSource(source string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDataSource, Message: fmt.Sprintf("data source %s failed", source),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
		Details: map[string]any{"source": source},
	}
}

// DataSink wraps a failed sink call.
func DataSink(sink string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDataSink, Message: fmt.Sprintf("data sink %s failed", sink),
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
		Details: map[string]any{"sink": sink},
	}
}

// UnsupportedOperation reports an operation a sink cannot perform.
func UnsupportedOperation(operation string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedOperation, Message: fmt.Sprintf("unsupported operation %q", operation),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"operation": operation},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// --- Generic errors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}
