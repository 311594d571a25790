package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Processor errors
const (
	// ErrCodeProcessorUnavailable indicates a processor was invoked outside the Available state.
	ErrCodeProcessorUnavailable ErrorCode = "PROCESSOR_UNAVAILABLE"
	// ErrCodeNullResponse indicates a processor hook returned no response.
	ErrCodeNullResponse ErrorCode = "PROCESSOR_NULL_RESPONSE"
	// ErrCodeUnhandled indicates a processor hook failed or panicked.
	ErrCodeUnhandled ErrorCode = "PROCESSOR_UNHANDLED"
)

// Pipeline errors
const (
	// ErrCodePipelineFatal indicates a child failure that aborted the owning pipeline.
	ErrCodePipelineFatal ErrorCode = "PIPELINE_FATAL"
	// ErrCodePipelineStopped indicates a pipeline halted on a recoverable error.
	ErrCodePipelineStopped ErrorCode = "PIPELINE_STOPPED"
)

// Definition errors
const (
	// ErrCodeInvalidCondition indicates a condition string could not be compiled or evaluated.
	ErrCodeInvalidCondition ErrorCode = "CONDITION_INVALID"
	// ErrCodeInvalidDefinition indicates a malformed pipeline definition.
	ErrCodeInvalidDefinition ErrorCode = "DEFINITION_INVALID"
	// ErrCodeFactoryNotRegistered indicates no factory exists for a type key.
	ErrCodeFactoryNotRegistered ErrorCode = "FACTORY_NOT_REGISTERED"
	// ErrCodeReferenceCycle indicates pipelines that reference each other.
	ErrCodeReferenceCycle ErrorCode = "REFERENCE_CYCLE"
)

// Data errors (retryable)
const (
	// ErrCodeDataSource indicates a data source failed to fetch.
	ErrCodeDataSource ErrorCode = "DATA_SOURCE_ERROR"
	// ErrCodeDataSink indicates a data sink failed to process.
	ErrCodeDataSink ErrorCode = "DATA_SINK_ERROR"
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Request errors
const (
	// ErrCodeUnsupportedOperation indicates a sink cannot perform the requested operation.
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDataSource: true,
	ErrCodeDataSink:   true,
	ErrCodeTimeout:    true,
	ErrCodeInternal:   false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
