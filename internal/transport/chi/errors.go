package chi

import "net/http"

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest              ErrorCode = "bad_request"
	ErrorCodeUnauthorized            ErrorCode = "unauthorized"
	ErrorCodeInvalidArgument         ErrorCode = "invalid_argument"
	ErrorCodeIndexNotReady           ErrorCode = "index_not_ready"
	ErrorCodeSchemaError             ErrorCode = "schema_error"
	ErrorCodeEmptyCatalog            ErrorCode = "empty_catalog"
	ErrorCodeEncodingError           ErrorCode = "encoding_error"
	ErrorCodeCompletionProviderError ErrorCode = "completion_provider_error"
	ErrorCodeDimensionMismatch       ErrorCode = "dimension_mismatch"
	ErrorCodeTimeout                 ErrorCode = "timeout"
	ErrorCodeInternalError           ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
