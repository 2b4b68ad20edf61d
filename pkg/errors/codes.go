package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies a failure category. The prefix before the underscore
// names the module that owns the code.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeDatabaseError      ErrorCode = "COMMON_009"
	ErrCodeCacheError         ErrorCode = "COMMON_010"
	ErrCodeStorageError       ErrorCode = "COMMON_011"
	ErrCodeMessagingError     ErrorCode = "COMMON_012"
	ErrCodeInvalidConfig      ErrorCode = "COMMON_013"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_014"
	ErrCodeUnauthorized       ErrorCode = "COMMON_015"

	// CodeOK is returned by GetCode for a nil error.
	CodeOK ErrorCode = "OK"
	// CodeUnknown marks an error without an AppError in its chain.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Feed error codes cover fetching and decoding the incident document.
const (
	ErrCodeFeedUnavailable ErrorCode = "FEED_001"
	ErrCodeFeedMalformed   ErrorCode = "FEED_002"
	ErrCodeFeedIncomplete  ErrorCode = "FEED_003"
)

// Dashboard error codes.
const (
	ErrCodeUnknownDataset  ErrorCode = "DASH_001"
	ErrCodeSnapshotMissing ErrorCode = "DASH_002"
	ErrCodeClusterNotFound ErrorCode = "DASH_003"
	ErrCodeRefreshInFlight ErrorCode = "DASH_004"
)

// Ingest error codes cover the CSV enrichment step.
const (
	ErrCodeIngestColumnMissing  ErrorCode = "INGEST_001"
	ErrCodeIngestMappingInvalid ErrorCode = "INGEST_002"
	ErrCodeIngestReadFailed     ErrorCode = "INGEST_003"
)

// Notification error codes.
const (
	ErrCodeNotifyDeliveryFailed ErrorCode = "NOTIFY_001"
	ErrCodeNotifyThrottled      ErrorCode = "NOTIFY_002"
	ErrCodeNotifyDisabled       ErrorCode = "NOTIFY_003"
)

// ErrorCodeHTTPStatus maps codes to the status returned by the HTTP API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeInvalidConfig:      http.StatusInternalServerError,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeUnauthorized:       http.StatusUnauthorized,

	ErrCodeFeedUnavailable: http.StatusBadGateway,
	ErrCodeFeedMalformed:   http.StatusBadGateway,
	ErrCodeFeedIncomplete:  http.StatusBadGateway,

	ErrCodeUnknownDataset:  http.StatusNotFound,
	ErrCodeSnapshotMissing: http.StatusServiceUnavailable,
	ErrCodeClusterNotFound: http.StatusNotFound,
	ErrCodeRefreshInFlight: http.StatusConflict,

	ErrCodeIngestColumnMissing:  http.StatusUnprocessableEntity,
	ErrCodeIngestMappingInvalid: http.StatusUnprocessableEntity,
	ErrCodeIngestReadFailed:     http.StatusInternalServerError,

	ErrCodeNotifyDeliveryFailed: http.StatusBadGateway,
	ErrCodeNotifyThrottled:      http.StatusTooManyRequests,
	ErrCodeNotifyDisabled:       http.StatusServiceUnavailable,
}

// ErrorCodeMessage holds the default client-facing message per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "messaging error",
	ErrCodeInvalidConfig:      "invalid configuration",
	ErrCodeTooManyRequests:    "rate limit exceeded",
	ErrCodeUnauthorized:       "authentication required",

	ErrCodeFeedUnavailable: "incident feed unavailable",
	ErrCodeFeedMalformed:   "incident feed is malformed",
	ErrCodeFeedIncomplete:  "incident feed is missing a dataset",

	ErrCodeUnknownDataset:  "unknown dataset",
	ErrCodeSnapshotMissing: "no snapshot loaded yet",
	ErrCodeClusterNotFound: "cluster not found",
	ErrCodeRefreshInFlight: "a refresh is already running",

	ErrCodeIngestColumnMissing:  "required column missing from export",
	ErrCodeIngestMappingInvalid: "invalid cluster mapping file",
	ErrCodeIngestReadFailed:     "failed to read export",

	ErrCodeNotifyDeliveryFailed: "failed to deliver notification",
	ErrCodeNotifyThrottled:      "notification throttled",
	ErrCodeNotifyDisabled:       "notifications disabled",
}

// HTTPStatusForCode returns the HTTP status for code, 500 when unmapped.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code ("FEED" for "FEED_002").
func ModuleForCode(code ErrorCode) string {
	prefix, _, found := strings.Cut(string(code), "_")
	if !found || prefix == "" {
		return "UNKNOWN"
	}
	return prefix
}
