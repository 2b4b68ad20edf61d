// Package common holds the envelope and health types shared by the HTTP API,
// and the SDK.
package common

import "time"

// ErrorDetail is the error body of an API response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// APIResponse wraps every JSON body returned by the HTTP API.
type APIResponse[T any] struct {
	Success   bool         `json:"success"`
	Data      T            `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// OK builds a successful response.
func OK[T any](data T, requestID string) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: data, RequestID: requestID, Timestamp: time.Now().UTC()}
}

// Fail builds an error response.
func Fail(code, message, requestID string) APIResponse[any] {
	return APIResponse[any]{
		Error:     &ErrorDetail{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// HealthStatus indicates the health of a component.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}
