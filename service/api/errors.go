// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package api

const (
	ErrCodeInvalidJson        = "invalid_json"
	ErrCodeValidationError    = "validation_error"
	ErrCodeTaskNotFound       = "task_not_found"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeDequeueFailed      = "dequeue_failed"
	ErrCodeRecurringFailed    = "recurring_failed"
	ErrCodeLongPollingTimeout = "timeout"
	ErrCodeInternalError      = "internal_error"
)

type ApiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ApiErrorResponse is the error envelope of every non-2xx response
type ApiErrorResponse struct {
	Error ApiErrorDetail `json:"error"`
}

type ErrorWithStatus struct {
	StatusCode int
	Error      ApiErrorResponse
}

func NewErrorWithStatus(statusCode int, code string, message string) *ErrorWithStatus {
	return &ErrorWithStatus{
		StatusCode: statusCode,
		Error: ApiErrorResponse{
			Error: ApiErrorDetail{
				Code:    code,
				Message: message,
			},
		},
	}
}
