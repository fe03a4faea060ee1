// Package errors provides standardized error handling for the search
// relevance engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCandidateFetchFailed ErrorCode = "CANDIDATE_FETCH_FAILED"
	ErrCodeSearchTimeout        ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeHistoryWriteFailed ErrorCode = "HISTORY_WRITE_FAILED"
	ErrCodeTrendUpdateFailed  ErrorCode = "TREND_UPDATE_FAILED"
	ErrCodeMetricWriteFailed  ErrorCode = "METRIC_WRITE_FAILED"

	ErrCodeInvalidClickEvent ErrorCode = "INVALID_CLICK_EVENT"
)

// StandardError represents a structured application error. A search
// failure carrying a StandardError is distinguishable from "no results",
// which is a successful response with empty buckets.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewCandidateFetchFailedError creates a retryable storage fetch error.
func NewCandidateFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCandidateFetchFailed,
		Message:   "Candidate batch fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable computation timeout error.
func NewSearchTimeoutError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Search computation timed out",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search execution error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query execution failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable missing index error.
func NewIndexNotFoundError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Search index not found",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryWriteFailedError creates a retryable history store error.
// Recording errors are logged and metered, never propagated to the
// search caller.
func NewHistoryWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryWriteFailed,
		Message:   "Search history write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrendUpdateFailedError creates a retryable trend counter error.
func NewTrendUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrendUpdateFailed,
		Message:   "Trending term update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetricWriteFailedError creates a retryable metric store error.
func NewMetricWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMetricWriteFailed,
		Message:   "Search metric event write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidClickEventError creates a non-retryable click payload error.
func NewInvalidClickEventError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidClickEvent,
		Message:   "Click event failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
