// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a pipeline failure for metrics and boundary handling.
type ErrorCode string

const (
	// ErrCodeEmbedding marks a failed embedding-service call.
	ErrCodeEmbedding ErrorCode = "embedding_failure"

	// ErrCodeRetrieval marks a failed or malformed vector-index query.
	// Malformed upstream responses are folded into this code.
	ErrCodeRetrieval ErrorCode = "retrieval_failure"

	// ErrCodeExtractionTimeout marks an AI date-fallback call that exceeded
	// its budget. Always recovered locally — the facet is dropped and the
	// search continues.
	ErrCodeExtractionTimeout ErrorCode = "extraction_timeout"
)

// PipelineError is a typed failure from a pipeline stage.
//
// Every stage error that crosses a component boundary is a *PipelineError so
// the Service boundary can classify it without string matching. The boundary
// converts all of them into one of exactly two user-visible outcomes; raw
// errors never reach the transport.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewPipelineError creates a PipelineError without an underlying cause.
func NewPipelineError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// WrapPipelineError creates a PipelineError wrapping an underlying cause.
func WrapPipelineError(code ErrorCode, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a
// PipelineError.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
