// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package apierr defines the structured errors returned by the HTTP API.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type classifies an APIError.
type Type string

const (
	TypeValidation Type = "validation" // The request was malformed
	TypeTooLarge   Type = "too_large"  // The request body exceeded its limit
	TypeDecode     Type = "decode"     // An upload was not a readable EDF file
	TypeInternal   Type = "internal"
)

// APIError is the JSON error body of a failed request.
type APIError struct {
	Type      Type   `json:"type"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
	err       error  // Cause, logged but never sent
}

func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID sets the ID of the request that failed.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails attaches extra context for the client.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func newError(t Type, code int, msg string, err error) *APIError {
	return &APIError{Type: t, Message: msg, Code: code, err: err}
}

// NewValidationError returns a 400 error.
func NewValidationError(msg string, err error) *APIError {
	return newError(TypeValidation, http.StatusBadRequest, msg, err)
}

// NewTooLargeError returns a 413 error.
func NewTooLargeError(msg string, err error) *APIError {
	return newError(TypeTooLarge, http.StatusRequestEntityTooLarge, msg, err)
}

// NewDecodeError returns a 422 error.
func NewDecodeError(msg string, err error) *APIError {
	return newError(TypeDecode, http.StatusUnprocessableEntity, msg, err)
}

// NewInternalError returns a 500 error.
func NewInternalError(msg string, err error) *APIError {
	return newError(TypeInternal, http.StatusInternalServerError, msg, err)
}

// As returns err as an *APIError, wrapping anything else as an internal error.
func As(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError("internal server error", err)
}
