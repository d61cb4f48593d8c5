// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package apierr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/OpenPSG/edfviewer/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		err  *apierr.APIError
		typ  apierr.Type
		code int
	}{
		{apierr.NewValidationError("bad", cause), apierr.TypeValidation, http.StatusBadRequest},
		{apierr.NewTooLargeError("big", cause), apierr.TypeTooLarge, http.StatusRequestEntityTooLarge},
		{apierr.NewDecodeError("garbled", cause), apierr.TypeDecode, http.StatusUnprocessableEntity},
		{apierr.NewInternalError("oops", cause), apierr.TypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.ErrorIs(t, tt.err, cause)
			assert.Contains(t, tt.err.Error(), "boom")
		})
	}
}

func TestJSONHidesCause(t *testing.T) {
	err := apierr.NewValidationError("no files uploaded", errors.New("secret")).
		WithRequestID("abc").
		WithDetails(map[string]int{"maxFiles": 3})

	b, jsonErr := json.Marshal(err)
	require.NoError(t, jsonErr)

	assert.JSONEq(t, `{
		"type": "validation",
		"message": "no files uploaded",
		"code": 400,
		"requestId": "abc",
		"details": {"maxFiles": 3}
	}`, string(b))
}

func TestAs(t *testing.T) {
	validation := apierr.NewValidationError("bad", nil)
	assert.Same(t, validation, apierr.As(fmt.Errorf("wrapped: %w", validation)))

	internal := apierr.As(errors.New("boom"))
	assert.Equal(t, apierr.TypeInternal, internal.Type)
	assert.Equal(t, http.StatusInternalServerError, internal.Code)
	assert.ErrorContains(t, internal, "boom")
}
