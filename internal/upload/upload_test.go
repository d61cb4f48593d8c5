// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package upload_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/OpenPSG/edfviewer/edf/edftest"
	"github.com/OpenPSG/edfviewer/internal/apierr"
	"github.com/OpenPSG/edfviewer/internal/extract"
	"github.com/OpenPSG/edfviewer/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type file struct {
	name string
	data []byte
}

func fileHeaders(t *testing.T, files ...file) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["files"]
}

func recording(t *testing.T, duration float64) []byte {
	t.Helper()

	hdr := edftest.UnitHeader(duration, 256, 128)

	a := make([]float64, 256*4)
	for i := range a {
		a[i] = float64(i % 100)
	}
	b := make([]float64, 128*4)

	data, err := edftest.Encode(hdr, [][]float64{a, b})
	require.NoError(t, err)
	return data
}

func defaultLimits() upload.Limits {
	return upload.Limits{
		MaxFiles:         3,
		MaxFileSize:      100 * 1024 * 1024,
		AllowedExtension: ".edf",
		ParallelFiles:    3,
	}
}

func TestValidate(t *testing.T) {
	s := upload.New(defaultLimits(), zap.NewNop())
	data := []byte("x")

	tests := []struct {
		name  string
		files []file
		ok    bool
	}{
		{"no files", nil, false},
		{"one file", []file{{"a.edf", data}}, true},
		{"upper case extension", []file{{"A.EDF", data}}, true},
		{"three files", []file{{"a.edf", data}, {"b.edf", data}, {"c.edf", data}}, true},
		{"too many files", []file{{"a.edf", data}, {"b.edf", data}, {"c.edf", data}, {"d.edf", data}}, false},
		{"wrong extension", []file{{"a.edf", data}, {"notes.txt", data}}, false},
		{"no extension", []file{{"edf", data}}, false},
		{"empty file of another type", []file{{"a.edf", data}, {"notes.txt", nil}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []*multipart.FileHeader
			if len(tt.files) > 0 {
				headers = fileHeaders(t, tt.files...)
			}

			err := s.Validate(headers)
			if tt.ok {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, apierr.TypeValidation, err.Type)
			assert.Equal(t, http.StatusBadRequest, err.Code)
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	limits := defaultLimits()
	limits.MaxFileSize = 10
	s := upload.New(limits, nil)

	assert.Nil(t, s.Validate(fileHeaders(t, file{"a.edf", make([]byte, 10)})))

	err := s.Validate(fileHeaders(t, file{"a.edf", make([]byte, 10)}, file{"b.edf", make([]byte, 11)}))
	require.NotNil(t, err)
	assert.Equal(t, http.StatusBadRequest, err.Code)
	assert.Contains(t, err.Message, "b.edf")
}

func TestProcess(t *testing.T) {
	s := upload.New(defaultLimits(), zap.NewNop())
	x := extract.New(extract.Config{Workers: 2}, nil)

	files := fileHeaders(t,
		file{"first.edf", recording(t, 1)},
		file{"garbage.edf", []byte("definitely not an EDF file")},
		file{"empty.edf", nil},
		file{"second.edf", recording(t, 2)},
	)

	batch, err := s.Process(context.Background(), files, x)
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, "first.edf", batch.Results[0].FileName)
	assert.Equal(t, "second.edf", batch.Results[1].FileName)
	assert.Equal(t, files[0].Size, batch.Results[0].FileSize)

	first := batch.Results[0]
	require.Len(t, first.Channels, 2)
	assert.Equal(t, 256.0, first.Channels[0].SampleRate)
	assert.Equal(t, 1024, first.Channels[0].TotalSampleCount)
	assert.Equal(t, 99.0, first.Channels[0].Samples[99])
	assert.Equal(t, 128.0, first.Channels[1].SampleRate)
	assert.Equal(t, 128.0, batch.Results[1].Channels[0].SampleRate)

	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "garbage.edf", batch.Failures[0].FileName)
	assert.Equal(t, apierr.TypeDecode, batch.Failures[0].Type)
	assert.NotEmpty(t, batch.Failures[0].Message)

	assert.Equal(t, []string{"empty.edf"}, batch.Skipped)
	assert.Nil(t, batch.Err())
}

func TestProcessAllFailed(t *testing.T) {
	s := upload.New(defaultLimits(), nil)

	batch, err := s.Process(context.Background(), fileHeaders(t,
		file{"garbage.edf", []byte("nope")},
		file{"zero.edf", recording(t, 0)},
	), extract.New(extract.DefaultConfig(), nil))
	require.NoError(t, err)

	assert.Empty(t, batch.Results)
	require.Len(t, batch.Failures, 2)
	assert.Equal(t, apierr.TypeDecode, batch.Failures[1].Type)
	assert.Contains(t, batch.Failures[1].Message, "sample rate")

	apiErr := batch.Err()
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Code)
	assert.Contains(t, apiErr.Message, "garbage.edf")
	assert.Equal(t, batch.Failures, apiErr.Details)
}

func TestProcessOnlyEmpty(t *testing.T) {
	s := upload.New(defaultLimits(), nil)

	batch, err := s.Process(context.Background(), fileHeaders(t, file{"empty.edf", nil}), extract.New(extract.DefaultConfig(), nil))
	require.NoError(t, err)

	assert.NotNil(t, batch.Results)
	assert.Empty(t, batch.Results)
	assert.Nil(t, batch.Err())
}

func TestProcessCancelled(t *testing.T) {
	s := upload.New(defaultLimits(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Process(ctx, fileHeaders(t, file{"a.edf", recording(t, 1)}), extract.New(extract.DefaultConfig(), nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchErr(t *testing.T) {
	batch := &upload.Batch{Failures: []upload.FileFailure{
		{FileName: "a.edf", Message: "edf: bad", Type: apierr.TypeDecode},
		{FileName: "b.edf", Message: "disk gone", Type: apierr.TypeInternal},
	}}

	apiErr := batch.Err()
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
	assert.Equal(t, "Failed to process a.edf: edf: bad", apiErr.Message)

	batch.Results = []*extract.FileResult{{FileName: "c.edf"}}
	assert.Nil(t, batch.Err())
}
