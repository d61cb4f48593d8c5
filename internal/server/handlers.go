// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/OpenPSG/edfviewer/internal/apierr"
	"github.com/OpenPSG/edfviewer/internal/extract"
	"github.com/OpenPSG/edfviewer/internal/upload"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Form data beyond this is spooled to disk.
const multipartMemory = 32 << 20

// Allowance for multipart framing and form values on top of the file limits.
const formOverhead = 1 << 20

// UploadOptions are the optional form values of an upload.
type UploadOptions struct {
	MaxPoints int `schema:"maxPoints"` // Lowers the per-channel point budget
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message"`
	RequestID string                `json:"requestId"`
	Data      []*extract.FileResult `json:"data"`
	Failures  []upload.FileFailure  `json:"failures"`
}

// HealthResponse is the body of a health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Message: "EDF parsing service is running",
			Version: s.version,
		})
	}
}

func (s *Server) handleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		logger := s.logger.With(zap.String("requestId", requestID))

		limits := s.uploads.Limits()
		r.Body = http.MaxBytesReader(w, r.Body, int64(limits.MaxFiles)*limits.MaxFileSize+formOverhead)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				s.respondWithError(w, logger, apierr.NewTooLargeError("upload too large", err).WithRequestID(requestID))
				return
			}
			s.respondWithError(w, logger, apierr.NewValidationError("invalid multipart upload", err).WithRequestID(requestID))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		var opts UploadOptions
		if err := s.decoder.Decode(&opts, r.MultipartForm.Value); err != nil {
			s.respondWithError(w, logger, apierr.NewValidationError("invalid upload options", err).WithRequestID(requestID))
			return
		}
		if opts.MaxPoints < 0 {
			s.respondWithError(w, logger, apierr.NewValidationError("maxPoints must not be negative", nil).WithRequestID(requestID))
			return
		}

		files := r.MultipartForm.File["files"]
		if apiErr := s.uploads.Validate(files); apiErr != nil {
			s.respondWithError(w, logger, apiErr.WithRequestID(requestID))
			return
		}

		logger.Info("Received upload", zap.Int("files", len(files)))

		batch, err := s.uploads.Process(r.Context(), files, s.extractor.WithMaxPoints(opts.MaxPoints))
		if err != nil {
			s.respondWithError(w, logger, apierr.As(err).WithRequestID(requestID))
			return
		}
		if apiErr := batch.Err(); apiErr != nil {
			s.respondWithError(w, logger, apiErr.WithRequestID(requestID))
			return
		}

		failures := batch.Failures
		if failures == nil {
			failures = []upload.FileFailure{}
		}

		respondWithJSON(w, http.StatusOK, UploadResponse{
			Success:   true,
			Message:   fmt.Sprintf("Processed %d of %d files", len(batch.Results), len(files)),
			RequestID: requestID,
			Data:      batch.Results,
			Failures:  failures,
		})
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, logger *zap.Logger, err *apierr.APIError) {
	if err.Code >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	} else {
		logger.Warn("Request rejected", zap.Error(err))
	}
	respondWithJSON(w, err.Code, err)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
