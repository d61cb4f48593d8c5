// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package upload validates a batch of uploaded recordings and runs each one
// through the extraction pipeline.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/OpenPSG/edfviewer/edf"
	"github.com/OpenPSG/edfviewer/internal/apierr"
	"github.com/OpenPSG/edfviewer/internal/extract"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Limits bound what a single batch may contain.
type Limits struct {
	MaxFiles         int
	MaxFileSize      int64  // Bytes
	AllowedExtension string // Matched case-insensitively, including the dot
	ParallelFiles    int    // Files processed at the same time
}

// FileFailure describes a file of the batch that could not be processed.
type FileFailure struct {
	FileName string      `json:"fileName"`
	Message  string      `json:"message"`
	Type     apierr.Type `json:"type"`
}

// Batch is the outcome of processing a set of uploads. Results and Failures
// keep the order the files were uploaded in.
type Batch struct {
	Results  []*extract.FileResult
	Failures []FileFailure
	Skipped  []string // Names of empty files
}

// Err returns the error describing a batch in which every file failed, or
// nil when at least one file succeeded or there was nothing to process.
func (b *Batch) Err() *apierr.APIError {
	if len(b.Results) > 0 || len(b.Failures) == 0 {
		return nil
	}

	first := b.Failures[0]
	msg := fmt.Sprintf("Failed to process %s: %s", first.FileName, first.Message)

	for _, failure := range b.Failures {
		if failure.Type != apierr.TypeDecode {
			return apierr.NewInternalError(msg, nil).WithDetails(b.Failures)
		}
	}
	return apierr.NewDecodeError(msg, nil).WithDetails(b.Failures)
}

// Service processes upload batches.
type Service struct {
	limits Limits
	logger *zap.Logger
}

// New returns a Service enforcing limits. A nil logger discards diagnostics.
func New(limits Limits, logger *zap.Logger) *Service {
	if limits.ParallelFiles <= 0 {
		limits.ParallelFiles = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{limits: limits, logger: logger}
}

// Limits returns the limits the service enforces.
func (s *Service) Limits() Limits {
	return s.limits
}

// Validate checks the batch as a whole before anything is decoded.
func (s *Service) Validate(files []*multipart.FileHeader) *apierr.APIError {
	if len(files) == 0 {
		return apierr.NewValidationError("Please select at least one file", nil)
	}
	if s.limits.MaxFiles > 0 && len(files) > s.limits.MaxFiles {
		return apierr.NewValidationError(fmt.Sprintf("At most %d files can be uploaded at once", s.limits.MaxFiles), nil).
			WithDetails(map[string]int{"maxFiles": s.limits.MaxFiles, "files": len(files)})
	}

	for _, fh := range files {
		// Empty parts are skipped by Process whatever their name.
		if fh.Size == 0 {
			continue
		}
		if s.limits.AllowedExtension != "" && !strings.EqualFold(filepath.Ext(fh.Filename), s.limits.AllowedExtension) {
			return apierr.NewValidationError(fmt.Sprintf("Only %s files are allowed: %s", s.limits.AllowedExtension, fh.Filename), nil)
		}
		if s.limits.MaxFileSize > 0 && fh.Size > s.limits.MaxFileSize {
			return apierr.NewValidationError(fmt.Sprintf("File %s exceeds the %d MB limit", fh.Filename, s.limits.MaxFileSize/(1024*1024)), nil).
				WithDetails(map[string]int64{"maxFileSize": s.limits.MaxFileSize, "fileSize": fh.Size})
		}
	}

	return nil
}

// Process decodes and extracts every file of the batch. A file that fails is
// recorded in the batch's failures without affecting the others. The error is
// only non-nil when ctx is done.
func (s *Service) Process(ctx context.Context, files []*multipart.FileHeader, x *extract.Extractor) (*Batch, error) {
	type outcome struct {
		result  *extract.FileResult
		failure *FileFailure
		skipped bool
	}
	outcomes := make([]outcome, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limits.ParallelFiles)
	for i, fh := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			logger := s.logger.With(zap.String("file", fh.Filename), zap.Int64("size", fh.Size))

			if fh.Size == 0 {
				logger.Warn("Skipping empty file")
				outcomes[i].skipped = true
				return nil
			}

			result, err := s.processFile(ctx, fh, x)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				logger.Error("Failed to process file", zap.Error(err))
				outcomes[i].failure = &FileFailure{
					FileName: fh.Filename,
					Message:  err.Error(),
					Type:     classify(err),
				}
				return nil
			}

			outcomes[i].result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{Results: []*extract.FileResult{}}
	for i, o := range outcomes {
		switch {
		case o.skipped:
			batch.Skipped = append(batch.Skipped, files[i].Filename)
		case o.failure != nil:
			batch.Failures = append(batch.Failures, *o.failure)
		default:
			batch.Results = append(batch.Results, o.result)
		}
	}

	s.logger.Info("Processed upload batch",
		zap.Int("files", len(files)),
		zap.Int("succeeded", len(batch.Results)),
		zap.Int("failed", len(batch.Failures)),
		zap.Int("skipped", len(batch.Skipped)))

	return batch, nil
}

func (s *Service) processFile(ctx context.Context, fh *multipart.FileHeader, x *extract.Extractor) (*extract.FileResult, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening upload: %w", err)
	}
	defer f.Close()

	r, err := edf.Open(f)
	if err != nil {
		return nil, err
	}

	return x.ExtractStream(ctx, r, fh.Filename, fh.Size)
}

// classify maps a file processing error onto the API error taxonomy.
func classify(err error) apierr.Type {
	var decodeErr *edf.DecodeError
	var durationErr *extract.DegenerateDurationError
	switch {
	case errors.As(err, &decodeErr), errors.As(err, &durationErr):
		return apierr.TypeDecode
	default:
		return apierr.TypeInternal
	}
}
