// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package extract turns decoded EDF recordings into bounded, self-describing
// channel payloads for transport and display.
package extract

import (
	"context"
	"fmt"
	"math"

	"github.com/OpenPSG/edfviewer/edf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDisplayWindowMinutes is the viewing window suggested to clients.
const DefaultDisplayWindowMinutes = 10.0

// Config tunes an Extractor.
type Config struct {
	MaxPoints            int     // Per-channel point budget
	DisplayWindowMinutes float64 // Forwarded to clients as a framing hint
	Workers              int     // Channels extracted concurrently
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxPoints:            MaxPoints,
		DisplayWindowMinutes: DefaultDisplayWindowMinutes,
		Workers:              1,
	}
}

// Extractor builds FileResults from decoded recordings. It holds no state
// between calls and is safe for concurrent use.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New returns an Extractor. Unset config fields take their defaults and a nil
// logger discards diagnostics.
func New(cfg Config, logger *zap.Logger) *Extractor {
	defaults := DefaultConfig()
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = defaults.MaxPoints
	}
	if cfg.DisplayWindowMinutes <= 0 {
		cfg.DisplayWindowMinutes = defaults.DisplayWindowMinutes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{cfg: cfg, logger: logger}
}

// MaxPoints returns the per-channel point budget.
func (x *Extractor) MaxPoints() int {
	return x.cfg.MaxPoints
}

// WithMaxPoints returns an Extractor with the point budget lowered to n. A
// budget that is not below the current one is ignored.
func (x *Extractor) WithMaxPoints(n int) *Extractor {
	if n <= 0 || n >= x.cfg.MaxPoints {
		return x
	}

	cfg := x.cfg
	cfg.MaxPoints = n
	return &Extractor{cfg: cfg, logger: x.logger}
}

// Extract builds the FileResult of a decoded recording. A nil sig, or a
// missing channel within it, yields channels without samples.
func (x *Extractor) Extract(ctx context.Context, hdr *edf.Header, sig *edf.Signal, fileName string, fileSize int64) (*FileResult, error) {
	if hdr == nil {
		return nil, ErrMissingHeader
	}

	return x.extract(ctx, hdr, fileName, fileSize, x.cfg.Workers, func(i int) (SampleSource, error) {
		if sig == nil || i >= len(sig.Channels) || sig.Channels[i] == nil {
			return nil, nil
		}
		return &sliceSource{values: sig.Channels[i]}, nil
	})
}

// ExtractStream is Extract reading each channel straight from r, without
// materializing the full signal.
func (x *Extractor) ExtractStream(ctx context.Context, r *edf.Reader, fileName string, fileSize int64) (*FileResult, error) {
	if r == nil || r.Header() == nil {
		return nil, ErrMissingHeader
	}

	workers := x.cfg.Workers
	if !r.ConcurrentSafe() {
		workers = 1
	}

	return x.extract(ctx, r.Header(), fileName, fileSize, workers, func(i int) (SampleSource, error) {
		if !r.Complete() {
			return nil, nil
		}
		sr, err := r.Signal(i)
		if err != nil {
			return nil, err
		}
		return sr, nil
	})
}

func (x *Extractor) extract(ctx context.Context, hdr *edf.Header, fileName string, fileSize int64, workers int, source func(i int) (SampleSource, error)) (*FileResult, error) {
	logger := x.logger.With(zap.String("file", fileName))

	start, err := DeriveStartSeconds(hdr.StartDate, hdr.StartTime)
	if err != nil {
		logger.Warn("Using midnight as recording start", zap.Error(err))
	}

	channels := make([]ChannelPayload, max(hdr.SignalCount, 0))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range channels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			src, err := source(i)
			if err != nil {
				return fmt.Errorf("channel %d: %w", i+1, err)
			}

			channel, err := x.buildChannel(logger, hdr, i, start, src)
			if err != nil {
				return err
			}
			channels[i] = channel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalDuration := float64(hdr.DataRecords) * hdr.DataRecordDuration

	fields := []zap.Field{
		zap.Int("channels", len(channels)),
		zap.Float64("totalDurationMinutes", totalDuration/60),
	}
	if recordingStart, err := hdr.Start(); err == nil {
		fields = append(fields, zap.Time("recordingStart", recordingStart))
	}
	logger.Info("Extracted file", fields...)

	return &FileResult{
		FileName:        fileName,
		FileSize:        fileSize,
		PatientID:       hdr.PatientID,
		RecordID:        hdr.RecordingID,
		StartDate:       hdr.StartDate,
		StartTime:       hdr.StartTime,
		Duration:        hdr.DataRecordDuration,
		NumberOfRecords: hdr.DataRecords,
		ChannelCount:    hdr.SignalCount,
		TotalDuration:   totalDuration,
		Channels:        channels,
		Metadata: Metadata{
			ActualDuration:         totalDuration,
			TotalDurationMinutes:   totalDuration / 60,
			DisplayDurationMinutes: x.cfg.DisplayWindowMinutes,
		},
	}, nil
}

func (x *Extractor) buildChannel(logger *zap.Logger, hdr *edf.Header, i int, start int64, src SampleSource) (ChannelPayload, error) {
	channel, defaulted := describeChannel(hdr, i)
	if len(defaulted) > 0 {
		logger.Warn("Substituted defaults for missing channel header fields",
			zap.Int("channel", channel.Index),
			zap.Strings("fields", defaulted))
	}

	channel.SignalStartTime = start
	channel.SignalStartTimeFormatted = hdr.StartTime
	channel.SignalEndTime = start
	channel.SamplingStep = 1

	if src == nil || src.Len() == 0 {
		logger.Warn("Channel has no sample data", zap.Int("channel", channel.Index))
		channel.SampleRate = DefaultSampleRate
		channel.SamplingInterval = 1 / DefaultSampleRate
		channel.Samples = []float64{}
		channel.Timestamps = []float64{}
		return channel, nil
	}

	rate, ok := sampleRate(channel.SamplesPerRecord, hdr.DataRecordDuration)
	if !ok {
		return ChannelPayload{}, &DegenerateDurationError{
			Channel:          channel.Index,
			Duration:         hdr.DataRecordDuration,
			SamplesPerRecord: channel.SamplesPerRecord,
		}
	}

	series, err := DecimateStream(src, float64(start), rate, x.cfg.MaxPoints)
	if err != nil {
		return ChannelPayload{}, fmt.Errorf("channel %d: %w", channel.Index, err)
	}

	duration := float64(series.Total) / rate

	channel.SampleRate = rate
	channel.SignalDuration = duration
	channel.SignalEndTime = start + int64(duration)
	channel.Samples = series.Samples
	channel.Timestamps = series.Timestamps
	channel.TotalSampleCount = series.Total
	channel.SampledCount = len(series.Samples)
	channel.SamplingStep = series.Step
	channel.SamplingInterval = 1 / rate

	logger.Info("Extracted channel",
		zap.Int("channel", channel.Index),
		zap.String("label", channel.Label),
		zap.Int("totalPoints", channel.TotalSampleCount),
		zap.Int("sentPoints", channel.SampledCount),
		zap.Int("step", channel.SamplingStep),
		zap.Float64("sampleRateHz", rate),
		zap.Float64("durationMinutes", duration/60),
		zap.String("startTime", hdr.StartTime))

	return channel, nil
}

// sampleRate returns samplesPerRecord/duration when it is a usable rate.
func sampleRate(samplesPerRecord int, duration float64) (float64, bool) {
	if duration <= 0 || samplesPerRecord <= 0 {
		return 0, false
	}

	rate := float64(samplesPerRecord) / duration
	if math.IsInf(rate, 0) || math.IsNaN(rate) {
		return 0, false
	}
	return rate, true
}
