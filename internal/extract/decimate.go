// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package extract

import (
	"errors"
	"io"
)

// MaxPoints is the default per-channel transport budget.
const MaxPoints = 100_000

// Samples are pulled from a source this many at a time.
const readChunk = 8192

// SampleSource supplies the physical values of one channel in order.
// *edf.SignalReader satisfies it.
type SampleSource interface {
	// Len returns the number of samples the source will yield.
	Len() int
	// Read fills dst and returns io.EOF once the source is exhausted.
	Read(dst []float64) (int, error)
}

// Series is a decimated channel: every Step-th raw sample and the absolute
// time it was taken at.
type Series struct {
	Samples    []float64
	Timestamps []float64
	Total      int // Number of raw samples consumed
	Step       int
}

// Step returns the stride that keeps n samples near maxPoints.
func Step(n, maxPoints int) int {
	if maxPoints <= 0 {
		maxPoints = MaxPoints
	}
	return max(1, n/maxPoints)
}

// SampledCount returns how many samples a stride of step keeps out of n.
func SampledCount(n, step int) int {
	if n <= 0 {
		return 0
	}
	return (n + step - 1) / step
}

// Decimate keeps every Step(len(samples), maxPoints)-th sample. The timestamp
// of raw sample j is start + j/rate.
func Decimate(samples []float64, start, rate float64, maxPoints int) Series {
	// A slice source never fails.
	series, _ := DecimateStream(&sliceSource{values: samples}, start, rate, maxPoints)
	return series
}

// DecimateStream is Decimate over a source read in fixed-size chunks, so only
// the kept samples are ever held in memory.
func DecimateStream(src SampleSource, start, rate float64, maxPoints int) (Series, error) {
	n := src.Len()
	step := Step(n, maxPoints)
	kept := SampledCount(n, step)

	series := Series{
		Samples:    make([]float64, 0, kept),
		Timestamps: make([]float64, 0, kept),
		Step:       step,
	}
	if n == 0 {
		return series, nil
	}

	buf := make([]float64, min(readChunk, n))
	pos, next := 0, 0
	for pos < n {
		m, err := src.Read(buf[:min(len(buf), n-pos)])
		for ; next < pos+m; next += step {
			series.Samples = append(series.Samples, buf[next-pos])
			series.Timestamps = append(series.Timestamps, start+float64(next)/rate)
		}
		pos += m

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Series{}, err
		}
		if m == 0 {
			return Series{}, io.ErrNoProgress
		}
	}
	series.Total = pos

	return series, nil
}

type sliceSource struct {
	values []float64
	off    int
}

func (s *sliceSource) Len() int {
	return len(s.values)
}

func (s *sliceSource) Read(dst []float64) (int, error) {
	if s.off >= len(s.values) {
		return 0, io.EOF
	}
	n := copy(dst, s.values[s.off:])
	s.off += n
	return n, nil
}
