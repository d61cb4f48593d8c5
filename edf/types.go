// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	// DateLayout is the layout of the start date field (dd.mm.yy).
	DateLayout = "02.01.06"
	// TimeLayout is the layout of the start time field (hh.mm.ss).
	TimeLayout = "15.04.05"
)

// Header represents the EDF/EDF+ file header.
//
// The per-signal fields are stored as parallel arrays in the order they appear
// in the file. A file whose signal header section is cut short leaves the
// arrays it never reached nil, and the array it was reading when the stream
// ended shorter than SignalCount.
type Header struct {
	Version            Version // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string  // Identification of the patient
	RecordingID        string  // Identification of the recording session
	StartDate          string  // Start date of the recording (dd.mm.yy)
	StartTime          string  // Start time of the recording (hh.mm.ss)
	HeaderBytes        int     // Number of bytes in the header
	DataRecordDuration float64 // Duration of a single data record in seconds
	DataRecords        int     // Number of data records, -1 if unknown
	SignalCount        int     // Number of signals in each data record

	Labels             []string  // Label of each signal (e.g., EEG Fpz-Cz)
	TransducerTypes    []string  // Type of transducer used
	PhysicalDimensions []string  // Physical dimension (e.g., uV, mV)
	PhysicalMins       []float64 // Minimum physical value
	PhysicalMaxs       []float64 // Maximum physical value
	DigitalMins        []int     // Minimum digital value
	DigitalMaxs        []int     // Maximum digital value
	Prefilterings      []string  // Pre-filtering information
	SamplesPerRecord   []int     // Number of samples in each data record for each signal
	Reserved           []string  // Reserved for future use
}

// Start returns the start of the recording as a time.Time.
func (h *Header) Start() (time.Time, error) {
	startDate, err := time.Parse(DateLayout, h.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse(TimeLayout, h.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing start time: %w", err)
	}

	return time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC), nil
}

// Signal holds the physical values of every signal in a recording, one slice
// per signal in header order.
type Signal struct {
	Channels [][]float64
}
