// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package extract

// ChannelPayload is the self-describing transport form of one channel.
type ChannelPayload struct {
	Index             int     `json:"index"` // 1-based
	Label             string  `json:"label"`
	TransducerType    string  `json:"transducerType"`
	PhysicalDimension string  `json:"physicalDimension"`
	PhysicalMinimum   float64 `json:"physicalMinimum"`
	PhysicalMaximum   float64 `json:"physicalMaximum"`
	DigitalMinimum    int     `json:"digitalMinimum"`
	DigitalMaximum    int     `json:"digitalMaximum"`
	Prefiltering      string  `json:"prefiltering"`
	SamplesPerRecord  int     `json:"samplesPerRecord"`

	SampleRate               float64 `json:"sampleRate"`               // Hz
	SignalStartTime          int64   `json:"signalStartTime"`          // Seconds since midnight
	SignalStartTimeFormatted string  `json:"signalStartTimeFormatted"` // As found in the header (hh.mm.ss)
	SignalDuration           float64 `json:"signalDuration"`           // Seconds
	SignalEndTime            int64   `json:"signalEndTime"`            // Start plus whole seconds of duration

	Samples          []float64 `json:"allDataPoints"`
	Timestamps       []float64 `json:"allTimeStamps"` // Seconds since midnight, paired with Samples
	TotalSampleCount int       `json:"totalDataPoints"`
	SampledCount     int       `json:"sampledDataPoints"`
	SamplingStep     int       `json:"samplingStep"`
	SamplingInterval float64   `json:"samplingInterval"` // Seconds between raw samples
}

// Metadata carries file-level hints for the client.
type Metadata struct {
	ActualDuration         float64 `json:"actualDuration"` // Seconds
	TotalDurationMinutes   float64 `json:"totalDurationMinutes"`
	DisplayDurationMinutes float64 `json:"displayDurationMinutes"` // Default viewing window
}

// FileResult is everything extracted from one recording.
type FileResult struct {
	FileName        string           `json:"fileName"`
	FileSize        int64            `json:"fileSize"`
	PatientID       string           `json:"patientId"`
	RecordID        string           `json:"recordId"`
	StartDate       string           `json:"startDate"`
	StartTime       string           `json:"startTime"`
	Duration        float64          `json:"duration"` // Seconds per data record
	NumberOfRecords int              `json:"numberOfRecords"`
	ChannelCount    int              `json:"channelCount"`
	TotalDuration   float64          `json:"totalDuration"` // Seconds
	Channels        []ChannelPayload `json:"channels"`
	Metadata        Metadata         `json:"metadata"`
}
