// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edftest builds EDF recordings in memory for tests.
package edftest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/OpenPSG/edfviewer/edf"
)

// UnitHeader returns a header whose calibration maps every digital value onto
// the same physical value, so integral physical samples survive encoding
// exactly.
func UnitHeader(duration float64, samplesPerRecord ...int) edf.Header {
	n := len(samplesPerRecord)
	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "Patient X",
		RecordingID:        "Recording 1",
		StartDate:          "01.01.20",
		StartTime:          "10.00.00",
		DataRecordDuration: duration,
		SignalCount:        n,
		SamplesPerRecord:   samplesPerRecord,
	}
	for i := 0; i < n; i++ {
		hdr.Labels = append(hdr.Labels, fmt.Sprintf("EEG %d", i+1))
		hdr.TransducerTypes = append(hdr.TransducerTypes, "AgAgCl electrode")
		hdr.PhysicalDimensions = append(hdr.PhysicalDimensions, "uV")
		hdr.PhysicalMins = append(hdr.PhysicalMins, math.MinInt16)
		hdr.PhysicalMaxs = append(hdr.PhysicalMaxs, math.MaxInt16)
		hdr.DigitalMins = append(hdr.DigitalMins, math.MinInt16)
		hdr.DigitalMaxs = append(hdr.DigitalMaxs, math.MaxInt16)
		hdr.Prefilterings = append(hdr.Prefilterings, "HP:0.1Hz LP:75Hz")
	}
	return hdr
}

// Encode returns an EDF file holding hdr and the physical values of each
// signal. Every signal must span the same whole number of data records. A
// header with DataRecords set to -1 is written with an unknown record count.
func Encode(hdr edf.Header, signals [][]float64) ([]byte, error) {
	if len(signals) != hdr.SignalCount {
		return nil, fmt.Errorf("expected %d signals, got %d", hdr.SignalCount, len(signals))
	}
	if len(hdr.SamplesPerRecord) != hdr.SignalCount {
		return nil, fmt.Errorf("expected %d samples per record values, got %d", hdr.SignalCount, len(hdr.SamplesPerRecord))
	}

	records := 0
	for i, signal := range signals {
		samples := hdr.SamplesPerRecord[i]
		if samples <= 0 || len(signal)%samples != 0 {
			return nil, fmt.Errorf("signal %d does not fill whole data records", i)
		}
		if i == 0 {
			records = len(signal) / samples
		} else if len(signal)/samples != records {
			return nil, fmt.Errorf("signal %d spans %d data records, expected %d", i, len(signal)/samples, records)
		}
	}

	unknownRecords := hdr.DataRecords < 0
	hdr.DataRecords = records
	hdr.HeaderBytes = 256 + (hdr.SignalCount * 256)

	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	if err := writeHeader(writer, &hdr, unknownRecords); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	for record := 0; record < records; record++ {
		if err := writeRecord(writer, &hdr, signals, record); err != nil {
			return nil, fmt.Errorf("error writing record %d: %w", record, err)
		}
	}

	// Ensure all data is flushed to the underlying buffer
	if err := writer.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeRecord writes a single data record.
func writeRecord(writer *bufio.Writer, hdr *edf.Header, signals [][]float64, record int) error {
	var totalSamples int
	for _, samples := range hdr.SamplesPerRecord {
		totalSamples += samples
	}

	// As recommended by the EDF standard.
	if totalSamples*2 > 61440 {
		return fmt.Errorf("data record too large: %d bytes, max is 61440 bytes", totalSamples*2)
	}

	for i := 0; i < hdr.SignalCount; i++ {
		samples := hdr.SamplesPerRecord[i]
		pmin, pmax := floatAt(hdr.PhysicalMins, i), floatAt(hdr.PhysicalMaxs, i)
		dmin, dmax := intAt(hdr.DigitalMins, i), intAt(hdr.DigitalMaxs, i)
		for _, sample := range signals[i][record*samples : (record+1)*samples] {
			digitalValue := convertPhysicalToDigital(sample, pmin, pmax, dmin, dmax)
			if err := binary.Write(writer, binary.LittleEndian, digitalValue); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeHeader(writer *bufio.Writer, hdr *edf.Header, unknownRecords bool) error {
	dataRecords := hdr.DataRecords
	if unknownRecords {
		dataRecords = -1
	}

	fields := []string{
		fmt.Sprintf("%-8s", hdr.Version),
		fmt.Sprintf("%-80s", hdr.PatientID),
		fmt.Sprintf("%-80s", hdr.RecordingID),
		fmt.Sprintf("%-8s", hdr.StartDate),
		fmt.Sprintf("%-8s", hdr.StartTime),
		fmt.Sprintf("%-8d", hdr.HeaderBytes),
		fmt.Sprintf("%-44s", ""), // Reserved
		fmt.Sprintf("%-8d", dataRecords),
		fmt.Sprintf("%-8s", formatDuration(hdr.DataRecordDuration)),
		fmt.Sprintf("%-4d", hdr.SignalCount),
	}
	for _, field := range fields {
		if _, err := writer.WriteString(field); err != nil {
			return err
		}
	}

	groups := []func(i int) string{
		func(i int) string { return fmt.Sprintf("%-16s", stringAt(hdr.Labels, i)) },
		func(i int) string { return fmt.Sprintf("%-80s", stringAt(hdr.TransducerTypes, i)) },
		func(i int) string { return fmt.Sprintf("%-8s", stringAt(hdr.PhysicalDimensions, i)) },
		func(i int) string { return formatPhysicalValue(floatAt(hdr.PhysicalMins, i)) },
		func(i int) string { return formatPhysicalValue(floatAt(hdr.PhysicalMaxs, i)) },
		func(i int) string { return fmt.Sprintf("%-8d", intAt(hdr.DigitalMins, i)) },
		func(i int) string { return fmt.Sprintf("%-8d", intAt(hdr.DigitalMaxs, i)) },
		func(i int) string { return fmt.Sprintf("%-80s", stringAt(hdr.Prefilterings, i)) },
		func(i int) string { return fmt.Sprintf("%-8d", intAt(hdr.SamplesPerRecord, i)) },
		func(i int) string { return fmt.Sprintf("%-32s", stringAt(hdr.Reserved, i)) },
	}
	for _, field := range groups {
		for i := 0; i < hdr.SignalCount; i++ {
			if _, err := writer.WriteString(field(i)); err != nil {
				return err
			}
		}
	}

	return nil
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := ((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin)
	return int16(math.Round(digital))
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := fmt.Sprintf("%.2f", val)
	if len(s) > 8 {
		// Fall back to no decimal
		s = fmt.Sprintf("%.0f", val)
	}
	return fmt.Sprintf("%-8s", s)
}

func formatDuration(seconds float64) string {
	s := strconv.FormatFloat(seconds, 'f', -1, 64)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

func stringAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func floatAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func intAt(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}
