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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DecodeError is returned when a stream cannot be decoded as an EDF/EDF+ file.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "edf: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// Reader reads EDF/EDF+ files.
type Reader struct {
	r           io.ReadSeeker
	ra          io.ReaderAt // Set when r also supports positional reads
	hdr         *Header
	complete    bool // Whether the signal header section was read in full
	dataRecords int  // Number of complete data records present in the stream
}

// Open opens an EDF/EDF+ file for reading.
//
// A stream that ends inside the signal header section is not an error: the
// header is returned with the signal fields read so far and the reader
// exposes no sample data.
func Open(r io.ReadSeeker) (*Reader, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, decodeErrorf("error seeking to end of file: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, decodeErrorf("error seeking to start of file: %w", err)
	}

	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, decodeErrorf("error reading header: %w", err)
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))
	hdr.StartDate = strings.TrimSpace(string(b[168:176]))
	hdr.StartTime = strings.TrimSpace(string(b[176:184]))

	headerBytes, err := strconv.Atoi(strings.TrimSpace(string(b[184:192])))
	if err != nil {
		return nil, decodeErrorf("error parsing header bytes: %w", err)
	}
	hdr.HeaderBytes = headerBytes

	numDataRecords, err := strconv.Atoi(strings.TrimSpace(string(b[236:244])))
	if err != nil {
		return nil, decodeErrorf("error parsing number of data records: %w", err)
	}
	hdr.DataRecords = numDataRecords

	hdr.DataRecordDuration, err = strconv.ParseFloat(strings.TrimSpace(string(b[244:252])), 64)
	if err != nil {
		return nil, decodeErrorf("error parsing data record duration: %w", err)
	}
	if math.IsNaN(hdr.DataRecordDuration) || math.IsInf(hdr.DataRecordDuration, 0) {
		return nil, decodeErrorf("invalid data record duration: %v", hdr.DataRecordDuration)
	}

	signalCount, err := strconv.Atoi(strings.TrimSpace(string(b[252:256])))
	if err != nil {
		return nil, decodeErrorf("error parsing signal count: %w", err)
	}
	if signalCount < 0 {
		return nil, decodeErrorf("invalid signal count: %d", signalCount)
	}
	hdr.SignalCount = signalCount

	er := &Reader{r: r, hdr: hdr}
	if ra, ok := r.(io.ReaderAt); ok {
		er.ra = ra
	}

	er.complete, err = er.readSignalHeaders(reader)
	if err != nil {
		return nil, err
	}

	if er.complete {
		er.dataRecords = er.availableRecords(size)
		// Still being written when it was copied, trust the file length.
		if hdr.DataRecords < 0 {
			hdr.DataRecords = er.dataRecords
		}
	}

	return er, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// Complete reports whether the signal header section was read in full. Only
// complete files expose sample data.
func (er *Reader) Complete() bool {
	return er.complete
}

// DataRecords returns the number of complete data records that can be read,
// which is never more than the header declares.
func (er *Reader) DataRecords() int {
	return er.dataRecords
}

// ConcurrentSafe reports whether signal readers created from this reader may
// be used from different goroutines at the same time.
func (er *Reader) ConcurrentSafe() bool {
	return er.ra != nil
}

// readSignalHeaders reads the per-signal header fields, one group per field.
func (er *Reader) readSignalHeaders(r io.Reader) (bool, error) {
	hdr := er.hdr

	groups := []struct {
		width  int
		assign func(fields []string)
	}{
		{16, func(fields []string) { hdr.Labels = fields }},
		{80, func(fields []string) { hdr.TransducerTypes = fields }},
		{8, func(fields []string) { hdr.PhysicalDimensions = fields }},
		{8, func(fields []string) { hdr.PhysicalMins = mapFields(fields, parseFloat) }},
		{8, func(fields []string) { hdr.PhysicalMaxs = mapFields(fields, parseFloat) }},
		{8, func(fields []string) { hdr.DigitalMins = mapFields(fields, parseInt) }},
		{8, func(fields []string) { hdr.DigitalMaxs = mapFields(fields, parseInt) }},
		{80, func(fields []string) { hdr.Prefilterings = fields }},
		{8, func(fields []string) { hdr.SamplesPerRecord = mapFields(fields, parseInt) }},
		{32, func(fields []string) { hdr.Reserved = fields }},
	}

	for _, group := range groups {
		fields, err := readFields(r, hdr.SignalCount, group.width)
		if len(fields) > 0 {
			group.assign(fields)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return false, nil
			}
			return false, decodeErrorf("error reading signal headers: %w", err)
		}
	}

	return true, nil
}

// availableRecords returns how many whole data records the stream holds.
func (er *Reader) availableRecords(size int64) int {
	recordSize := 0
	for _, samples := range er.hdr.SamplesPerRecord {
		recordSize += max(samples, 0) * 2
	}
	if recordSize == 0 {
		return 0
	}

	dataBytes := size - int64(er.hdr.HeaderBytes)
	if dataBytes <= 0 {
		return 0
	}

	available := int(dataBytes / int64(recordSize))
	if er.hdr.DataRecords >= 0 && er.hdr.DataRecords < available {
		return er.hdr.DataRecords
	}
	return available
}

// ReadAll reads the physical values of every signal. It returns a nil Signal
// when the file carries no readable sample data.
func (er *Reader) ReadAll() (*Signal, error) {
	if !er.complete {
		return nil, nil
	}

	sig := &Signal{Channels: make([][]float64, er.hdr.SignalCount)}
	for i := range sig.Channels {
		sr, err := er.Signal(i)
		if err != nil {
			return nil, err
		}

		data := make([]float64, sr.Len())
		n, err := sr.Read(data)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading signal %d: %w", i, err)
		}
		sig.Channels[i] = data[:n]
	}

	return sig, nil
}

// Decode reads the header and every signal of an EDF/EDF+ file.
func Decode(r io.ReadSeeker) (*Header, *Signal, error) {
	er, err := Open(r)
	if err != nil {
		return nil, nil, err
	}

	sig, err := er.ReadAll()
	if err != nil {
		return nil, nil, &DecodeError{Err: err}
	}

	return er.hdr, sig, nil
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	ra               io.ReaderAt
	headerBytes      int
	dataRecords      int       // Number of records available to read
	currentRecord    int       // Current record being processed
	currentSample    int       // Current sample in the record
	recordSize       int       // Total size of one data record
	signalOffset     int       // Byte offset of the signal in a record
	samplesPerRecord int       // Number of samples per record for the signal
	digitalMin       int       // Calibration of the signal
	digitalMax       int       //
	physicalMin      float64   //
	physicalMax      float64   //
	buf              []byte    // Raw samples of the current record, allocated on first read
	record           []float64 // Physical values of the current record
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if !er.complete {
		return nil, fmt.Errorf("signal headers are incomplete")
	}
	if signalIndex < 0 || signalIndex >= er.hdr.SignalCount {
		return nil, fmt.Errorf("signal index out of range")
	}

	recordSize := 0
	signalOffset := 0
	for i, samples := range er.hdr.SamplesPerRecord {
		if i < signalIndex {
			signalOffset += max(samples, 0) * 2
		}
		recordSize += max(samples, 0) * 2
	}

	samplesPerRecord := max(er.hdr.SamplesPerRecord[signalIndex], 0)

	return &SignalReader{
		r:                er.r,
		ra:               er.ra,
		headerBytes:      er.hdr.HeaderBytes,
		dataRecords:      er.dataRecords,
		recordSize:       recordSize,
		signalOffset:     signalOffset,
		samplesPerRecord: samplesPerRecord,
		digitalMin:       er.hdr.DigitalMins[signalIndex],
		digitalMax:       er.hdr.DigitalMaxs[signalIndex],
		physicalMin:      er.hdr.PhysicalMins[signalIndex],
		physicalMax:      er.hdr.PhysicalMaxs[signalIndex],
	}, nil
}

// Len returns the total number of samples the signal holds.
func (sr *SignalReader) Len() int {
	return sr.dataRecords * sr.samplesPerRecord
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.dataRecords || sr.samplesPerRecord == 0 {
			return n, io.EOF // End of data records
		}

		if sr.currentSample == 0 {
			if err := sr.readRecord(); err != nil {
				return n, err
			}
		}

		copied := copy(data[n:], sr.record[sr.currentSample:])
		n += copied

		// Move to the next record once this one is drained
		sr.currentSample += copied
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// readRecord loads and calibrates this signal's samples from the current record.
func (sr *SignalReader) readRecord() error {
	// Only records present in the stream are ever read, so the buffers never
	// outgrow the file.
	if sr.buf == nil {
		sr.buf = make([]byte, sr.samplesPerRecord*2)
		sr.record = make([]float64, sr.samplesPerRecord)
	}

	pos := int64(sr.headerBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset)

	if sr.ra != nil {
		n, err := sr.ra.ReadAt(sr.buf, pos)
		if n < len(sr.buf) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("error reading sample data: %w", err)
		}
	} else {
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return fmt.Errorf("error seeking to position: %w", err)
		}
		if _, err := io.ReadFull(sr.r, sr.buf); err != nil {
			return fmt.Errorf("error reading sample data: %w", err)
		}
	}

	for i := range sr.record {
		digitalValue := int16(binary.LittleEndian.Uint16(sr.buf[i*2:]))
		sr.record[i] = convertDigitalToPhysical(digitalValue, sr.digitalMin, sr.digitalMax, sr.physicalMin, sr.physicalMax)
	}

	return nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

// readFields reads count fixed-width ASCII fields, returning those read
// before the stream ended alongside the error.
func readFields(r io.Reader, count, width int) ([]string, error) {
	fields := make([]string, 0, count)
	b := make([]byte, width)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, b); err != nil {
			return fields, err
		}
		fields = append(fields, strings.TrimSpace(string(b)))
	}
	return fields, nil
}

func mapFields[T any](fields []string, parse func(string) T) []T {
	values := make([]T, len(fields))
	for i, field := range fields {
		values[i] = parse(field)
	}
	return values
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}
