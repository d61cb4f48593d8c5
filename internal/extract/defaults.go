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
	"strconv"
	"strings"

	"github.com/OpenPSG/edfviewer/edf"
)

// ChannelDefaults holds the values substituted for per-signal header fields
// that a file does not provide.
type ChannelDefaults struct {
	LabelPrefix       string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefiltering      string
	SamplesPerRecord  int
}

// Defaults is the substitution table applied to every channel.
var Defaults = ChannelDefaults{
	LabelPrefix:       "Channel ",
	TransducerType:    "N/A",
	PhysicalDimension: "μV",
	PhysicalMin:       -3277.0,
	PhysicalMax:       3277.0,
	DigitalMin:        -32767,
	DigitalMax:        32767,
	Prefiltering:      "N/A",
	SamplesPerRecord:  256,
}

// DefaultSampleRate is reported for channels without sample data.
const DefaultSampleRate = 256.0

// DefaultLabel returns the label used for the channel at index i (0-based).
func DefaultLabel(i int) string {
	return Defaults.LabelPrefix + strconv.Itoa(i+1)
}

// valueAt returns values[i], or def when the slice does not reach i.
func valueAt[T any](values []T, i int, def T) (T, bool) {
	if i >= 0 && i < len(values) {
		return values[i], true
	}
	return def, false
}

// describeChannel fills the static metadata of channel i and names the
// fields that fell back to a default.
func describeChannel(hdr *edf.Header, i int) (ChannelPayload, []string) {
	var defaulted []string
	track := func(field string, ok bool) {
		if !ok {
			defaulted = append(defaulted, field)
		}
	}

	channel := ChannelPayload{Index: i + 1}

	var ok bool
	channel.Label, ok = valueAt(hdr.Labels, i, DefaultLabel(i))
	track("label", ok)
	channel.TransducerType, ok = valueAt(hdr.TransducerTypes, i, Defaults.TransducerType)
	track("transducerType", ok)
	channel.PhysicalDimension, ok = valueAt(hdr.PhysicalDimensions, i, Defaults.PhysicalDimension)
	track("physicalDimension", ok)
	channel.PhysicalMinimum, ok = valueAt(hdr.PhysicalMins, i, Defaults.PhysicalMin)
	track("physicalMinimum", ok)
	channel.PhysicalMaximum, ok = valueAt(hdr.PhysicalMaxs, i, Defaults.PhysicalMax)
	track("physicalMaximum", ok)
	channel.DigitalMinimum, ok = valueAt(hdr.DigitalMins, i, Defaults.DigitalMin)
	track("digitalMinimum", ok)
	channel.DigitalMaximum, ok = valueAt(hdr.DigitalMaxs, i, Defaults.DigitalMax)
	track("digitalMaximum", ok)
	channel.Prefiltering, ok = valueAt(hdr.Prefilterings, i, Defaults.Prefiltering)
	track("prefiltering", ok)
	channel.SamplesPerRecord, ok = valueAt(hdr.SamplesPerRecord, i, Defaults.SamplesPerRecord)
	track("samplesPerRecord", ok)

	channel.Label = strings.TrimSpace(channel.Label)
	channel.TransducerType = strings.TrimSpace(channel.TransducerType)
	channel.PhysicalDimension = strings.TrimSpace(channel.PhysicalDimension)
	channel.Prefiltering = strings.TrimSpace(channel.Prefiltering)

	return channel, defaulted
}
