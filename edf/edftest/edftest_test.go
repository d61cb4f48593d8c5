// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edftest_test

import (
	"strings"
	"testing"

	"github.com/OpenPSG/edfviewer/edf/edftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	hdr := edftest.UnitHeader(1, 4, 2)

	b, err := edftest.Encode(hdr, [][]float64{{1, 2, 3, 4, 5, 6, 7, 8}, {-1, -2, -3, -4}})
	require.NoError(t, err)

	// Header plus two records of six 16-bit samples.
	require.Len(t, b, 256*3+2*6*2)

	assert.Equal(t, "0       ", string(b[0:8]))
	assert.Equal(t, "01.01.20", string(b[168:176]))
	assert.Equal(t, "10.00.00", string(b[176:184]))
	assert.Equal(t, "768", strings.TrimSpace(string(b[184:192])))
	assert.Equal(t, "2", strings.TrimSpace(string(b[236:244])))
	assert.Equal(t, "1", strings.TrimSpace(string(b[244:252])))
	assert.Equal(t, "2", strings.TrimSpace(string(b[252:256])))
	assert.Equal(t, "EEG 1", strings.TrimSpace(string(b[256:272])))

	// First sample of the first record, little endian.
	assert.Equal(t, []byte{1, 0}, b[768:770])
}

func TestEncodeUnknownRecordCount(t *testing.T) {
	hdr := edftest.UnitHeader(1, 2)
	hdr.DataRecords = -1

	b, err := edftest.Encode(hdr, [][]float64{{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "-1", strings.TrimSpace(string(b[236:244])))
}

func TestEncodeRejectsPartialRecords(t *testing.T) {
	hdr := edftest.UnitHeader(1, 4)

	_, err := edftest.Encode(hdr, [][]float64{{1, 2, 3}})
	require.Error(t, err)

	_, err = edftest.Encode(hdr, nil)
	require.Error(t, err)
}

func TestEncodeRejectsOversizedRecords(t *testing.T) {
	hdr := edftest.UnitHeader(1, 40000)

	_, err := edftest.Encode(hdr, [][]float64{make([]float64, 40000)})
	require.Error(t, err)
}
