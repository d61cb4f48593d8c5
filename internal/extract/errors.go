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
	"fmt"
)

// ErrMissingHeader is returned when there is no header to extract from.
var ErrMissingHeader = errors.New("recording has no header")

// DegenerateDurationError is returned for a channel with samples whose sample
// rate cannot be derived, usually because the data record duration is zero.
type DegenerateDurationError struct {
	Channel          int // 1-based
	Duration         float64
	SamplesPerRecord int
}

func (e *DegenerateDurationError) Error() string {
	return fmt.Sprintf("channel %d: cannot derive a sample rate from %d samples per %g s data record",
		e.Channel, e.SamplesPerRecord, e.Duration)
}
