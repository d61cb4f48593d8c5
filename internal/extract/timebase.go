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
	"strconv"
	"strings"
)

var errMissingStart = errors.New("missing start date or time")

// TimestampParseError reports a recording start that could not be turned
// into seconds since midnight.
type TimestampParseError struct {
	Date string
	Time string
	Err  error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("error parsing recording start %q %q: %v", e.Date, e.Time, e.Err)
}

func (e *TimestampParseError) Unwrap() error {
	return e.Err
}

// DeriveStartSeconds returns the time of day of a recording start as seconds
// since midnight. The date (dd.mm.yy) must be present but does not move the
// result; the time is hh.mm.ss. Any failure yields 0 together with a
// *TimestampParseError, so callers can fall back to a midnight baseline.
func DeriveStartSeconds(date, clock string) (int64, error) {
	if date == "" || clock == "" {
		return 0, &TimestampParseError{Date: date, Time: clock, Err: errMissingStart}
	}

	parts := strings.Split(clock, ".")
	if len(parts) < 3 {
		return 0, &TimestampParseError{Date: date, Time: clock, Err: fmt.Errorf("expected hh.mm.ss, got %d fields", len(parts))}
	}

	var fields [3]int64
	for i := range fields {
		v, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil {
			return 0, &TimestampParseError{Date: date, Time: clock, Err: err}
		}
		fields[i] = v
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}
