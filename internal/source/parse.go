// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// recordFields is the number of columns in a recorded or streamed row:
// a leading index/timestamp followed by the nine sample values.
const recordFields = imu.SampleLen + 1

// RowError describes a malformed row in a recording.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// parseRecord turns a split row into a Sample, dropping the leading index
// column. With strictIndex the index must be an integer too.
func parseRecord(fields []string, strictIndex bool) (imu.Sample, error) {
	var s imu.Sample
	if len(fields) != recordFields {
		return s, fmt.Errorf("want %d fields, got %d", recordFields, len(fields))
	}
	if strictIndex {
		if _, err := strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
			return s, fmt.Errorf("index %q: %w", fields[0], err)
		}
	}
	for i, f := range fields[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return s, fmt.Errorf("field %d %q: %w", i+1, f, err)
		}
		s[i] = v
	}
	return s, nil
}

// parseLine parses one serial line of ten comma separated integers.
func parseLine(line string) (imu.Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return imu.Sample{}, false
	}
	s, err := parseRecord(strings.Split(line, ","), true)
	return s, err == nil
}
