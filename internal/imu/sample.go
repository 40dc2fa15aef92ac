// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SampleLen is the number of values in one 9-axis reading.
const SampleLen = 9

// ErrSampleLength is returned when a reading does not carry exactly SampleLen values.
var ErrSampleLength = errors.New("imu: sample must have exactly 9 values")

// Sample represents a single raw accel+gyro+mag reading.
//
// Layout: ax, ay, az, gx, gy, gz, mx, my, mz.
type Sample [SampleLen]int

// FromSlice copies values into a Sample, rejecting any other length.
func FromSlice(values []int) (Sample, error) {
	var s Sample
	if len(values) != SampleLen {
		return s, fmt.Errorf("%w, got %d", ErrSampleLength, len(values))
	}
	copy(s[:], values)
	return s, nil
}

// Accel returns the accelerometer axes.
func (s Sample) Accel() [3]int { return [3]int{s[0], s[1], s[2]} }

// Gyro returns the gyroscope axes.
func (s Sample) Gyro() [3]int { return [3]int{s[3], s[4], s[5]} }

// Mag returns the magnetometer axes.
func (s Sample) Mag() [3]int { return [3]int{s[6], s[7], s[8]} }

// Values returns the sample as a freshly allocated slice.
func (s Sample) Values() []int {
	out := make([]int, SampleLen)
	copy(out, s[:])
	return out
}

func (s Sample) String() string {
	parts := make([]string, SampleLen)
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
