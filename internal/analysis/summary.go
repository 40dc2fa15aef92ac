// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package analysis computes per-axis statistics over a buffer snapshot.
package analysis

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// AxisNames labels the nine sample columns.
var AxisNames = [imu.SampleLen]string{"ax", "ay", "az", "gx", "gy", "gz", "mx", "my", "mz"}

// AxisStats summarizes one column.
type AxisStats struct {
	Mean   float64
	StdDev float64 // sample standard deviation; NaN with fewer than two samples
	Min    float64
	Max    float64
}

// Summary is the per-axis digest of a run.
type Summary struct {
	Count int
	Axes  [imu.SampleLen]AxisStats
}

// Summarize computes statistics for every axis. An empty input yields a
// zero Count and NaN statistics.
func Summarize(samples []imu.Sample) Summary {
	sum := Summary{Count: len(samples)}
	col := make([]float64, len(samples))
	for axis := 0; axis < imu.SampleLen; axis++ {
		if len(samples) == 0 {
			sum.Axes[axis] = AxisStats{Mean: math.NaN(), StdDev: math.NaN(), Min: math.NaN(), Max: math.NaN()}
			continue
		}
		for i, s := range samples {
			col[i] = float64(s[axis])
		}
		st := AxisStats{
			Mean:   stat.Mean(col, nil),
			StdDev: math.NaN(),
			Min:    floats.Min(col),
			Max:    floats.Max(col),
		}
		if len(col) > 1 {
			st.StdDev = stat.StdDev(col, nil)
		}
		sum.Axes[axis] = st
	}
	return sum
}

// Write prints the summary as an aligned table.
func (s Summary) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "samples: %d\n", s.Count); err != nil {
		return err
	}
	if s.Count == 0 {
		return nil
	}
	for i, a := range s.Axes {
		if _, err := fmt.Fprintf(w, "  %-2s mean=%9.2f sd=%9.2f min=%7.0f max=%7.0f\n",
			AxisNames[i], a.Mean, a.StdDev, a.Min, a.Max); err != nil {
			return err
		}
	}
	return nil
}
