// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// DefaultDummyInterval is the pacing of the synthetic source.
const DefaultDummyInterval = 100 * time.Millisecond

// maxStep bounds the per-axis random walk step.
const maxStep = 10

// DummyOptions configures a Dummy source.
type DummyOptions struct {
	Interval time.Duration // zero means DefaultDummyInterval
	Seed     uint64        // zero picks a random seed
	Logger   *zap.Logger
}

// Dummy produces a random walk starting at all zeros. Live only.
type Dummy struct {
	lifecycle
	interval time.Duration
	rng      *rand.Rand
}

// NewDummy creates a synthetic source for demos and tests.
func NewDummy(opts DummyOptions) *Dummy {
	if opts.Interval <= 0 {
		opts.Interval = DefaultDummyInterval
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	d := &Dummy{
		interval: opts.Interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	d.init("dummy", Live, opts.Logger)
	return d
}

// Run emits one sample per interval until stopped.
func (d *Dummy) Run(ctx context.Context) error {
	runCtx, err := d.begin(ctx)
	if err != nil {
		return err
	}
	defer d.finish(nil)

	limiter := rate.NewLimiter(rate.Every(d.interval), 1)
	var prev imu.Sample
	for n := 0; ; n++ {
		if err := limiter.Wait(runCtx); err != nil {
			return nil
		}
		next := prev
		if n > 0 {
			for i := range next {
				next[i] += d.rng.IntN(2*maxStep+1) - maxStep
			}
		}
		if !d.emit(runCtx, next) {
			return nil
		}
		prev = next
	}
}
