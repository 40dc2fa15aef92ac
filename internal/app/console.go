// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_stream/internal/analysis"
	"github.com/relabs-tech/inertial_stream/internal/config"
	"github.com/relabs-tech/inertial_stream/internal/imu"
	"github.com/relabs-tech/inertial_stream/internal/model"
	"github.com/relabs-tech/inertial_stream/internal/orientation"
	"github.com/relabs-tech/inertial_stream/internal/source"
	"github.com/relabs-tech/inertial_stream/internal/worker"
)

// shutdownTimeout bounds how long we wait for a source to report stopped
// after asking it to stop.
const shutdownTimeout = 5 * time.Second

// ConsoleOptions tunes RunConsole.
type ConsoleOptions struct {
	Out      io.Writer     // defaults to os.Stdout
	Duration time.Duration // zero runs until the source stops or ctx ends
	Quiet    bool          // only print the final summary
}

// RunConsole builds the configured source, listens to it through a Model
// and prints every sample with its tilt. When the run ends it prints
// per-axis statistics of everything buffered.
func RunConsole(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ConsoleOptions) error {
	if log == nil {
		log = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	src, err := source.FromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}

	pool := worker.New(cfg.Workers, log)
	defer pool.Close()

	m := model.New(pool, log)
	var outMu sync.Mutex
	unsubscribe := m.Subscribe(func(n model.Notification) {
		outMu.Lock()
		defer outMu.Unlock()
		printNotification(out, n, opts.Quiet)
	})
	defer unsubscribe()

	m.SetSource(src)
	if !m.StartListening() {
		return errors.New("console: could not start listening")
	}
	log.Info("console: listening", zap.String("source", src.Name()), zap.Stringer("mode", src.Mode()))

	var timeout <-chan time.Time
	if opts.Duration > 0 {
		timer := time.NewTimer(opts.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	stopped := make(chan error, 1)
	go func() { stopped <- m.WaitStopped(context.Background()) }()

	select {
	case <-stopped:
		log.Info("console: source finished")
	case <-ctx.Done():
		log.Info("console: shutting down")
		if err := stopAndWait(m, stopped); err != nil {
			return err
		}
	case <-timeout:
		log.Info("console: duration elapsed", zap.Duration("duration", opts.Duration))
		if err := stopAndWait(m, stopped); err != nil {
			return err
		}
	}

	outMu.Lock()
	defer outMu.Unlock()
	return analysis.Summarize(m.Data()).Write(out)
}

// stopAndWait keeps asking the model to stop until the request sticks,
// since a session whose started event is still in flight refuses it.
func stopAndWait(m *model.Model, stopped <-chan error) error {
	deadline := time.NewTimer(shutdownTimeout)
	defer deadline.Stop()
	retry := time.NewTicker(10 * time.Millisecond)
	defer retry.Stop()

	requested := false
	for {
		if !requested {
			requested = m.StopListening()
		}
		select {
		case <-stopped:
			return nil
		case <-deadline.C:
			return fmt.Errorf("console: source did not stop within %s", shutdownTimeout)
		case <-retry.C:
		}
	}
}

func printNotification(w io.Writer, n model.Notification, quiet bool) {
	switch n.Kind {
	case model.ListeningStarted:
		fmt.Fprintf(w, "[RUN ] %s started (session %s)\n", n.Source, n.Session)
	case model.ListeningStopped:
		if n.Err != nil {
			fmt.Fprintf(w, "[RUN ] %s stopped: %v\n", n.Source, n.Err)
		} else {
			fmt.Fprintf(w, "[RUN ] %s stopped\n", n.Source)
		}
	case model.DataReceived:
		if quiet {
			return
		}
		for _, s := range n.Samples {
			printSample(w, s)
		}
	}
}

func printSample(w io.Writer, s imu.Sample) {
	p := orientation.FromSample(s)
	fmt.Fprintf(w,
		"[IMU ] ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  mx=%6d my=%6d mz=%6d  ROLL=%7.2f PITCH=%7.2f\n",
		s[0], s[1], s[2], s[3], s[4], s[5], s[6], s[7], s[8], p.Roll, p.Pitch,
	)
}
