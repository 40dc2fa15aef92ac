// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package source provides the IMU sample producers: a synthetic random walk,
// a replayed recording and a live serial link. Every producer runs one
// acquisition loop per instance and reports its lifecycle and data through
// its own event channel.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// Mode selects how a source delivers samples.
type Mode int

const (
	Live    Mode = iota // one sample per event, paced
	OneShot             // every available sample in a single event
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case OneShot:
		return "oneshot"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a config value ("live", "oneshot") into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "":
		return Live, nil
	case "oneshot", "one_shot", "one-shot":
		return OneShot, nil
	}
	return Live, fmt.Errorf("unknown source mode %q (want live or oneshot)", s)
}

// State is the lifecycle position of a source. Stopped is terminal.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventKind tags an Event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventData
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventData:
		return "data"
	case EventStopped:
		return "stopped"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is emitted by a source on its own channel. Data events carry one
// sample in Live mode and the whole batch in OneShot mode.
type Event struct {
	Kind    EventKind
	Samples []imu.Sample
}

// ErrAlreadyStarted is returned by Run on a source that is not Idle.
var ErrAlreadyStarted = errors.New("source already started")

// Source is the capability every producer implements.
type Source interface {
	// Name is a display name such as a file path or "port@baud".
	Name() string
	Mode() Mode
	State() State
	IsRunning() bool

	// Run executes the acquisition loop on the calling goroutine. It emits
	// Started, then Data events, then Stopped, and closes the event channel.
	Run(ctx context.Context) error

	// Stop requests termination and reports false if the source was not
	// running. The loop exits at its next safe point.
	Stop() bool

	// Events must be drained by exactly one consumer.
	Events() <-chan Event

	// Err reports why a run ended early; nil after a clean stop or exhaustion.
	Err() error
}

const eventBuffer = 64

// lifecycle implements the parts of Source shared by every variant.
type lifecycle struct {
	name string
	mode Mode
	log  *zap.Logger

	mu     sync.Mutex // guards state, cancel, err
	state  State
	cancel context.CancelFunc
	err    error

	events chan Event
}

func (l *lifecycle) init(name string, mode Mode, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	l.name = name
	l.mode = mode
	l.log = log.With(zap.String("source", name))
	l.events = make(chan Event, eventBuffer)
}

func (l *lifecycle) Name() string { return l.name }

func (l *lifecycle) Mode() Mode { return l.mode }

func (l *lifecycle) Events() <-chan Event { return l.events }

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) IsRunning() bool { return l.State() == Running }

func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stop flags the loop for exit. The acquisition loop is responsible for
// emitting Stopped once it notices.
func (l *lifecycle) Stop() bool {
	l.mu.Lock()
	if l.state != Running {
		l.mu.Unlock()
		return false
	}
	cancel := l.cancel
	l.mu.Unlock()

	l.log.Debug("source: stop requested")
	cancel()
	return true
}

// begin moves Idle to Running and emits Started. The returned context is
// canceled by Stop.
func (l *lifecycle) begin(ctx context.Context) (context.Context, error) {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", l.name, ErrAlreadyStarted)
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.state = Running
	l.mu.Unlock()

	l.log.Info("source: started", zap.Stringer("mode", l.mode))
	l.events <- Event{Kind: EventStarted}
	return runCtx, nil
}

// emit delivers a data event unless the run has been canceled.
func (l *lifecycle) emit(ctx context.Context, samples ...imu.Sample) bool {
	select {
	case l.events <- Event{Kind: EventData, Samples: samples}:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish moves Running to Stopped, records err, emits Stopped and closes
// the event channel. Must be called exactly once per successful begin.
func (l *lifecycle) finish(err error) {
	l.mu.Lock()
	l.state = Stopped
	l.err = err
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("source: stopped early", zap.Error(err))
	} else {
		l.log.Info("source: stopped")
	}
	l.events <- Event{Kind: EventStopped}
	close(l.events)
}
