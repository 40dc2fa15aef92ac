// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package model coordinates one IMU data source at a time: it schedules the
// source's acquisition loop on a worker, accumulates the samples it emits
// into an ordered buffer and republishes lifecycle and data notifications to
// the presentation layer.
//
// Source events are consumed by one dispatch goroutine per session, which
// is the only writer of the buffer besides direct AddDataPoint calls. Both
// paths append under the same lock. Readers get snapshots and must expect
// the buffer to keep growing while a session is live.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_stream/internal/imu"
	"github.com/relabs-tech/inertial_stream/internal/source"
	"github.com/relabs-tech/inertial_stream/internal/worker"
)

// ErrNoSession is returned by WaitStopped when nothing was ever started for
// the current source.
var ErrNoSession = errors.New("model: no listening session")

// NotificationKind tags a Notification.
type NotificationKind int

const (
	SourceChanged NotificationKind = iota
	DataReceived
	ListeningStarted
	ListeningStopped
)

func (k NotificationKind) String() string {
	switch k {
	case SourceChanged:
		return "source_changed"
	case DataReceived:
		return "data_received"
	case ListeningStarted:
		return "listening_started"
	case ListeningStopped:
		return "listening_stopped"
	}
	return fmt.Sprintf("NotificationKind(%d)", int(k))
}

// Notification is delivered to every subscribed Handler.
type Notification struct {
	Kind    NotificationKind
	Source  string       // display name of the source involved, if any
	Session string       // listening session id, empty for SourceChanged and direct AddDataPoint
	Samples []imu.Sample // DataReceived only; do not modify
	Err     error        // ListeningStopped only: why the source ended early
}

// Handler receives notifications. Handlers for source events run on the
// session's dispatch goroutine, in event order, and must not block for long.
type Handler func(Notification)

type handlerEntry struct {
	id int
	fn Handler
}

// session is one StartListening..Stopped cycle of a source.
type session struct {
	id       string
	src      source.Source
	detached atomic.Bool // StopListening dropped started/data handling
	done     chan struct{}
}

// Model owns the current source, the listening flag and the sample buffer.
type Model struct {
	log  *zap.Logger
	pool *worker.Pool

	mu        sync.RWMutex // guards src, sess, listening, data
	src       source.Source
	sess      *session
	listening bool
	data      []imu.Sample

	hmu         sync.RWMutex
	handlers    []handlerEntry
	nextHandler int
}

// New creates a Model with no source. Acquisition loops run on pool.
func New(pool *worker.Pool, log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	return &Model{pool: pool, log: log}
}

// Subscribe registers h and returns a function that removes it.
func (m *Model) Subscribe(h Handler) (unsubscribe func()) {
	m.hmu.Lock()
	id := m.nextHandler
	m.nextHandler++
	m.handlers = append(m.handlers, handlerEntry{id: id, fn: h})
	m.hmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.hmu.Lock()
			defer m.hmu.Unlock()
			for i, e := range m.handlers {
				if e.id == id {
					m.handlers = append(m.handlers[:i:i], m.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Model) notify(n Notification) {
	m.hmu.RLock()
	hs := make([]Handler, len(m.handlers))
	for i, e := range m.handlers {
		hs[i] = e.fn
	}
	m.hmu.RUnlock()

	for _, h := range hs {
		h(n)
	}
}

// SetSource replaces the current source and starts a fresh buffer. The
// previous source is not stopped; callers stop it first.
func (m *Model) SetSource(src source.Source) {
	m.mu.Lock()
	if m.sess != nil && m.listening {
		m.log.Warn("model: replacing a source that is still listening",
			zap.String("source", m.sess.src.Name()), zap.String("session", m.sess.id))
	}
	m.src = src
	m.sess = nil
	m.listening = false
	m.data = nil
	m.mu.Unlock()

	name := ""
	if src != nil {
		name = src.Name()
	}
	m.log.Info("model: source changed", zap.String("source", name))
	m.notify(Notification{Kind: SourceChanged, Source: name})
}

// Source returns the current source, or nil.
func (m *Model) Source() source.Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.src
}

// StartListening schedules the current source on a worker and starts
// consuming its events. It reports false when there is no source, the
// source has already been started (it is single use), or no worker is free.
func (m *Model) StartListening() bool {
	m.mu.Lock()
	src := m.src
	switch {
	case src == nil:
		m.mu.Unlock()
		m.log.Debug("model: start refused, no source")
		return false
	case src.State() != source.Idle || m.sess != nil:
		m.mu.Unlock()
		m.log.Debug("model: start refused, source already used",
			zap.String("source", src.Name()), zap.Stringer("state", src.State()))
		return false
	}
	sess := &session{id: uuid.NewString(), src: src, done: make(chan struct{})}
	m.sess = sess
	m.mu.Unlock()

	log := m.log.With(zap.String("source", src.Name()), zap.String("session", sess.id))
	ok, err := m.pool.TryGo(func(ctx context.Context) {
		if err := src.Run(ctx); err != nil {
			log.Debug("model: source run returned", zap.Error(err))
		}
	})
	if err != nil || !ok {
		m.mu.Lock()
		if m.sess == sess {
			m.sess = nil
		}
		m.mu.Unlock()
		log.Warn("model: no worker available", zap.Error(err))
		return false
	}

	go m.dispatch(sess, log)
	log.Info("model: listening requested")
	return true
}

// StopListening asks the source to stop and stops accepting its data. The
// stopped event is still observed; use WaitStopped to block until then.
func (m *Model) StopListening() bool {
	m.mu.Lock()
	sess := m.sess
	if m.src == nil || !m.listening || sess == nil || sess.detached.Load() {
		m.mu.Unlock()
		return false
	}
	sess.detached.Store(true)
	m.mu.Unlock()

	m.log.Info("model: stopping source", zap.String("source", sess.src.Name()), zap.String("session", sess.id))
	sess.src.Stop()
	return true
}

// IsListening is true between an observed started event and the following
// stopped event.
func (m *Model) IsListening() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listening
}

// WaitStopped blocks until the current session's stopped event has been
// handled (and its ListeningStopped notification delivered) or ctx ends.
func (m *Model) WaitStopped(ctx context.Context) error {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess == nil {
		return ErrNoSession
	}
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddDataPoint appends one sample. Anything that is not exactly nine values
// is rejected without touching the buffer or notifying anyone.
func (m *Model) AddDataPoint(values []int) bool {
	s, err := imu.FromSlice(values)
	if err != nil {
		m.log.Debug("model: rejected data point", zap.Error(err))
		return false
	}
	return m.add(nil, []imu.Sample{s})
}

// add is the single mutation point of the buffer. A non-nil sess must still
// be current and attached for its samples to be kept.
func (m *Model) add(sess *session, samples []imu.Sample) bool {
	if len(samples) == 0 {
		return false
	}

	m.mu.Lock()
	if sess != nil && (m.sess != sess || sess.detached.Load()) {
		m.mu.Unlock()
		return false
	}
	m.data = append(m.data, samples...)
	m.mu.Unlock()

	n := Notification{Kind: DataReceived, Samples: samples}
	if sess != nil {
		n.Source, n.Session = sess.src.Name(), sess.id
	}
	m.notify(n)
	return true
}

// Data returns a snapshot of the buffer.
func (m *Model) Data() []imu.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]imu.Sample, len(m.data))
	copy(out, m.data)
	return out
}

// Len returns the number of buffered samples.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// dispatch drains the session's source events until the channel closes.
func (m *Model) dispatch(sess *session, log *zap.Logger) {
	defer close(sess.done)

	for ev := range sess.src.Events() {
		switch ev.Kind {
		case source.EventStarted:
			m.mu.Lock()
			current := m.sess == sess && !sess.detached.Load()
			if current {
				m.listening = true
			}
			m.mu.Unlock()
			if current {
				log.Info("model: listening started")
				m.notify(Notification{Kind: ListeningStarted, Source: sess.src.Name(), Session: sess.id})
			}

		case source.EventData:
			m.add(sess, ev.Samples)

		case source.EventStopped:
			m.mu.Lock()
			current := m.sess == sess
			if current {
				m.listening = false
			}
			n := len(m.data)
			m.mu.Unlock()
			if current {
				err := sess.src.Err()
				log.Info("model: listening stopped", zap.Int("buffered", n), zap.Error(err))
				m.notify(Notification{Kind: ListeningStopped, Source: sess.src.Name(), Session: sess.id, Err: err})
			}
		}
	}
}
