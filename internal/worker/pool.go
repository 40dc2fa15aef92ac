// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package worker runs acquisition loops off the caller's goroutine on a
// small bounded pool.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by TryGo after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is a unit of work. The context is canceled when the pool closes.
type Task func(ctx context.Context)

// Pool is a bounded set of worker slots.
type Pool struct {
	log    *zap.Logger
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a pool with the given number of worker slots.
func New(size int, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{log: log, ctx: ctx, cancel: cancel}
	p.group.SetLimit(size)
	return p
}

// TryGo runs task on a free slot. It reports false when every slot is
// busy, and ErrClosed once the pool is shut down.
func (p *Pool) TryGo(task Task) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrClosed
	}
	return p.group.TryGo(func() error {
		task(p.ctx)
		return nil
	}), nil
}

// Close cancels every running task's context and waits for them to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.log.Debug("worker: closing pool")
	p.cancel()
	_ = p.group.Wait()
}
