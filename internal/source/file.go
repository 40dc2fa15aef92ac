// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/inertial_stream/internal/imu"
)

// FileOptions configures a File source.
type FileOptions struct {
	Path     string
	Mode     Mode
	RowDelay time.Duration // Live only; zero replays as fast as the consumer drains
	Logger   *zap.Logger
}

// File replays a recorded CSV table: a header row, then one
// "<index>,ax,ay,az,gx,gy,gz,mx,my,mz" row per sample.
//
// A malformed row ends the run. Rows before it have already been delivered
// (Live) or form the batch (OneShot), and Err returns a *RowError.
type File struct {
	lifecycle
	file      *os.File
	rowDelay  time.Duration
	closeOnce sync.Once
}

// NewFile opens the recording so that a missing or unreadable file is
// reported before the source is handed to anyone.
func NewFile(opts FileOptions) (*File, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("file %s: open: %w", opts.Path, err)
	}
	src := &File{file: f, rowDelay: opts.RowDelay}
	src.init(opts.Path, opts.Mode, opts.Logger)
	return src, nil
}

// Run replays the file according to the source mode.
func (f *File) Run(ctx context.Context) error {
	runCtx, err := f.begin(ctx)
	if err != nil {
		return err
	}

	r := csv.NewReader(bufio.NewReader(f.file))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if f.mode == OneShot {
		err = f.replayBatch(runCtx, r)
	} else {
		err = f.replayLive(runCtx, r)
	}
	f.close()
	f.finish(err)
	return err
}

func (f *File) replayLive(ctx context.Context, r *csv.Reader) error {
	limit := rate.Inf
	if f.rowDelay > 0 {
		limit = rate.Every(f.rowDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	return f.eachRow(ctx, r, func(s imu.Sample) bool {
		if err := limiter.Wait(ctx); err != nil {
			return false
		}
		return f.emit(ctx, s)
	})
}

func (f *File) replayBatch(ctx context.Context, r *csv.Reader) error {
	var batch []imu.Sample
	err := f.eachRow(ctx, r, func(s imu.Sample) bool {
		batch = append(batch, s)
		return true
	})
	if ctx.Err() != nil || len(batch) == 0 {
		return err
	}
	f.log.Debug("file: delivering batch", zap.Int("samples", len(batch)))
	f.emit(ctx, batch...)
	return err
}

// eachRow skips the header and calls fn for every data row until the input
// is exhausted, fn returns false, or a row fails to parse.
func (f *File) eachRow(ctx context.Context, r *csv.Reader, fn func(imu.Sample) bool) error {
	header := true
	for ctx.Err() == nil {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return &RowError{Line: perr.Line, Err: perr.Err}
			}
			return fmt.Errorf("file %s: read: %w", f.name, err)
		}
		if header {
			header = false
			continue
		}
		s, err := parseRecord(rec, false)
		if err != nil {
			line, _ := r.FieldPos(0)
			return &RowError{Line: line, Err: err}
		}
		if !fn(s) {
			return nil
		}
	}
	return nil
}

func (f *File) close() {
	f.closeOnce.Do(func() {
		if err := f.file.Close(); err != nil {
			f.log.Warn("file: close failed", zap.Error(err))
		}
	})
}
