// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

// DefaultReadTimeout bounds how long a serial read may block before the
// loop gets a chance to look at the stop flag.
const DefaultReadTimeout = 500 * time.Millisecond

// SerialOptions configures a Serial source.
type SerialOptions struct {
	Port        string // e.g. /dev/ttyUSB0
	BaudRate    uint
	ReadTimeout time.Duration
	Logger      *zap.Logger
}

// Serial reads newline-terminated lines of ten comma separated integers.
// The first integer is a sequence number and is dropped. Lines of any other
// shape are line noise and are skipped without comment. Always Live.
type Serial struct {
	lifecycle
	port      io.ReadCloser
	closeOnce sync.Once

	// pollOnEOF is set for real ports: a read timeout with no data surfaces
	// as io.EOF and must not end the run.
	pollOnEOF bool
}

// NewSerial opens the port so that a busy or missing device is reported to
// the caller before the source is used.
func NewSerial(opts SerialOptions) (*Serial, error) {
	name := fmt.Sprintf("%s@%d", opts.Port, opts.BaudRate)
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	// VTIME is expressed in tenths of a second and caps at 25.5s.
	timeoutMS := uint(opts.ReadTimeout/(100*time.Millisecond)) * 100
	if timeoutMS < 100 {
		timeoutMS = 100
	}
	if timeoutMS > 25500 {
		timeoutMS = 25500
	}

	serialOpts := serial.OpenOptions{
		PortName:              opts.Port,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: timeoutMS,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("serial %s: open: %w", name, err)
	}

	s := newSerial(name, port, opts.Logger)
	s.pollOnEOF = true
	s.log.Info("serial: port opened", zap.Uint("read_timeout_ms", timeoutMS))
	return s, nil
}

// NewSerialFromStream runs the serial line protocol over an arbitrary
// stream, such as a captured log or a pipe. End of stream ends the run.
func NewSerialFromStream(name string, rc io.ReadCloser, log *zap.Logger) *Serial {
	return newSerial(name, rc, log)
}

func newSerial(name string, rc io.ReadCloser, log *zap.Logger) *Serial {
	s := &Serial{port: rc}
	s.init(name, Live, log)
	return s
}

// Run reads lines until stopped or until the stream ends.
func (s *Serial) Run(ctx context.Context) error {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	// Closing the port unblocks a read stuck in the driver.
	stopWatch := context.AfterFunc(runCtx, s.close)
	defer stopWatch()

	err = s.readLines(runCtx)
	s.close()
	s.finish(err)
	return err
}

func (s *Serial) readLines(ctx context.Context) error {
	reader := bufio.NewReader(s.port)
	var partial []byte
	for {
		if ctx.Err() != nil {
			return nil
		}
		chunk, err := reader.ReadBytes('\n')
		partial = append(partial, chunk...)
		if err == nil {
			if sample, ok := parseLine(string(partial)); ok {
				if !s.emit(ctx, sample) {
					return nil
				}
			}
			partial = partial[:0]
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			if s.pollOnEOF {
				continue
			}
			if sample, ok := parseLine(string(partial)); ok {
				s.emit(ctx, sample)
			}
			return nil
		}
		return fmt.Errorf("serial %s: read: %w", s.name, err)
	}
}

func (s *Serial) close() {
	s.closeOnce.Do(func() {
		if err := s.port.Close(); err != nil {
			s.log.Debug("serial: close", zap.Error(err))
		}
	})
}
