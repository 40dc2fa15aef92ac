// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_stream/internal/config"
)

// FromConfig builds the source selected by cfg.SourceKind. Construction
// errors (missing file, busy port) are returned as-is so the caller can pick
// another source.
func FromConfig(cfg *config.Config, log *zap.Logger) (Source, error) {
	mode, err := ParseMode(cfg.SourceMode)
	if err != nil {
		return nil, err
	}

	switch cfg.SourceKind {
	case config.KindDummy:
		return NewDummy(DummyOptions{
			Interval: cfg.DummyInterval,
			Seed:     cfg.DummySeed,
			Logger:   log,
		}), nil
	case config.KindFile:
		return NewFile(FileOptions{
			Path:     cfg.FilePath,
			Mode:     mode,
			RowDelay: cfg.FileRowDelay,
			Logger:   log,
		})
	case config.KindSerial:
		return NewSerial(SerialOptions{
			Port:        cfg.SerialPort,
			BaudRate:    uint(cfg.SerialBaudRate),
			ReadTimeout: cfg.SerialReadTimeout,
			Logger:      log,
		})
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
}
