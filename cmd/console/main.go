// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_stream/internal/app"
	"github.com/relabs-tech/inertial_stream/internal/config"
	"github.com/relabs-tech/inertial_stream/internal/logging"
)

func main() {
	configPath := flag.String("config", "./imu_stream_config.txt", "path to configuration file (empty for defaults)")
	kind := flag.String("kind", "", "override SOURCE_KIND (dummy, file, serial)")
	mode := flag.String("mode", "", "override SOURCE_MODE (live, oneshot)")
	file := flag.String("file", "", "override FILE_PATH")
	port := flag.String("port", "", "override SERIAL_PORT")
	duration := flag.Duration("duration", 0, "stop listening after this long (0 = until the source ends or Ctrl-C)")
	quiet := flag.Bool("quiet", false, "only print the final summary")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *kind != "" {
		cfg.SourceKind = *kind
	}
	if *mode != "" {
		cfg.SourceMode = *mode
	}
	if *file != "" {
		cfg.FilePath = *file
	}
	if *port != "" {
		cfg.SerialPort = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(logging.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting imu-stream console",
		zap.String("kind", cfg.SourceKind),
		zap.String("mode", cfg.SourceMode),
		zap.Duration("duration", *duration),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = app.RunConsole(ctx, cfg, logger, app.ConsoleOptions{
		Out:      os.Stdout,
		Duration: *duration,
		Quiet:    *quiet,
	})
	if err != nil {
		logger.Error("console failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("console done", zap.Duration("elapsed", time.Since(start)))
}
