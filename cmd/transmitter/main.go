package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/rc-transmitter/cmd/transmitter/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		dryRun     bool
		calibrate  bool
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file, built-in defaults when empty")
	flag.BoolVar(&dryRun, "dry-run", false, "Use the in-memory radio instead of the configured link")
	flag.BoolVar(&calibrate, "calibrate", false, "Log stick ranges and resting centers")
	flag.Parse()

	config := app.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	if dryRun {
		config.Link.Backend = app.LinkStub
	}
	if calibrate {
		config.Calibration.Extrema = true
		config.Calibration.Center = true
	}

	level, err := config.Settings.Level()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
