package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/pipeline"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/radio/serialbridge"
	"github.com/roman-kulish/rc-transmitter/internal/radio/stub"
	"github.com/roman-kulish/rc-transmitter/internal/radio/udplink"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/storage"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

const (
	journalTimeout = 5 * time.Second
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	started := time.Now()

	link, err := createLink(ctx, &config.Link, logger)
	if err != nil {
		if config.Link.OnInitFailure == OnInitFailureAbort {
			return fmt.Errorf("failed to initialize radio: %w", err)
		}

		logger.Error("error initializing radio, continuing without it", slog.Any("error", err))
		link = radio.Unavailable(config.Link.LocalAddress, err)
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Warn("error closing radio", slog.Any("error", err))
		}
	}()

	logger.Info("station address", slog.String("address", link.LocalAddress().String()))

	source, err := createInput(&config.Input, config)
	if err != nil {
		return fmt.Errorf("failed to create input: %w", err)
	}

	registry, err := receiver.NewRegistry(config.Receivers)
	if err != nil {
		return fmt.Errorf("failed to create receiver registry: %w", err)
	}

	mapper, err := control.NewMapper(config.Axes, config.Mapping.DeadZone)
	if err != nil {
		return fmt.Errorf("failed to create mapper: %w", err)
	}

	builder, err := control.NewFrameBuilder(config.Layout, source, source, mapper)
	if err != nil {
		return fmt.Errorf("failed to create frame builder: %w", err)
	}

	j, err := openJournal(ctx, &config.Storage, config, link, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer j.close()

	selector := receiver.NewSelector(registry, link,
		receiver.WithChannel(config.Link.Channel),
		receiver.WithQuietPeriod(config.Timing.SelectorQuietPeriod.Duration()),
		receiver.WithSwitchHandler(j.recordSwitch),
		receiver.WithLogger(logger))

	tracker, err := createTracker(&config.Calibration, j, logger)
	if err != nil {
		return fmt.Errorf("failed to create calibration tracker: %w", err)
	}

	tx := transmit.New(link, registry, transmit.WithLogger(logger))

	controller := pipeline.NewController(builder, source, selector, tx,
		pipeline.WithSampler(source),
		pipeline.WithReporter(control.NewChangeReporter(
			control.WithMoveThreshold(config.Mapping.MoveThreshold),
			control.WithReporterLogger(logger))),
		pipeline.WithTracker(tracker),
		pipeline.WithCycleInterval(config.Timing.CycleInterval.Duration()),
		pipeline.WithLogger(logger))

	logger.Info("transmitter ready",
		slog.Int("receivers", registry.Len()),
		slog.String("default", registry.Active().String()),
		slog.String("selector", config.Layout.Selector.String()),
		slog.Bool("calibration", tracker.Enabled()))

	if err = selector.Activate(ctx); err != nil {
		logger.Error("failed to add peer", slog.Any("error", err))
	}

	if err = controller.Run(ctx); err != nil {
		return err
	}

	stats := tx.Stats()
	cycles := controller.Session().Cycles
	logger.Info("session finished",
		slog.String("cycles", humanize.Comma(cycles)),
		slog.String("started", humanize.Time(started)),
		slog.Any("stats", stats))

	j.recordStats(cycles, stats)
	return nil
}

func createLink(ctx context.Context, config *LinkConfig, logger *slog.Logger) (radio.Link, error) {
	switch config.Backend {
	case LinkStub:
		return stub.New(stub.WithLocalAddress(config.LocalAddress)), nil

	case LinkSerial:
		return serialbridge.Open(ctx, config.Serial.Port, config.Serial.BaudRate,
			serialbridge.WithTimeout(config.Serial.Timeout.Duration()),
			serialbridge.WithLogger(logger))

	case LinkUDP:
		return udplink.Open(&config.UDP,
			udplink.WithLocalAddress(config.LocalAddress),
			udplink.WithLogger(logger))

	default:
		return nil, radio.NewConfigError(config.Backend, fmt.Errorf("unknown link backend '%s'", config.Backend))
	}
}

// controls is what the pipeline reads the handheld through.
type controls interface {
	input.DigitalReader
	input.AnalogReader
	input.Sampler
}

func createInput(config *InputConfig, app *Config) (controls, error) {
	switch config.Backend {
	case InputScript:
		return input.LoadScript(config.Script)

	case InputIdle:
		rest := make(map[input.Line]int, control.NumAxes)
		for i, line := range app.Layout.Axes {
			rest[line] = app.Axes[i].RawCenter
		}
		return input.NewIdle(rest), nil

	default:
		return nil, fmt.Errorf("unknown input backend '%s'", config.Backend)
	}
}

func createTracker(config *CalibrationConfig, j *journal, logger *slog.Logger) (*control.Tracker, error) {
	options := []func(*control.Tracker){
		control.WithTrackerLogger(logger),
		control.WithReportHandler(j.recordCalibration),
	}

	if config.Extrema {
		options = append(options, control.WithExtremaTracking(input.FullScale))
	}
	if config.Center {
		center, err := control.NewCenterCapture(config.CenterSamples)
		if err != nil {
			return nil, err
		}
		options = append(options, control.WithCenterCapture(center))
	}

	return control.NewTracker(options...), nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("tx_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
