package app

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rc-transmitter/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer closeWithError(store, "closing database", &err)

	return plotSession(ctx, store, config, logger)
}

func plotSession(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (err error) {
	var sess *storage.Session
	if config.SessionID == 0 {
		sess, err = store.LatestSession(ctx)
	} else {
		sess, err = store.Session(ctx, config.SessionID)
	}
	if err != nil {
		return err
	}

	records, err := store.Calibrations(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %d has no calibration reports, run the transmitter with -calibrate", sess.ID)
	}

	axes := Summarize(records)
	for _, a := range axes {
		logger.Info("axis calibration",
			slog.String("axis", a.Axis),
			slog.Int("min", a.Min),
			slog.Int("center", a.Center),
			slog.Int("max", a.Max))
	}

	renderer, err := NewRenderer(config.Width)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	title := fmt.Sprintf("Session %d, %s, started %s (%s)",
		sess.ID, sess.LocalAddress, sess.StartTime.Local().Format(time.DateTime), humanize.Time(sess.StartTime))

	img, err := renderer.Render(title, axes)
	if err != nil {
		return fmt.Errorf("rendering calibration: %w", err)
	}

	logger.Info("writing image",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy())))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer closeWithError(out, "closing image", &err)

	return png.Encode(out, img)
}

// closeWithError closes c and joins a close failure into err.
func closeWithError(c io.Closer, msg string, err *error) {
	if closeErr := c.Close(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("%s: %w", msg, closeErr))
	}
}
