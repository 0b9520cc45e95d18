package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/storage"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

// journal records session events when storage is enabled and does nothing
// otherwise. Write failures are logged and never reach the cycle.
type journal struct {
	store   storage.Store
	session *storage.Session
	logger  *slog.Logger
}

func openJournal(ctx context.Context, config *StorageConfig, app *Config, link radio.Link, logger *slog.Logger) (*journal, error) {
	j := journal{logger: logger.With(slog.String("component", "journal"))}
	if config.DataDirectory == "" {
		return &j, nil
	}

	store, err := createStorage(config)
	if err != nil {
		return nil, err
	}

	sess, err := store.CreateSession(ctx, app.Link.Backend, link.LocalAddress(), app)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	j.store = store
	j.session = sess
	j.logger = j.logger.With(slog.String("session", sess.UUID.String()))
	j.logger.Info("session journal started", slog.Int64("id", sess.ID))

	return &j, nil
}

func (j *journal) enabled() bool {
	return j.store != nil
}

// writeContext detaches journal writes from the run context so the final
// records still land after a shutdown signal.
func (j *journal) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), journalTimeout)
}

func (j *journal) recordSwitch(sw receiver.Switch) {
	if !j.enabled() {
		return
	}

	ctx, cancel := j.writeContext()
	defer cancel()

	if err := j.store.RecordSwitch(ctx, j.session.ID, sw); err != nil {
		j.logger.Warn("error recording receiver switch", slog.Any("error", err))
	}
}

func (j *journal) recordCalibration(r control.CalibrationReport) {
	if !j.enabled() {
		return
	}

	ctx, cancel := j.writeContext()
	defer cancel()

	if err := j.store.RecordCalibration(ctx, j.session.ID, r); err != nil {
		j.logger.Warn("error recording calibration report", slog.Any("error", err))
	}
}

func (j *journal) recordStats(cycles int64, stats transmit.Stats) {
	if !j.enabled() {
		return
	}

	ctx, cancel := j.writeContext()
	defer cancel()

	if err := j.store.RecordStats(ctx, j.session.ID, cycles, stats); err != nil {
		j.logger.Warn("error recording transmit stats", slog.Any("error", err))
	}
}

func (j *journal) close() {
	if !j.enabled() {
		return
	}

	ctx, cancel := j.writeContext()
	defer cancel()

	if err := j.store.EndSession(ctx, j.session.ID); err != nil {
		j.logger.Warn("error ending session", slog.Any("error", err))
	}
	if err := j.store.Close(); err != nil {
		j.logger.Warn("error closing storage", slog.Any("error", err))
	}
}
