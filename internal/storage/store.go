package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

// Store is the session journal of the transmitter: what ran, which receivers
// were selected, what the calibration session discovered and how many frames
// went out. The journal is diagnostic; the transmitter never reads it back.
type Store interface {
	// CreateSession starts a new session with a random UUID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - linkBackend: Name of the radio link backend (e.g., "serial", "udp")
	//   - local: Station address reported by the link
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, linkBackend string, local radio.Address, config any) (*Session, error)

	// EndSession stamps the end time of a session.
	EndSession(ctx context.Context, sessionID int64) error

	// RecordSwitch stores a change of the active receiver.
	RecordSwitch(ctx context.Context, sessionID int64, sw receiver.Switch) error

	// RecordCalibration stores one row per axis of a calibration report in a
	// single transaction.
	RecordCalibration(ctx context.Context, sessionID int64, r control.CalibrationReport) error

	// RecordStats stores the transmitter counters, replacing earlier ones.
	RecordStats(ctx context.Context, sessionID, cycles int64, s transmit.Stats) error

	Session(ctx context.Context, id int64) (*Session, error)

	// LatestSession returns the most recently started session.
	LatestSession(ctx context.Context) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	Switches(ctx context.Context, sessionID int64) ([]*SwitchRecord, error)

	// Calibrations returns the calibration rows of a session, oldest first.
	Calibrations(ctx context.Context, sessionID int64) ([]*CalibrationRecord, error)

	Stats(ctx context.Context, sessionID int64) (*StatsRecord, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
