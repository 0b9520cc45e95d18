package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the transmitter.
type Session struct {
	ID           int64
	UUID         uuid.UUID
	StartTime    time.Time
	EndTime      sql.NullTime
	LinkBackend  string
	LocalAddress string
	Config       sql.NullString
}

// SwitchRecord is one change of the active receiver.
type SwitchRecord struct {
	SessionID       int64
	Timestamp       time.Time
	FromIndex       int
	FromAddress     string
	ToIndex         int
	ToName          string
	ToAddress       string
	DeregisterError sql.NullString
	RegisterError   sql.NullString
}

// CalibrationRecord is one axis of a calibration report. Extrema reports fill
// RawMin and RawMax, center reports fill RawCenter.
type CalibrationRecord struct {
	SessionID int64
	Timestamp time.Time
	Kind      string
	Axis      string
	RawMin    sql.NullInt64
	RawMax    sql.NullInt64
	RawCenter sql.NullInt64
}

// StatsRecord holds the transmitter counters at the end of a session.
type StatsRecord struct {
	SessionID int64
	Timestamp time.Time
	Cycles    int64
	Attempts  int64
	Accepted  int64
	Rejected  int64
	Delivered int64
	Failed    int64
	Bytes     int64
}
