package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/radio"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string
	now    func() time.Time

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath. The
// database and its schema are created on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath, now: time.Now}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) exec(ctx context.Context, query string, args ...any) (result sql.Result, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	return stmt.ExecContext(ctx, args...)
}

func (s *SqliteStore) CreateSession(ctx context.Context, linkBackend string, local radio.Address, config any) (*Session, error) {
	configData, err := toConfigData(config)
	if err != nil {
		return nil, err
	}

	sess := Session{
		UUID:         uuid.New(),
		StartTime:    s.now().UTC(),
		LinkBackend:  linkBackend,
		LocalAddress: local.String(),
		Config:       configData,
	}

	result, err := s.exec(ctx, insertSessionSQL, sess.UUID.String(), sess.StartTime, sess.LinkBackend, sess.LocalAddress, sess.Config)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	if sess.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("getting session ID: %w", err)
	}
	return &sess, nil
}

func (s *SqliteStore) EndSession(ctx context.Context, sessionID int64) error {
	result, err := s.exec(ctx, endSessionSQL, s.now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ending session %d: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

func (s *SqliteStore) RecordSwitch(ctx context.Context, sessionID int64, sw receiver.Switch) error {
	data := toSwitchRecord(sessionID, sw)

	_, err := s.exec(ctx, insertSwitchSQL,
		data.SessionID,
		data.Timestamp,
		data.FromIndex,
		data.FromAddress,
		data.ToIndex,
		data.ToName,
		data.ToAddress,
		data.DeregisterError,
		data.RegisterError,
	)
	if err != nil {
		return fmt.Errorf("inserting receiver switch: %w", err)
	}
	return nil
}

func (s *SqliteStore) RecordCalibration(ctx context.Context, sessionID int64, r control.CalibrationReport) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertCalibrationSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, data := range toCalibrationRecords(sessionID, r) {
		if _, err = stmt.ExecContext(ctx,
			data.SessionID,
			data.Timestamp,
			data.Kind,
			data.Axis,
			data.RawMin,
			data.RawMax,
			data.RawCenter,
		); err != nil {
			return fmt.Errorf("inserting calibration %s: %w", data.Axis, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) RecordStats(ctx context.Context, sessionID, cycles int64, st transmit.Stats) error {
	data := toStatsRecord(sessionID, cycles, st)
	data.Timestamp = s.now().UTC()

	_, err := s.exec(ctx, insertStatsSQL,
		data.SessionID,
		data.Timestamp,
		data.Cycles,
		data.Attempts,
		data.Accepted,
		data.Rejected,
		data.Delivered,
		data.Failed,
		data.Bytes,
	)
	if err != nil {
		return fmt.Errorf("inserting transmit stats: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess Session
		id   string
	)
	if err := row.Scan(&sess.ID, &id, &sess.StartTime, &sess.EndTime, &sess.LinkBackend, &sess.LocalAddress, &sess.Config); err != nil {
		return nil, err
	}

	var err error
	if sess.UUID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing session UUID %q: %w", id, err)
	}
	return &sess, nil
}

func (s *SqliteStore) querySession(ctx context.Context, query string, args ...any) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrSessionNotFound
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (*Session, error) {
	return s.querySession(ctx, selectSessionSQL, id)
}

func (s *SqliteStore) LatestSession(ctx context.Context) (*Session, error) {
	return s.querySession(ctx, selectLatestSessionSQL)
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Switches(ctx context.Context, sessionID int64) (switches []*SwitchRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSwitchesSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying receiver switches: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r SwitchRecord
		if err = rows.Scan(
			&r.SessionID,
			&r.Timestamp,
			&r.FromIndex,
			&r.FromAddress,
			&r.ToIndex,
			&r.ToName,
			&r.ToAddress,
			&r.DeregisterError,
			&r.RegisterError,
		); err != nil {
			err = fmt.Errorf("scanning receiver switch: %w", err)
			return
		}
		switches = append(switches, &r)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Calibrations(ctx context.Context, sessionID int64) (records []*CalibrationRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectCalibrationsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying calibration reports: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r CalibrationRecord
		if err = rows.Scan(&r.SessionID, &r.Timestamp, &r.Kind, &r.Axis, &r.RawMin, &r.RawMax, &r.RawCenter); err != nil {
			err = fmt.Errorf("scanning calibration report: %w", err)
			return
		}
		records = append(records, &r)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Stats(ctx context.Context, sessionID int64) (stats *StatsRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var r StatsRecord
	err = db.QueryRowContext(ctx, selectStatsSQL, sessionID).Scan(
		&r.SessionID,
		&r.Timestamp,
		&r.Cycles,
		&r.Attempts,
		&r.Accepted,
		&r.Rejected,
		&r.Delivered,
		&r.Failed,
		&r.Bytes,
	)
	if err != nil {
		err = fmt.Errorf("scanning transmit stats: %w", err)
		return
	}
	return &r, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
