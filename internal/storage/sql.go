package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_switches_session ON receiver_switches (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_calibration_session ON calibration_reports (session_id, kind, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (uuid,
                      start_time,
                      link_backend,
                      local_address,
                      config)
VALUES (?, ?, ?, ?, ?)`

	endSessionSQL = `
UPDATE sessions
SET end_time = ?
WHERE id = ?`

	selectSessionColumns = `
SELECT
    id,
    uuid,
    start_time,
    end_time,
    link_backend,
    local_address,
    config
FROM sessions`

	selectSessionSQL = selectSessionColumns + `
WHERE
    id = ?`

	selectSessionsSQL = selectSessionColumns + `
ORDER BY start_time, id`

	selectLatestSessionSQL = selectSessionColumns + `
ORDER BY start_time DESC, id DESC
LIMIT 1`

	insertSwitchSQL = `
INSERT INTO receiver_switches (session_id,
                               timestamp,
                               from_index,
                               from_address,
                               to_index,
                               to_name,
                               to_address,
                               deregister_error,
                               register_error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSwitchesSQL = `
SELECT
    session_id,
    timestamp,
    from_index,
    from_address,
    to_index,
    to_name,
    to_address,
    deregister_error,
    register_error
FROM receiver_switches
WHERE
    session_id = ?
ORDER BY timestamp, id`

	insertCalibrationSQL = `
INSERT INTO calibration_reports (session_id,
                                 timestamp,
                                 kind,
                                 axis,
                                 raw_min,
                                 raw_max,
                                 raw_center)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectCalibrationsSQL = `
SELECT
    session_id,
    timestamp,
    kind,
    axis,
    raw_min,
    raw_max,
    raw_center
FROM calibration_reports
WHERE
    session_id = ?
ORDER BY timestamp, id`

	insertStatsSQL = `
INSERT OR REPLACE INTO transmit_stats (session_id,
                                       timestamp,
                                       cycles,
                                       attempts,
                                       accepted,
                                       rejected,
                                       delivered,
                                       failed,
                                       bytes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectStatsSQL = `
SELECT
    session_id,
    timestamp,
    cycles,
    attempts,
    accepted,
    rejected,
    delivered,
    failed,
    bytes
FROM transmit_stats
WHERE
    session_id = ?`
)
