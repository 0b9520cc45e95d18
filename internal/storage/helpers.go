package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/receiver"
	"github.com/roman-kulish/rc-transmitter/internal/transmit"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toConfigData(config any) (sql.NullString, error) {
	switch v := config.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: v, Valid: true}, nil
	case []byte:
		return sql.NullString{String: string(v), Valid: true}, nil
	default:
		p, err := json.Marshal(config)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("marshaling config: %w", err)
		}
		return sql.NullString{String: string(p), Valid: true}, nil
	}
}

func toErrorString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func toSwitchRecord(sessionID int64, sw receiver.Switch) *SwitchRecord {
	return &SwitchRecord{
		SessionID:       sessionID,
		Timestamp:       sw.Timestamp.UTC(),
		FromIndex:       sw.FromIndex,
		FromAddress:     sw.From.Address.String(),
		ToIndex:         sw.Index,
		ToName:          sw.To.Name,
		ToAddress:       sw.To.Address.String(),
		DeregisterError: toErrorString(sw.DeregisterErr),
		RegisterError:   toErrorString(sw.RegisterErr),
	}
}

func toCalibrationRecords(sessionID int64, r control.CalibrationReport) []*CalibrationRecord {
	records := make([]*CalibrationRecord, control.NumAxes)
	for i := range records {
		rec := CalibrationRecord{
			SessionID: sessionID,
			Timestamp: r.Timestamp.UTC(),
			Kind:      string(r.Kind),
			Axis:      control.Axis(i).String(),
		}

		switch r.Kind {
		case control.ReportExtrema:
			rec.RawMin = sql.NullInt64{Int64: int64(r.Extrema[i].Min), Valid: true}
			rec.RawMax = sql.NullInt64{Int64: int64(r.Extrema[i].Max), Valid: true}
		case control.ReportCenter:
			rec.RawCenter = sql.NullInt64{Int64: int64(r.Centers[i]), Valid: true}
		}

		records[i] = &rec
	}
	return records
}

func toStatsRecord(sessionID, cycles int64, s transmit.Stats) *StatsRecord {
	return &StatsRecord{
		SessionID: sessionID,
		Cycles:    cycles,
		Attempts:  s.Attempts,
		Accepted:  s.Accepted,
		Rejected:  s.Rejected,
		Delivered: s.Delivered,
		Failed:    s.Failed,
		Bytes:     s.Bytes,
	}
}
