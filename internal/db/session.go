package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// SessionInfo summarises one saved logging session.
type SessionInfo struct {
	ID          string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	StoppedAt   time.Time `json:"stopped_at"`
	RecordCount int       `json:"record_count"`
}

// ClearSessions removes every saved session and its records.
func (db *DB) ClearSessions(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_records`); err != nil {
		return fmt.Errorf("clear session records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return tx.Commit()
}

// SaveSession stores info and its records in one transaction. Records keep
// their order through seq.
func (db *DB) SaveSession(ctx context.Context, info SessionInfo, records telemetry.Session) error {
	if info.ID == "" {
		return errors.New("session id is required")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_unix_nanos, stopped_unix_nanos, record_count)
		VALUES (?, ?, ?, ?)`,
		info.ID, info.StartedAt.UnixNano(), info.StoppedAt.UnixNano(), len(records),
	); err != nil {
		return fmt.Errorf("insert session %s: %w", info.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_records (
			session_id, seq, acc_x, acc_y, acc_z, gyro_x, gyro_y, gyro_z,
			heart_rate, spo2, prediction, label
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			info.ID, i,
			nullFloat(r.AccX), nullFloat(r.AccY), nullFloat(r.AccZ),
			nullFloat(r.GyroX), nullFloat(r.GyroY), nullFloat(r.GyroZ),
			nullFloat(r.HeartRate), nullFloat(r.SpO2),
			nullString(r.Prediction), nullString(r.Label),
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LatestSession returns the most recently stopped session, or nil when none
// is saved.
func (db *DB) LatestSession(ctx context.Context) (*SessionInfo, error) {
	var (
		info             SessionInfo
		started, stopped int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT session_id, started_unix_nanos, stopped_unix_nanos, record_count
		FROM sessions
		ORDER BY stopped_unix_nanos DESC
		LIMIT 1`).Scan(&info.ID, &started, &stopped, &info.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info.StartedAt = time.Unix(0, started).UTC()
	info.StoppedAt = time.Unix(0, stopped).UTC()
	return &info, nil
}

// SessionRecords returns the records of the latest session in recording
// order. No saved session yields an empty, non-nil slice.
func (db *DB) SessionRecords(ctx context.Context) (telemetry.Session, error) {
	info, err := db.LatestSession(ctx)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return telemetry.Session{}, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT acc_x, acc_y, acc_z, gyro_x, gyro_y, gyro_z, heart_rate, spo2, prediction, label
		FROM session_records
		WHERE session_id = ?
		ORDER BY seq`, info.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := telemetry.Session{}
	for rows.Next() {
		var (
			f                 [8]sql.NullFloat64
			prediction, label sql.NullString
		)
		if err := rows.Scan(&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &prediction, &label); err != nil {
			return nil, err
		}
		out = append(out, telemetry.SessionRecord{
			AccX: floatPtr(f[0]), AccY: floatPtr(f[1]), AccZ: floatPtr(f[2]),
			GyroX: floatPtr(f[3]), GyroY: floatPtr(f[4]), GyroZ: floatPtr(f[5]),
			HeartRate: floatPtr(f[6]), SpO2: floatPtr(f[7]),
			Prediction: prediction.String,
			Label:      label.String,
		})
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	x := v.Float64
	return &x
}
