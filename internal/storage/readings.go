package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReadingRecord is one persisted poll result.
type ReadingRecord struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Register   string    `json:"register"`
	Value      float64   `json:"value"`
	OutOfRange bool      `json:"out_of_range"`
	CapturedAt time.Time `json:"captured_at"`
}

// SessionRecord tracks one monitoring session's lifetime and counters.
type SessionRecord struct {
	ID        uuid.UUID  `json:"id"`
	Register  string     `json:"register"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Total     int64      `json:"total"`
	Succeeded int64      `json:"succeeded"`
}

// InsertReading stores one reading.
func (p *PostgresClient) InsertReading(ctx context.Context, rec ReadingRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO readings (id, session_id, register, value, out_of_range, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.SessionID, rec.Register, rec.Value, rec.OutOfRange, rec.CapturedAt)

	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// RecentReadings returns the newest readings, newest first.
func (p *PostgresClient) RecentReadings(ctx context.Context, limit int) ([]ReadingRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, register, value, out_of_range, captured_at
		FROM readings
		ORDER BY captured_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var records []ReadingRecord
	for rows.Next() {
		var rec ReadingRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Register,
			&rec.Value, &rec.OutOfRange, &rec.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ReadingsSince returns readings captured at or after t, oldest first.
func (p *PostgresClient) ReadingsSince(ctx context.Context, t time.Time) ([]ReadingRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, register, value, out_of_range, captured_at
		FROM readings
		WHERE captured_at >= $1
		ORDER BY captured_at ASC
	`, t)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var records []ReadingRecord
	for rows.Next() {
		var rec ReadingRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Register,
			&rec.Value, &rec.OutOfRange, &rec.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// StartSession records the beginning of a monitoring session.
func (p *PostgresClient) StartSession(ctx context.Context, id uuid.UUID, register string, startedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, register, started_at)
		VALUES ($1, $2, $3)
	`, id, register, startedAt)

	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// CloseSession finalizes a session with its counters.
func (p *PostgresClient) CloseSession(ctx context.Context, id uuid.UUID, total, succeeded uint64) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE sessions
		SET ended_at = NOW(), total = $2, succeeded = $3
		WHERE id = $1
	`, id, int64(total), int64(succeeded))

	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}

// GetSession returns one session row.
func (p *PostgresClient) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	var rec SessionRecord
	err := p.pool.QueryRow(ctx, `
		SELECT id, register, started_at, ended_at, total, succeeded
		FROM sessions
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Register, &rec.StartedAt, &rec.EndedAt, &rec.Total, &rec.Succeeded)

	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &rec, nil
}
