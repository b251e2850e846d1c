package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallRecord holds operational metadata for one phone call. Conversation
// content is never persisted.
type CallRecord struct {
	ID        uuid.UUID  `db:"id"`
	StreamSID *string    `db:"stream_sid"`
	StartedAt time.Time  `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
	Turns     int64      `db:"turns"`
}

const sqlCreateCallRecord = `
INSERT INTO call_records (started_at)
VALUES (NOW())
RETURNING id, stream_sid, started_at, ended_at, turns
`

// CreateCallRecord inserts a record for a call that just connected.
func (s *Store) CreateCallRecord(ctx context.Context) (CallRecord, error) {
	var record CallRecord
	err := s.db.GetContext(ctx, &record, sqlCreateCallRecord)
	if err != nil {
		s.logger.Error(ctx, "failed to create call record", err)
		return CallRecord{}, fmt.Errorf("failed to create call record: %w", err)
	}
	return record, nil
}

const sqlFinishCallRecord = `
UPDATE call_records
SET stream_sid = $2, ended_at = NOW(), turns = $3
WHERE id = $1
`

// FinishCallRecord stamps the record when the call tears down.
func (s *Store) FinishCallRecord(ctx context.Context, id uuid.UUID, streamSID string, turns int64) error {
	result, err := s.db.ExecContext(ctx, sqlFinishCallRecord, id, streamSID, turns)
	if err != nil {
		s.logger.Error(ctx, "failed to finish call record", err)
		return fmt.Errorf("failed to finish call record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish call record: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const sqlGetCallRecord = `
SELECT id, stream_sid, started_at, ended_at, turns
FROM call_records
WHERE id = $1
`

// GetCallRecord fetches one call record by ID.
func (s *Store) GetCallRecord(ctx context.Context, id uuid.UUID) (CallRecord, error) {
	var record CallRecord
	err := s.db.GetContext(ctx, &record, sqlGetCallRecord, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get call record", err)
		return CallRecord{}, fmt.Errorf("failed to get call record: %w", err)
	}
	return record, nil
}
