package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vigilab/comptrack/internal/model"
)

// GetParticipant retrieves one enrollment record.
// Returns ReferenceError if the participant does not exist.
func (s *Store) GetParticipant(ctx context.Context, id model.ParticipantID) (model.Participant, error) {
	var p model.Participant
	var created string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, userhash, gender, age, handedness, created
		FROM participants
		WHERE id = ?
	`, int64(id)).Scan(&p.ID, &p.UserHash, &p.Gender, &p.Age, &p.Handedness, &created)
	if err == sql.ErrNoRows {
		return model.Participant{}, model.NewReferenceError(id)
	}
	if err != nil {
		return model.Participant{}, fmt.Errorf("get participant: %w", err)
	}

	p.Created, err = time.Parse(createdFormat, created)
	if err != nil {
		return model.Participant{}, fmt.Errorf("get participant: parse created: %w", err)
	}

	return p, nil
}

// HasParticipant reports whether the participant exists.
func (s *Store) HasParticipant(ctx context.Context, id model.ParticipantID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participants WHERE id = ?
	`, int64(id)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return count > 0, nil
}

// ListTrials returns a participant's trials ordered by (block_num, trial_num).
// Returns an empty slice (not nil) if the participant has no trials yet.
func (s *Store) ListTrials(ctx context.Context, id model.ParticipantID) ([]model.Trial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, block_num, trial_num
		FROM trials
		WHERE participant_id = ?
		ORDER BY block_num ASC, trial_num ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var trials []model.Trial
	for rows.Next() {
		var t model.Trial
		if err := rows.Scan(&t.ID, &t.ParticipantID, &t.BlockNum, &t.TrialNum); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		trials = append(trials, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}

	if trials == nil {
		trials = []model.Trial{}
	}

	return trials, nil
}

// SampleCursor iterates a participant's samples lazily in timestamp order.
// The underlying query sees a committed snapshot; batches flushed after the
// cursor opened are not observed mid-iteration.
type SampleCursor struct {
	rows *sql.Rows
	cur  model.Sample
	err  error
}

// Next advances the cursor. Returns false at the end of the range or on
// error; check Err after iteration.
func (c *SampleCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	c.cur, c.err = scanSample(c.rows)
	return c.err == nil
}

// Sample returns the sample at the cursor position.
func (c *SampleCursor) Sample() model.Sample {
	return c.cur
}

// Err returns the first error encountered during iteration.
func (c *SampleCursor) Err() error {
	return c.err
}

// Close releases the cursor. Safe to call multiple times.
func (c *SampleCursor) Close() error {
	return c.rows.Close()
}

// SampleRange opens a cursor over [from, to] (inclusive bounds) for one
// participant, ordered by timestamp then id. The cursor is finite and
// restartable: re-opening with the same bounds yields the same sequence.
func (s *Store) SampleRange(ctx context.Context, id model.ParticipantID, from, to float64) (*SampleCursor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, trial_id, timestamp,
		       buffeting_force, additional_force, total_force,
		       user_input, target_position, displacement, PVT_event, PVT_RT
		FROM comp_track_data
		WHERE participant_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, int64(id), from, to)
	if err != nil {
		return nil, fmt.Errorf("query sample range: %w", err)
	}
	return &SampleCursor{rows: rows}, nil
}

// SamplesInRange is the eager convenience form of SampleRange.
// Returns an empty slice (not nil) if no samples fall in the range.
func (s *Store) SamplesInRange(ctx context.Context, id model.ParticipantID, from, to float64) ([]model.Sample, error) {
	cur, err := s.SampleRange(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var samples []model.Sample
	for cur.Next() {
		samples = append(samples, cur.Sample())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample range: %w", err)
	}

	if samples == nil {
		samples = []model.Sample{}
	}

	return samples, nil
}

// LastTimestamp returns the latest recorded timestamp for a participant and
// whether any samples exist. Used by the recorder to seed the monotonicity
// check when resuming a participant's stream.
func (s *Store) LastTimestamp(ctx context.Context, id model.ParticipantID) (float64, bool, error) {
	var ts sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM comp_track_data WHERE participant_id = ?
	`, int64(id)).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("last timestamp: %w", err)
	}
	return ts.Float64, ts.Valid, nil
}

// MaxSampleID returns the highest assigned sample ID across all participants.
// The recorder resumes its logical clock from here on restart.
func (s *Store) MaxSampleID(ctx context.Context) (model.SampleID, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM comp_track_data`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("max sample id: %w", err)
	}
	return model.SampleID(id.Int64), nil
}

// CountSamples returns the number of persisted samples for a participant.
func (s *Store) CountSamples(ctx context.Context, id model.ParticipantID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comp_track_data WHERE participant_id = ?
	`, int64(id)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// scanSample scans one comp_track_data row.
func scanSample(rows *sql.Rows) (model.Sample, error) {
	var sm model.Sample
	var trialID sql.NullInt64
	var event string
	var rt sql.NullFloat64

	if err := rows.Scan(
		&sm.ID, &sm.ParticipantID, &trialID, &sm.Timestamp,
		&sm.BuffetingForce, &sm.AdditionalForce, &sm.TotalForce,
		&sm.UserInput, &sm.TargetPosition, &sm.Displacement, &event, &rt,
	); err != nil {
		return model.Sample{}, fmt.Errorf("scan sample: %w", err)
	}

	if trialID.Valid {
		tid := model.TrialID(trialID.Int64)
		sm.TrialID = &tid
	}
	sm.PVTEvent = model.PVTEvent(event)
	if rt.Valid {
		v := rt.Float64
		sm.PVTRT = &v
	}

	return sm, nil
}
