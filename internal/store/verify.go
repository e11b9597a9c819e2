package store

import (
	"context"
	"fmt"

	"github.com/vigilab/comptrack/internal/model"
)

// ForceViolation is one sample whose total force does not match the sum of
// its components.
type ForceViolation struct {
	SampleID      model.SampleID
	ParticipantID model.ParticipantID
	Timestamp     float64
	Expected      float64
	Actual        float64
}

// VerifyForces scans a participant's samples and reports rows where
// total_force deviates from buffeting_force + additional_force by more than
// the tolerance. The log never enforces this identity on write - the force
// model computes total upstream - so this is the after-the-fact correctness
// check the schema calls for.
func (s *Store) VerifyForces(ctx context.Context, id model.ParticipantID, tolerance float64) ([]ForceViolation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, timestamp,
		       buffeting_force + additional_force, total_force
		FROM comp_track_data
		WHERE participant_id = ?
		  AND ABS(total_force - (buffeting_force + additional_force)) > ?
		ORDER BY timestamp ASC, id ASC
	`, int64(id), tolerance)
	if err != nil {
		return nil, fmt.Errorf("verify forces: %w", err)
	}
	defer rows.Close()

	var violations []ForceViolation
	for rows.Next() {
		var v ForceViolation
		if err := rows.Scan(&v.SampleID, &v.ParticipantID, &v.Timestamp, &v.Expected, &v.Actual); err != nil {
			return nil, fmt.Errorf("scan force violation: %w", err)
		}
		violations = append(violations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate force violations: %w", err)
	}

	if violations == nil {
		violations = []ForceViolation{}
	}

	return violations, nil
}
