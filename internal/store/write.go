package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vigilab/comptrack/internal/model"
)

// createdFormat is the storage encoding for enrollment timestamps.
const createdFormat = time.RFC3339Nano

// InsertParticipant persists an enrollment record and returns the assigned
// surrogate ID. Field validation is the registry's responsibility; the store
// only enforces the relational constraints.
func (s *Store) InsertParticipant(ctx context.Context, p model.Participant) (model.ParticipantID, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (userhash, gender, age, handedness, created)
		VALUES (?, ?, ?, ?, ?)
	`,
		p.UserHash,
		p.Gender,
		p.Age,
		p.Handedness,
		p.Created.UTC().Format(createdFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("insert participant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert participant: last insert id: %w", err)
	}
	return model.ParticipantID(id), nil
}

// InsertTrial persists one (block, trial) coordinate for a participant.
//
// Returns DuplicateTrialError if the coordinate was already recorded - the
// unique constraint rejects silent overwrite so orchestrator bugs surface
// immediately. Returns ReferenceError if the participant does not exist.
func (s *Store) InsertTrial(ctx context.Context, t model.Trial) (model.TrialID, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (participant_id, block_num, trial_num)
		VALUES (?, ?, ?)
	`,
		t.ParticipantID,
		t.BlockNum,
		t.TrialNum,
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) {
			switch sqlErr.ExtendedCode {
			case sqlite3.ErrConstraintUnique:
				return 0, model.NewDuplicateTrialError(t.ParticipantID, t.BlockNum, t.TrialNum)
			case sqlite3.ErrConstraintForeignKey:
				return 0, model.NewReferenceError(t.ParticipantID)
			}
		}
		return 0, fmt.Errorf("insert trial: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert trial: last insert id: %w", err)
	}
	return model.TrialID(id), nil
}

// InsertSampleBatch commits a batch of samples in a single transaction.
// All-or-nothing: a crash or failure mid-batch never leaves a partial batch
// visible to readers. Sample IDs are caller-assigned (the recorder's logical
// clock) and written explicitly so the handle returned at append time is the
// row's identity after the flush.
func (s *Store) InsertSampleBatch(ctx context.Context, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sample batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comp_track_data
		(id, participant_id, trial_id, timestamp,
		 buffeting_force, additional_force, total_force,
		 user_input, target_position, displacement, PVT_event, PVT_RT)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sample batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		var trialID any
		if sm.TrialID != nil {
			trialID = int64(*sm.TrialID)
		}
		var rt any
		if sm.PVTRT != nil {
			rt = *sm.PVTRT
		}

		if _, err := stmt.ExecContext(ctx,
			int64(sm.ID),
			int64(sm.ParticipantID),
			trialID,
			sm.Timestamp,
			sm.BuffetingForce,
			sm.AdditionalForce,
			sm.TotalForce,
			sm.UserInput,
			sm.TargetPosition,
			sm.Displacement,
			string(sm.PVTEvent),
			rt,
		); err != nil {
			var sqlErr sqlite3.Error
			if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
				return model.NewReferenceError(sm.ParticipantID)
			}
			return fmt.Errorf("sample batch: insert sample %d: %w", sm.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sample batch: commit: %w", err)
	}

	return nil
}
