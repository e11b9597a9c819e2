// Package trialindex implements the trial index: the sparse record of
// (block, trial) coordinates for each participant's session. One row per
// trial, unique per participant, never mutated after insert.
package trialindex

import (
	"context"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

// Index records and lists trial coordinates.
type Index struct {
	store *store.Store
}

// New creates an Index backed by the given store.
func New(s *store.Store) *Index {
	return &Index{store: s}
}

// Record inserts one trial coordinate for a participant. The triple
// (participant, block, trial) is unique: re-recording an existing
// coordinate is a DUPLICATE_TRIAL error, and an unknown participant is a
// REFERENCE error. The uniqueness check and insert are one atomic
// statement, so concurrent duplicates cannot both land.
func (ix *Index) Record(ctx context.Context, participant model.ParticipantID, blockNum, trialNum int) (model.Trial, error) {
	if err := model.ValidateTrialCoordinate(blockNum, trialNum); err != nil {
		return model.Trial{}, err
	}

	t := model.Trial{
		ParticipantID: participant,
		BlockNum:      blockNum,
		TrialNum:      trialNum,
	}
	id, err := ix.store.InsertTrial(ctx, t)
	if err != nil {
		return model.Trial{}, err
	}
	t.ID = id
	return t, nil
}

// List returns the participant's trials ordered by block then trial
// number. A participant with no trials yields an empty slice; listing
// does not distinguish an unenrolled participant from one with no trials.
func (ix *Index) List(ctx context.Context, participant model.ParticipantID) ([]model.Trial, error) {
	return ix.store.ListTrials(ctx, participant)
}
