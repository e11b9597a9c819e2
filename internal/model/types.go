package model

import "time"

// ParticipantID is the surrogate identifier assigned at enrollment.
type ParticipantID int64

// TrialID is the surrogate identifier of one trial row.
type TrialID int64

// SampleID is the surrogate identifier of one continuous sample.
// IDs are assigned from a monotonic logical clock at append time, before the
// batch reaches durable storage, so producers get a stable handle immediately.
type SampleID int64

// Participant is one enrolled subject. Created once, never mutated.
type Participant struct {
	ID         ParticipantID `json:"id"`
	UserHash   string        `json:"userhash"`   // opaque anonymized identifier
	Gender     string        `json:"gender"`     // free-form categorical text
	Age        int           `json:"age"`        // non-negative
	Handedness string        `json:"handedness"` // left | right | ambidextrous
	Created    time.Time     `json:"created"`    // server-assigned at enrollment
}

// Trial is one (block, trial) coordinate in a participant's session.
// The (ParticipantID, BlockNum, TrialNum) triple is unique.
type Trial struct {
	ID            TrialID       `json:"id"`
	ParticipantID ParticipantID `json:"participant_id"`
	BlockNum      int           `json:"block_num"`
	TrialNum      int           `json:"trial_num"`
}

// PVTEvent classifies a sample with respect to the psychomotor vigilance
// probe. The source task records three cases: no probe on this tick, a
// keypress response with a reaction time, or a one-second timeout.
type PVTEvent string

const (
	PVTNone     PVTEvent = "none"
	PVTResponse PVTEvent = "response"
	PVTTimeout  PVTEvent = "timeout"
)

// Valid reports whether e is one of the three known event kinds.
func (e PVTEvent) Valid() bool {
	switch e {
	case PVTNone, PVTResponse, PVTTimeout:
		return true
	}
	return false
}

// Sample is one tick of the tracking task. Volume dominates the dataset:
// samples >> trials >> participants.
//
// TrialID is optional. The original schema scoped samples to participant and
// timestamp only, forcing analysis to reconstruct trial boundaries by
// timestamp-range correlation against the trial index. New recordings should
// set TrialID; readers must tolerate its absence in legacy data.
type Sample struct {
	ID              SampleID      `json:"id"`
	ParticipantID   ParticipantID `json:"participant_id"`
	TrialID         *TrialID      `json:"trial_id,omitempty"`
	Timestamp       float64       `json:"timestamp"` // seconds since session start
	BuffetingForce  float64       `json:"buffeting_force"`
	AdditionalForce float64       `json:"additional_force"`
	TotalForce      float64       `json:"total_force"`
	UserInput       float64       `json:"user_input"`
	TargetPosition  float64       `json:"target_position"`
	Displacement    float64       `json:"displacement"` // |target - actual|
	PVTEvent        PVTEvent      `json:"pvt_event"`
	PVTRT           *float64      `json:"pvt_rt,omitempty"` // seconds; response events only
}

// ForceTolerance is the slack allowed when checking that TotalForce equals
// BuffetingForce + AdditionalForce. The log does not enforce the identity on
// write; VerifyForces applies it after the fact.
const ForceTolerance = 1e-9
