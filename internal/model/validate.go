package model

import (
	"math"
	"strings"
)

// Handedness values accepted at enrollment.
var ValidHandedness = []string{"left", "right", "ambidextrous"}

// ValidateEnrollment checks the caller-supplied fields of a registration.
// The surrogate ID and creation timestamp are server-assigned and not
// validated here.
func ValidateEnrollment(userhash, gender string, age int, handedness string) error {
	if strings.TrimSpace(userhash) == "" {
		return NewValidationError("userhash", "userhash must be non-empty")
	}
	if strings.TrimSpace(gender) == "" {
		return NewValidationError("gender", "gender must be non-empty")
	}
	if age < 0 {
		return NewValidationError("age", "age must be non-negative")
	}
	if !isValidHandedness(handedness) {
		return NewValidationError("handedness", "handedness must be one of left, right, ambidextrous")
	}
	return nil
}

func isValidHandedness(h string) bool {
	for _, v := range ValidHandedness {
		if h == v {
			return true
		}
	}
	return false
}

// ValidateTrialCoordinate checks block and trial numbering.
func ValidateTrialCoordinate(blockNum, trialNum int) error {
	if blockNum < 0 {
		return NewValidationError("block_num", "block_num must be non-negative")
	}
	if trialNum < 0 {
		return NewValidationError("trial_num", "trial_num must be non-negative")
	}
	return nil
}

// Validate checks a sample's own fields. Cross-record invariants (participant
// existence, timestamp monotonicity) are enforced by the recorder, not here.
func (s *Sample) Validate() error {
	if s.Timestamp < 0 {
		return NewValidationError("timestamp", "timestamp must be non-negative")
	}
	if !s.PVTEvent.Valid() {
		return NewValidationError("pvt_event", "unknown PVT event kind")
	}
	if s.PVTRT != nil && s.PVTEvent != PVTResponse {
		return NewValidationError("pvt_rt", "reaction time present without a PVT response")
	}
	if s.PVTRT != nil && (*s.PVTRT < 0 || math.IsNaN(*s.PVTRT) || math.IsInf(*s.PVTRT, 0)) {
		return NewValidationError("pvt_rt", "reaction time must be a non-negative finite number")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"buffeting_force", s.BuffetingForce},
		{"additional_force", s.AdditionalForce},
		{"total_force", s.TotalForce},
		{"user_input", s.UserInput},
		{"target_position", s.TargetPosition},
		{"displacement", s.Displacement},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return NewValidationError(f.name, "value must be finite")
		}
	}
	return nil
}

// ForcesConsistent reports whether TotalForce matches the sum of the
// component forces within ForceTolerance.
func (s *Sample) ForcesConsistent() bool {
	return math.Abs(s.TotalForce-(s.BuffetingForce+s.AdditionalForce)) <= ForceTolerance
}
