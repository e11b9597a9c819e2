// Package pvt implements the psychomotor vigilance probe: onset schedule
// generation and performance metrics over recorded probe outcomes.
package pvt

import (
	"math/rand"

	"github.com/vigilab/comptrack/internal/model"
)

// Default inter-trial interval bounds in seconds between probe onsets.
const (
	DefaultMinITI = 2
	DefaultMaxITI = 10
)

// Timeout is the probe deadline. A probe with no response inside this
// window is recorded as a timeout.
const Timeout = 1.0

// ScheduleConfig describes how to generate a probe onset schedule.
type ScheduleConfig struct {
	// Duration is the session length in seconds.
	Duration int
	// MinITI and MaxITI bound the inter-trial interval draws, inclusive.
	MinITI int
	MaxITI int
	// Rand supplies the randomness. Nil uses the global source; tests
	// pass a seeded source for determinism.
	Rand *rand.Rand
}

// GenerateSchedule returns the ascending onset times, in seconds, at
// which probes fire during a session.
//
// Intervals are drawn uniformly from [MinITI, MaxITI]. Draws continue
// until their sum covers the session duration, then the cumulative sums
// become the onsets. The last onset may overshoot the duration by up to
// one interval; callers stop probing when the session ends, so the
// overshoot is harmless.
func GenerateSchedule(cfg ScheduleConfig) ([]float64, error) {
	if cfg.Duration <= 0 {
		return nil, model.NewValidationError("duration", "duration must be positive")
	}
	if cfg.MinITI == 0 && cfg.MaxITI == 0 {
		cfg.MinITI, cfg.MaxITI = DefaultMinITI, DefaultMaxITI
	}
	if cfg.MinITI <= 0 || cfg.MaxITI < cfg.MinITI {
		return nil, model.NewValidationError("iti", "ITI bounds must satisfy 0 < min <= max")
	}

	intn := rand.Intn
	if cfg.Rand != nil {
		intn = cfg.Rand.Intn
	}
	span := cfg.MaxITI - cfg.MinITI + 1

	var intervals []int
	sum := 0
	for sum < cfg.Duration {
		iti := cfg.MinITI + intn(span)
		intervals = append(intervals, iti)
		sum += iti
	}

	onsets := make([]float64, len(intervals))
	acc := 0
	for i, iti := range intervals {
		acc += iti
		onsets[i] = float64(acc)
	}
	return onsets, nil
}
