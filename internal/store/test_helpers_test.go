package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilab/comptrack/internal/model"
)

// createTestStore creates a fresh on-disk store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// enroll inserts a participant and returns its ID.
func enroll(t *testing.T, s *Store) model.ParticipantID {
	t.Helper()
	id, err := s.InsertParticipant(context.Background(), model.Participant{
		UserHash:   "abc123",
		Gender:     "F",
		Age:        24,
		Handedness: "right",
		Created:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertParticipant() failed: %v", err)
	}
	return id
}

// testSample builds a sample with consistent forces at the given timestamp.
func testSample(id model.SampleID, pid model.ParticipantID, ts float64) model.Sample {
	return model.Sample{
		ID:              id,
		ParticipantID:   pid,
		Timestamp:       ts,
		BuffetingForce:  0.5,
		AdditionalForce: 0.25,
		TotalForce:      0.75,
		UserInput:       -1.5,
		TargetPosition:  960,
		Displacement:    12.5,
		PVTEvent:        model.PVTNone,
	}
}
