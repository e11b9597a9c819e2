package store

import (
	"context"
	"testing"

	"github.com/vigilab/comptrack/internal/model"
)

func TestGetParticipant_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetParticipant(context.Background(), 42)
	if !model.IsReference(err) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
}

func TestHasParticipant(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ok, err := s.HasParticipant(ctx, 42)
	if err != nil {
		t.Fatalf("HasParticipant() failed: %v", err)
	}
	if ok {
		t.Error("expected false for unknown participant")
	}

	pid := enroll(t, s)
	ok, err = s.HasParticipant(ctx, pid)
	if err != nil {
		t.Fatalf("HasParticipant() failed: %v", err)
	}
	if !ok {
		t.Error("expected true for enrolled participant")
	}
}

func TestListTrials_OrderedByCoordinate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	// Insert out of order; listing must sort by (block, trial).
	coords := [][2]int{{2, 1}, {1, 2}, {1, 1}, {2, 2}}
	for _, c := range coords {
		if _, err := s.InsertTrial(ctx, model.Trial{
			ParticipantID: pid, BlockNum: c[0], TrialNum: c[1],
		}); err != nil {
			t.Fatalf("InsertTrial(%v) failed: %v", c, err)
		}
	}

	trials, err := s.ListTrials(ctx, pid)
	if err != nil {
		t.Fatalf("ListTrials() failed: %v", err)
	}

	want := [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}}
	if len(trials) != len(want) {
		t.Fatalf("expected %d trials, got %d", len(want), len(trials))
	}
	for i, w := range want {
		if trials[i].BlockNum != w[0] || trials[i].TrialNum != w[1] {
			t.Errorf("trials[%d] = (%d,%d), expected (%d,%d)",
				i, trials[i].BlockNum, trials[i].TrialNum, w[0], w[1])
		}
	}
}

func TestListTrials_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	pid := enroll(t, s)

	trials, err := s.ListTrials(context.Background(), pid)
	if err != nil {
		t.Fatalf("ListTrials() failed: %v", err)
	}
	if trials == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(trials) != 0 {
		t.Errorf("expected no trials, got %d", len(trials))
	}
}

func TestSampleRange_OrderAndBounds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	var batch []model.Sample
	for i := 0; i < 10; i++ {
		batch = append(batch, testSample(model.SampleID(i+1), pid, float64(i)*0.1))
	}
	if err := s.InsertSampleBatch(ctx, batch); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	// Inclusive bounds: [0.2, 0.5] covers four samples.
	samples, err := s.SamplesInRange(ctx, pid, 0.2, 0.5)
	if err != nil {
		t.Fatalf("SamplesInRange() failed: %v", err)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp < samples[i-1].Timestamp {
			t.Errorf("samples out of order at %d: %v < %v",
				i, samples[i].Timestamp, samples[i-1].Timestamp)
		}
	}
}

func TestSampleRange_Restartable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	var batch []model.Sample
	for i := 0; i < 5; i++ {
		batch = append(batch, testSample(model.SampleID(i+1), pid, float64(i)))
	}
	if err := s.InsertSampleBatch(ctx, batch); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	first, err := s.SamplesInRange(ctx, pid, 0, 4)
	if err != nil {
		t.Fatalf("first SamplesInRange() failed: %v", err)
	}
	second, err := s.SamplesInRange(ctx, pid, 0, 4)
	if err != nil {
		t.Fatalf("second SamplesInRange() failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("restarted query returned %d samples, expected %d", len(second), len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("restarted query diverges at %d: %d != %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSampleRange_CrossParticipantIsolation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p1 := enroll(t, s)
	p2 := enroll(t, s)

	if err := s.InsertSampleBatch(ctx, []model.Sample{
		testSample(1, p1, 0.0),
		testSample(2, p2, 0.0),
		testSample(3, p1, 0.1),
	}); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	samples, err := s.SamplesInRange(ctx, p1, 0, 1)
	if err != nil {
		t.Fatalf("SamplesInRange() failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples for p1, got %d", len(samples))
	}
	for _, sm := range samples {
		if sm.ParticipantID != p1 {
			t.Errorf("sample %d belongs to participant %d", sm.ID, sm.ParticipantID)
		}
	}
}

func TestSampleRoundTrip_PVTFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	rt := 0.412
	withRT := testSample(1, pid, 0.0)
	withRT.PVTEvent = model.PVTResponse
	withRT.PVTRT = &rt

	timeout := testSample(2, pid, 0.1)
	timeout.PVTEvent = model.PVTTimeout

	plain := testSample(3, pid, 0.2)

	if err := s.InsertSampleBatch(ctx, []model.Sample{withRT, timeout, plain}); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	samples, err := s.SamplesInRange(ctx, pid, 0, 1)
	if err != nil {
		t.Fatalf("SamplesInRange() failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}

	if samples[0].PVTEvent != model.PVTResponse || samples[0].PVTRT == nil || *samples[0].PVTRT != rt {
		t.Errorf("response sample mismatch: %+v", samples[0])
	}
	if samples[1].PVTEvent != model.PVTTimeout || samples[1].PVTRT != nil {
		t.Errorf("timeout sample mismatch: %+v", samples[1])
	}
	if samples[2].PVTEvent != model.PVTNone || samples[2].PVTRT != nil {
		t.Errorf("plain sample mismatch: %+v", samples[2])
	}
}

func TestLastTimestamp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	_, ok, err := s.LastTimestamp(ctx, pid)
	if err != nil {
		t.Fatalf("LastTimestamp() failed: %v", err)
	}
	if ok {
		t.Error("expected no timestamp for empty log")
	}

	if err := s.InsertSampleBatch(ctx, []model.Sample{
		testSample(1, pid, 0.5),
		testSample(2, pid, 1.5),
	}); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	ts, ok, err := s.LastTimestamp(ctx, pid)
	if err != nil {
		t.Fatalf("LastTimestamp() failed: %v", err)
	}
	if !ok || ts != 1.5 {
		t.Errorf("LastTimestamp() = (%v, %v), expected (1.5, true)", ts, ok)
	}
}

func TestMaxSampleID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	max, err := s.MaxSampleID(ctx)
	if err != nil {
		t.Fatalf("MaxSampleID() failed: %v", err)
	}
	if max != 0 {
		t.Errorf("expected 0 for empty log, got %d", max)
	}

	if err := s.InsertSampleBatch(ctx, []model.Sample{testSample(37, pid, 0.0)}); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	max, err = s.MaxSampleID(ctx)
	if err != nil {
		t.Fatalf("MaxSampleID() failed: %v", err)
	}
	if max != 37 {
		t.Errorf("expected 37, got %d", max)
	}
}

func TestVerifyForces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	pid := enroll(t, s)

	good := testSample(1, pid, 0.0)
	bad := testSample(2, pid, 0.1)
	bad.TotalForce = bad.BuffetingForce + bad.AdditionalForce + 0.5

	if err := s.InsertSampleBatch(ctx, []model.Sample{good, bad}); err != nil {
		t.Fatalf("InsertSampleBatch() failed: %v", err)
	}

	violations, err := s.VerifyForces(ctx, pid, model.ForceTolerance)
	if err != nil {
		t.Fatalf("VerifyForces() failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if violations[0].SampleID != 2 {
		t.Errorf("expected violation on sample 2, got %d", violations[0].SampleID)
	}
}
