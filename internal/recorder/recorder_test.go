package recorder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "comptrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func enroll(t *testing.T, st *store.Store) model.ParticipantID {
	t.Helper()
	id, err := st.InsertParticipant(context.Background(), model.Participant{
		UserHash:   fmt.Sprintf("hash-%s", t.Name()),
		Gender:     "f",
		Age:        29,
		Handedness: "right",
		Created:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func sampleAt(ts float64) model.Sample {
	return model.Sample{
		Timestamp:       ts,
		BuffetingForce:  0.5,
		AdditionalForce: 0.25,
		TotalForce:      0.75,
		UserInput:       0.1,
		TargetPosition:  0.0,
		Displacement:    0.1,
		PVTEvent:        model.PVTNone,
	}
}

// newTestRecorder builds a recorder with a long flush interval so tests
// control flushing explicitly unless they opt into timing behavior.
func newTestRecorder(t *testing.T, st *store.Store, opts ...Option) *Recorder {
	t.Helper()
	base := []Option{
		WithFlushInterval(time.Hour),
		WithBatchSize(1000),
	}
	r, err := New(context.Background(), st, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func TestRecorder_AppendAndQueryRange(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)
	rec := newTestRecorder(t, st)

	const n = 100
	ids := make([]model.SampleID, 0, n)
	for i := 0; i < n; i++ {
		id, err := rec.Append(ctx, pid, sampleAt(float64(i)*0.016))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, rec.Flush(ctx, pid))

	cur, err := rec.QueryRange(ctx, pid, 0, float64(n))
	require.NoError(t, err)
	defer cur.Close()

	var got []model.Sample
	for cur.Next() {
		got = append(got, cur.Sample())
	}
	require.NoError(t, cur.Err())
	require.Len(t, got, n)

	for i, s := range got {
		assert.Equal(t, ids[i], s.ID, "samples should come back in append order")
		assert.Equal(t, pid, s.ParticipantID)
		assert.InDelta(t, float64(i)*0.016, s.Timestamp, 1e-12)
	}
}

func TestRecorder_SampleIDsAssignedBeforeFlush(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)
	rec := newTestRecorder(t, st)

	id1, err := rec.Append(ctx, pid, sampleAt(0.0))
	require.NoError(t, err)
	id2, err := rec.Append(ctx, pid, sampleAt(0.016))
	require.NoError(t, err)

	assert.Greater(t, id2, id1, "IDs are assigned in append order")
	assert.Equal(t, id2, rec.LastSampleID())

	s, err := rec.Session(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Buffered(), "nothing flushed yet")
}

func TestRecorder_ClockResumesAboveFlushedIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)

	rec, err := New(ctx, st, WithFlushInterval(time.Hour), WithBatchSize(1000))
	require.NoError(t, err)
	var lastID model.SampleID
	for i := 0; i < 5; i++ {
		lastID, err = rec.Append(ctx, pid, sampleAt(float64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, rec.Close(ctx))

	// A fresh recorder over the same store must not reuse IDs.
	rec2, err := New(ctx, st, WithFlushInterval(time.Hour), WithBatchSize(1000))
	require.NoError(t, err)
	defer rec2.Close(ctx)

	id, err := rec2.Append(ctx, pid, sampleAt(10.0))
	require.NoError(t, err)
	assert.Greater(t, id, lastID)
}

func TestRecorder_UnknownParticipant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	rec := newTestRecorder(t, st)

	_, err := rec.Append(ctx, model.ParticipantID(9999), sampleAt(0.0))
	require.Error(t, err)
	assert.True(t, model.IsReference(err), "expected REFERENCE, got %v", err)
}

func TestRecorder_BatchSizeTriggersFlush(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)
	rec := newTestRecorder(t, st, WithBatchSize(10))

	for i := 0; i < 10; i++ {
		_, err := rec.Append(ctx, pid, sampleAt(float64(i)))
		require.NoError(t, err)
	}

	// The flusher runs asynchronously; poll until the batch lands.
	require.Eventually(t, func() bool {
		n, err := st.CountSamples(ctx, pid)
		return err == nil && n == 10
	}, 2*time.Second, 10*time.Millisecond, "full batch should flush without waiting for the interval")
}

func TestRecorder_FlushIntervalTriggersFlush(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)
	rec := newTestRecorder(t, st, WithFlushInterval(20*time.Millisecond))

	_, err := rec.Append(ctx, pid, sampleAt(0.0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := st.CountSamples(ctx, pid)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond, "a lone sample should flush on the interval")
}

func TestRecorder_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	rec := newTestRecorder(t, st)

	const participants = 8
	const perParticipant = 50

	pids := make([]model.ParticipantID, participants)
	for i := range pids {
		id, err := st.InsertParticipant(ctx, model.Participant{
			UserHash:   fmt.Sprintf("hash-concurrent-%d", i),
			Gender:     "m",
			Age:        30 + i,
			Handedness: "left",
			Created:    time.Now().UTC(),
		})
		require.NoError(t, err)
		pids[i] = id
	}

	var wg sync.WaitGroup
	errs := make(chan error, participants*perParticipant)
	for _, pid := range pids {
		wg.Add(1)
		go func(pid model.ParticipantID) {
			defer wg.Done()
			for i := 0; i < perParticipant; i++ {
				if _, err := rec.Append(ctx, pid, sampleAt(float64(i))); err != nil {
					errs <- err
				}
			}
		}(pid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append failed: %v", err)
	}

	require.NoError(t, rec.Close(ctx))

	for _, pid := range pids {
		n, err := st.CountSamples(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, int64(perParticipant), n, "participant %d", pid)

		samples, err := st.SamplesInRange(ctx, pid, 0, float64(perParticipant))
		require.NoError(t, err)
		for i := 1; i < len(samples); i++ {
			assert.Greater(t, samples[i].ID, samples[i-1].ID,
				"per-participant IDs must stay in append order")
		}
	}
}

func TestRecorder_CloseSessionIsTerminal(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pid := enroll(t, st)
	rec := newTestRecorder(t, st)

	_, err := rec.Append(ctx, pid, sampleAt(0.0))
	require.NoError(t, err)
	require.NoError(t, rec.CloseSession(ctx, pid))

	_, err = rec.Append(ctx, pid, sampleAt(1.0))
	require.Error(t, err)
	assert.True(t, model.IsSessionClosed(err), "expected SESSION_CLOSED, got %v", err)
}

func TestRecorder_CloseUnknownSessionNoop(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	rec := newTestRecorder(t, st)

	require.NoError(t, rec.CloseSession(ctx, model.ParticipantID(123)))
	require.NoError(t, rec.Flush(ctx, model.ParticipantID(123)))
}
