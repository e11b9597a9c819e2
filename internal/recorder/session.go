package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vigilab/comptrack/internal/model"
)

// SessionState describes where a session is in its lifecycle.
type SessionState int

const (
	// StateIdle means the session exists but has not buffered any samples yet.
	StateIdle SessionState = iota
	// StateRecording means the session is accepting samples.
	StateRecording
	// StateFlushing means a batch write is in flight. Appends are still
	// accepted; they land in the buffer behind the in-flight batch.
	StateFlushing
	// StateClosed means the session has been closed. Appends are rejected.
	StateClosed
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFlushing:
		return "flushing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Session is a per-participant recording session.
//
// A session buffers samples in memory and flushes them to the store in
// transactional batches, either when the buffer reaches the configured
// batch size or when the flush interval elapses. All mutable state is
// guarded by mu; the flusher goroutine is the only writer to the store
// for this session.
//
// Thread-safety model:
//   - Append(): safe from any goroutine
//   - Flush(), Close(): safe from any goroutine
//   - run(): exactly one goroutine, started by the Recorder
type Session struct {
	rec         *Recorder
	participant model.ParticipantID

	// flushMu serializes flushes end to end. The flusher goroutine and
	// explicit Flush/Close callers all take it, so at most one batch is
	// ever in flight and a failed batch cannot be overwritten by a
	// concurrent failure before it is replayed.
	flushMu sync.Mutex

	mu      sync.Mutex
	state   SessionState
	buf     []model.Sample
	pending []model.Sample // failed batch retained for replay, always flushed first
	failErr error
	lastTS  float64
	hasLast bool

	signal  chan struct{} // signals batch-size reached (buffered, size 1)
	closing chan struct{}
	drained chan struct{}

	closeOnce sync.Once
}

func newSession(rec *Recorder, id model.ParticipantID, lastTS float64, hasLast bool) *Session {
	return &Session{
		rec:         rec,
		participant: id,
		state:       StateIdle,
		buf:         make([]model.Sample, 0, rec.batchSize),
		lastTS:      lastTS,
		hasLast:     hasLast,
		signal:      make(chan struct{}, 1),
		closing:     make(chan struct{}),
		drained:     make(chan struct{}),
	}
}

func (s *Session) start() {
	go s.run()
}

// Participant returns the participant this session records for.
func (s *Session) Participant() model.ParticipantID {
	return s.participant
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffered returns the number of samples held in memory, including any
// failed batch awaiting replay.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.buf)
}

// Err returns the sticky persistence error from the last failed flush,
// or nil. A successful Flush clears it.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

// FailedBatch returns a copy of the samples retained after a failed flush.
// The samples keep their assigned IDs, so a replay writes the same rows
// the original acknowledgement promised.
func (s *Session) FailedBatch() []model.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := make([]model.Sample, len(s.pending))
	copy(out, s.pending)
	return out
}

// Append validates the sample, stamps it with a fresh sample ID, and
// buffers it for the next flush. The returned ID is the sample's durable
// identity once flushed.
//
// Timestamps must be monotonically non-decreasing within the session.
// Under the default ordering policy a regressing timestamp is rejected
// with an ORDERING error and the session state is untouched; under
// OrderingWarn the sample is accepted and a warning is logged.
func (s *Session) Append(ctx context.Context, sample model.Sample) (model.SampleID, error) {
	if err := sample.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return 0, model.NewSessionClosedError(s.participant)
	}
	if s.failErr != nil {
		// A batch is stranded in memory. Accepting more samples would
		// grow an unbounded buffer behind a broken store, so surface
		// the failure until Flush succeeds.
		return 0, s.failErr
	}

	if s.hasLast && sample.Timestamp < s.lastTS {
		if s.rec.ordering == OrderingReject {
			return 0, model.NewOrderingError(s.participant, sample.Timestamp, s.lastTS)
		}
		s.rec.logger.Warn("accepting out-of-order sample",
			"participant", s.participant,
			"timestamp", sample.Timestamp,
			"last_timestamp", s.lastTS)
	}

	sample.ID = model.SampleID(s.rec.clock.Next())
	sample.ParticipantID = s.participant
	s.buf = append(s.buf, sample)

	if !s.hasLast || sample.Timestamp >= s.lastTS {
		s.lastTS = sample.Timestamp
		s.hasLast = true
	}
	if s.state == StateIdle {
		s.state = StateRecording
	}

	if len(s.buf) >= s.rec.batchSize {
		// Non-blocking - buffer of 1 coalesces multiple signals.
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}

	return sample.ID, nil
}

// Flush synchronously writes all buffered samples, including any batch
// retained from a previous failure. On success the sticky persistence
// error is cleared and appends resume.
func (s *Session) Flush(ctx context.Context) error {
	return s.flush(ctx)
}

// Close stops the session. The flusher drains the buffer one final time,
// so every acknowledged sample is either persisted or reported through
// the returned error. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.closing) })

	select {
	case <-s.drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	if alreadyClosed {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

// run is the session's flusher loop. It wakes on batch-size signals, on
// the flush interval ticker, and on close, and drains the buffer each time.
func (s *Session) run() {
	ticker := time.NewTicker(s.rec.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.signal:
			s.flushLogged()
		case <-ticker.C:
			s.flushLogged()
		case <-s.closing:
			s.flushLogged()
			close(s.drained)
			return
		}
	}
}

func (s *Session) flushLogged() {
	if err := s.flush(context.Background()); err != nil {
		s.rec.logger.Error("flush failed, batch retained for replay",
			"participant", s.participant,
			"error", err)
	}
}

// flush drains pending plus buffered samples and writes them in one
// transaction. On failure the whole batch is parked in pending, ahead of
// anything appended while the write was in flight, so replay preserves
// append order. Flushes are serialized under flushMu so a concurrent
// failure cannot drop a batch already parked for replay.
func (s *Session) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.takeLocked()
	if len(batch) == 0 {
		err := s.failErr
		s.mu.Unlock()
		return err
	}
	if s.state == StateRecording {
		s.state = StateFlushing
	}
	s.mu.Unlock()

	err := s.writeBatch(ctx, batch)

	s.mu.Lock()
	if err != nil {
		s.pending = batch
		s.failErr = model.NewPersistenceError(
			fmt.Sprintf("flushing %d samples for participant %d", len(batch), s.participant), err)
		err = s.failErr
	} else {
		s.failErr = nil
	}
	if s.state == StateFlushing {
		s.state = StateRecording
	}
	s.mu.Unlock()
	return err
}

func (s *Session) takeLocked() []model.Sample {
	n := len(s.pending) + len(s.buf)
	if n == 0 {
		return nil
	}
	batch := make([]model.Sample, 0, n)
	batch = append(batch, s.pending...)
	batch = append(batch, s.buf...)
	s.pending = nil
	s.buf = s.buf[:0]
	return batch
}

// writeBatch attempts the transactional insert with bounded retries and
// doubling backoff. Reference errors are not retried - a missing
// participant row will not appear by waiting.
func (s *Session) writeBatch(ctx context.Context, batch []model.Sample) error {
	backoff := s.rec.retryBackoff
	var err error
	for attempt := 0; attempt <= s.rec.flushRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.rec.flushTimeout)
		err = s.rec.store.InsertSampleBatch(attemptCtx, batch)
		cancel()

		if err == nil {
			return nil
		}
		if model.IsReference(err) || model.IsValidation(err) {
			return err
		}
	}
	return err
}
