package recorder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

// OrderingPolicy controls how a session treats a sample whose timestamp
// regresses below the last accepted timestamp.
type OrderingPolicy int

const (
	// OrderingReject rejects regressing samples with an ORDERING error.
	// This is the default.
	OrderingReject OrderingPolicy = iota
	// OrderingWarn accepts regressing samples and logs a warning.
	OrderingWarn
)

// Defaults tuned for a 60 Hz tracking loop: a full batch roughly every
// second, with the interval as a latency bound when sampling is sparse.
const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = 200 * time.Millisecond
	DefaultFlushTimeout  = 5 * time.Second
	DefaultFlushRetries  = 3
	DefaultRetryBackoff  = 50 * time.Millisecond
)

// Recorder owns the recording sessions for one experiment process.
//
// Sessions live in a concurrent map keyed by participant, so appends for
// different participants proceed without a shared lock. The recorder is
// the single writer of comp_track_data rows; all sample IDs come from
// its logical clock.
type Recorder struct {
	store    *store.Store
	clock    *Clock
	logger   *slog.Logger
	sessions *xsync.Map[model.ParticipantID, *Session]

	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration
	flushRetries  int
	retryBackoff  time.Duration
	ordering      OrderingPolicy
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBatchSize sets how many buffered samples trigger a flush.
func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum time a buffered sample waits before
// being flushed, regardless of batch size.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithFlushTimeout bounds each batch write attempt.
func WithFlushTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushTimeout = d
		}
	}
}

// WithFlushRetries sets how many times a failed batch write is retried
// before the batch is parked for replay.
func WithFlushRetries(n int) Option {
	return func(r *Recorder) {
		if n >= 0 {
			r.flushRetries = n
		}
	}
}

// WithRetryBackoff sets the initial backoff between write retries.
// The backoff doubles on each attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.retryBackoff = d
		}
	}
}

// WithOrderingPolicy selects rejection or warn-and-accept for samples
// whose timestamps regress.
func WithOrderingPolicy(p OrderingPolicy) Option {
	return func(r *Recorder) {
		r.ordering = p
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Recorder backed by the given store. The logical clock is
// seeded from the highest persisted sample ID, so IDs stay unique across
// process restarts.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Recorder, error) {
	maxID, err := s.MaxSampleID(ctx)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		store:         s,
		clock:         NewClockAt(int64(maxID)),
		logger:        slog.Default(),
		sessions:      xsync.NewMap[model.ParticipantID, *Session](),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		flushTimeout:  DefaultFlushTimeout,
		flushRetries:  DefaultFlushRetries,
		retryBackoff:  DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Session returns the recording session for a participant, creating it on
// first use. Creation verifies the participant exists and seeds the
// ordering state from the participant's last persisted timestamp, so a
// resumed session still rejects regressing samples.
func (r *Recorder) Session(ctx context.Context, id model.ParticipantID) (*Session, error) {
	if s, ok := r.sessions.Load(id); ok {
		return s, nil
	}

	ok, err := r.store.HasParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewReferenceError(id)
	}

	lastTS, hasLast, err := r.store.LastTimestamp(ctx, id)
	if err != nil {
		return nil, err
	}

	s := newSession(r, id, lastTS, hasLast)
	actual, loaded := r.sessions.LoadOrStore(id, s)
	if loaded {
		// Lost the creation race. The loser never started its flusher,
		// so it can simply be dropped.
		return actual, nil
	}
	s.start()
	return s, nil
}

// Append records one sample for a participant, creating the session if
// needed. It returns the sample's assigned ID.
func (r *Recorder) Append(ctx context.Context, id model.ParticipantID, sample model.Sample) (model.SampleID, error) {
	s, err := r.Session(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Append(ctx, sample)
}

// Flush synchronously drains the participant's buffer. It is a no-op for
// participants without a session.
func (r *Recorder) Flush(ctx context.Context, id model.ParticipantID) error {
	s, ok := r.sessions.Load(id)
	if !ok {
		return nil
	}
	return s.Flush(ctx)
}

// CloseSession closes the participant's session, draining its buffer.
// Closing a participant without a session is a no-op.
func (r *Recorder) CloseSession(ctx context.Context, id model.ParticipantID) error {
	s, ok := r.sessions.Load(id)
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// Close closes every open session and reports any drain failures.
func (r *Recorder) Close(ctx context.Context) error {
	var errs []error
	r.sessions.Range(func(_ model.ParticipantID, s *Session) bool {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// QueryRange streams persisted samples for a participant whose timestamps
// fall in the inclusive range [from, to], ordered by timestamp then ID.
// Buffered samples are not visible until flushed.
func (r *Recorder) QueryRange(ctx context.Context, id model.ParticipantID, from, to float64) (*store.SampleCursor, error) {
	return r.store.SampleRange(ctx, id, from, to)
}

// LastSampleID reports the most recently assigned sample ID.
func (r *Recorder) LastSampleID() model.SampleID {
	return model.SampleID(r.clock.Current())
}
