// Package registry implements participant enrollment and lookup.
//
// Participants are append-only: a row is written once at enrollment and
// never mutated. The registry validates demographics, assigns the
// server-side creation timestamp, and hands the row to the store.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vigilab/comptrack/internal/model"
	"github.com/vigilab/comptrack/internal/store"
)

// HashGenerator mints opaque anonymized participant identifiers.
// Implemented by UUIDv7Generator (production) and fixed generators (tests).
type HashGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 userhashes.
//
// UUIDv7 embeds a timestamp in the most significant bits, so hashes sort
// by enrollment time without leaking any subject identity.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Registry is the participant enrollment surface.
type Registry struct {
	store   *store.Store
	hashGen HashGenerator
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithHashGenerator replaces the userhash generator. Used by tests to get
// deterministic hashes.
func WithHashGenerator(g HashGenerator) Option {
	return func(r *Registry) {
		if g != nil {
			r.hashGen = g
		}
	}
}

// WithNow replaces the clock used for the Created timestamp.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Registry backed by the given store.
func New(s *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		hashGen: UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enrollment is the caller-supplied portion of a registration. A blank
// UserHash is filled by the registry's generator.
type Enrollment struct {
	UserHash   string
	Gender     string
	Age        int
	Handedness string
}

// Register validates the enrollment, mints a userhash if the caller did
// not supply one, stamps the creation time, and persists the participant.
// It returns the stored row including the assigned ID.
func (r *Registry) Register(ctx context.Context, e Enrollment) (model.Participant, error) {
	if e.UserHash == "" {
		e.UserHash = r.hashGen.Generate()
	}
	if err := model.ValidateEnrollment(e.UserHash, e.Gender, e.Age, e.Handedness); err != nil {
		return model.Participant{}, err
	}

	p := model.Participant{
		UserHash:   e.UserHash,
		Gender:     e.Gender,
		Age:        e.Age,
		Handedness: e.Handedness,
		Created:    r.now().UTC(),
	}
	id, err := r.store.InsertParticipant(ctx, p)
	if err != nil {
		return model.Participant{}, err
	}
	p.ID = id
	return p, nil
}

// Lookup returns the participant with the given ID. A missing participant
// is a REFERENCE error.
func (r *Registry) Lookup(ctx context.Context, id model.ParticipantID) (model.Participant, error) {
	return r.store.GetParticipant(ctx, id)
}

// Exists reports whether a participant with the given ID is enrolled.
func (r *Registry) Exists(ctx context.Context, id model.ParticipantID) (bool, error) {
	return r.store.HasParticipant(ctx, id)
}
