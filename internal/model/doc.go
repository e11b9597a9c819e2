// Package model defines the record types shared across the recording core:
// participants, trials, and continuous tracking samples, along with the
// validation rules and the error taxonomy that every component surfaces.
//
// Records are write-once. There are deliberately no mutators here and no
// component in this repository exposes an update or delete operation on
// persisted records - experimental provenance depends on the log being
// append-only.
package model
