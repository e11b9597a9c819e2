// Package recorder implements the continuous sample log: per-participant
// recording sessions that buffer high-rate tracking samples and flush them
// to the store in transactional batches.
//
// Each session owns its own buffer, logical ordering state, and flusher
// goroutine, so concurrent sessions for different participants never
// contend on a shared lock. Sample IDs come from a single process-wide
// logical clock, which keeps IDs unique and monotonic across sessions.
package recorder
