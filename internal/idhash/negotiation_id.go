package idhash

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewNegotiationID returns a time-ordered ULID for a negotiation session.
// Unlike suggestion IDs these are not derived from inputs: two sessions with
// identical parameters are still distinct negotiations.
func NewNegotiationID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
