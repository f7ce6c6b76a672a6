package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Thread is the persistent conversation record for one unordered pair of
// participants. Exactly one thread exists per pair; its id is a pure
// function of the pair, so no central counter or coordination is needed.
type Thread struct {
	ID              string    `db:"id"`
	ParticipantLow  string    `db:"participant_low"`
	ParticipantHigh string    `db:"participant_high"`
	Participants    []string  `db:"participants"`
	CreatedAt       time.Time `db:"created_at"`
}

// CanonicalPair orders two participant ids lexicographically so thread
// identity is independent of call order.
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ThreadID derives the stable, collision-resistant thread identifier for the
// pair: lowercase hex SHA-256 of "low:high". ThreadID(a,b) == ThreadID(b,a).
func ThreadID(a, b string) string {
	low, high := CanonicalPair(a, b)
	sum := sha256.Sum256([]byte(low + ":" + high))
	return hex.EncodeToString(sum[:])
}

// NewThread builds the thread record for a pair, canonicalized.
func NewThread(a, b string, createdAt time.Time) Thread {
	low, high := CanonicalPair(a, b)
	return Thread{
		ID:              ThreadID(a, b),
		ParticipantLow:  low,
		ParticipantHigh: high,
		Participants:    []string{low, high},
		CreatedAt:       createdAt,
	}
}
