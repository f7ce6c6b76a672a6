package chat

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestCanonicalPair(t *testing.T) {
	low, high := CanonicalPair("bob", "alice")
	assert.Equal(t, "alice", low)
	assert.Equal(t, "bob", high)

	low, high = CanonicalPair("alice", "bob")
	assert.Equal(t, "alice", low)
	assert.Equal(t, "bob", high)

	low, high = CanonicalPair("same", "same")
	assert.Equal(t, "same", low)
	assert.Equal(t, "same", high)
}

func TestThreadIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ThreadID("alice", "bob"), ThreadID("bob", "alice"))
	assert.NotEqual(t, ThreadID("alice", "bob"), ThreadID("alice", "carol"))
}

func TestThreadIDIsLowercaseHexSHA256(t *testing.T) {
	id := ThreadID("user-1", "user-2")
	assert.Regexp(t, hexID, id)

	// Stable across processes and restarts.
	assert.Equal(t, id, ThreadID("user-1", "user-2"))
}

func TestThreadIDSeparatorPreventsAmbiguity(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	assert.NotEqual(t, ThreadID("ab", "c"), ThreadID("a", "bc"))
}

func TestNewThreadCanonicalizes(t *testing.T) {
	now := time.Now().UTC()
	th := NewThread("zeta", "alpha", now)

	assert.Equal(t, ThreadID("alpha", "zeta"), th.ID)
	assert.Equal(t, "alpha", th.ParticipantLow)
	assert.Equal(t, "zeta", th.ParticipantHigh)
	assert.Equal(t, []string{"alpha", "zeta"}, th.Participants)
	assert.Equal(t, now, th.CreatedAt)
}
