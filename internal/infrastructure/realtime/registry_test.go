package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
}

func (f *fakeSender) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("socket closed")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSender) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	r := NewRegistry()
	phone := &fakeSender{}
	laptop := &fakeSender{}
	r.Register("alice", phone)
	r.Register("alice", laptop)

	delivered := r.SendToUser("alice", []byte("hi"))

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, phone.received())
	assert.Equal(t, 1, laptop.received())
}

func TestSendToUserSkipsOtherUsers(t *testing.T) {
	r := NewRegistry()
	bob := &fakeSender{}
	r.Register("bob", bob)

	assert.Equal(t, 0, r.SendToUser("alice", []byte("hi")))
	assert.Equal(t, 0, bob.received())
}

func TestFailingSenderDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	dead := &fakeSender{fail: true}
	live := &fakeSender{}
	r.Register("alice", dead)
	r.Register("alice", live)

	delivered := r.SendToUser("alice", []byte("hi"))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, live.received())
}

func TestUnregisterPrunesEmptySets(t *testing.T) {
	r := NewRegistry()
	s := &fakeSender{}
	r.Register("alice", s)
	assert.Equal(t, 1, r.CountForUser("alice"))

	r.Unregister("alice", s)
	assert.Equal(t, 0, r.CountForUser("alice"))
	assert.Equal(t, 0, r.SendToUser("alice", []byte("hi")))

	// Unregistering an unknown pair is harmless.
	r.Unregister("alice", s)
	r.Unregister("nobody", s)
}

func TestConcurrentRegisterAndSend(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := &fakeSender{}
			r.Register("alice", s)
			r.Unregister("alice", s)
		}()
		go func() {
			defer wg.Done()
			r.SendToUser("alice", []byte("hi"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.CountForUser("alice"))
}

func TestClose(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", &fakeSender{})
	r.Close()
	assert.Equal(t, 0, r.CountForUser("alice"))
}
