package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokerport "chatwire/internal/infrastructure/broker/port"
	"chatwire/internal/infrastructure/realtime"
	"chatwire/internal/pkg/chat/application/service"
	"chatwire/internal/pkg/chat/crypto"
	chat "chatwire/internal/pkg/chat/domain"
	repoadapter "chatwire/internal/pkg/chat/persistence/repository/adapter"
	repository "chatwire/internal/pkg/chat/persistence/repository/port"
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

func (f *fakeSender) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

type fakeReservations struct {
	mu           sync.Mutex
	allow        bool
	calls        int
	counterparts []string
	listErr      error
}

func (f *fakeReservations) CanChat(context.Context, string, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.allow
}

func (f *fakeReservations) CounterpartIDs(context.Context, string, string) ([]string, error) {
	return f.counterparts, f.listErr
}

func (f *fakeReservations) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memBroker counts publishes and fans them out synchronously. Shared between
// two engines it stands in for the pub/sub channel connecting instances.
type memBroker struct {
	mu        sync.Mutex
	handlers  []brokerport.Handler
	publishes int
}

func (b *memBroker) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	b.publishes++
	handlers := append([]brokerport.Handler(nil), b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (b *memBroker) Subscribe(_ context.Context, h brokerport.Handler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
	return nil
}

func (b *memBroker) Close() error { return nil }

func (b *memBroker) publishCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishes
}

type engine struct {
	ctl          *ChatSocketController
	registry     *realtime.Registry
	svc          *service.ChatService
	repo         *repoadapter.MemChatRepository
	reservations *fakeReservations
	broker       *memBroker
}

func newEngine(t *testing.T, broker *memBroker, repo repository.ChatRepository, allow bool) *engine {
	t.Helper()
	codec, err := crypto.NewCodec("engine-test-secret")
	require.NoError(t, err)

	mem, _ := repo.(*repoadapter.MemChatRepository)
	svc := service.NewChatService(repo, codec, nil)
	reservations := &fakeReservations{allow: allow}
	registry := realtime.NewRegistry()
	auth := service.NewAuthorizationService(nil)

	ctl := NewChatSocketController(registry, svc, auth, reservations, broker, nil, nil)
	require.NoError(t, ctl.StartFanout(context.Background()))

	return &engine{
		ctl:          ctl,
		registry:     registry,
		svc:          svc,
		repo:         mem,
		reservations: reservations,
		broker:       broker,
	}
}

func newLocalEngine(t *testing.T, allow bool) *engine {
	return newEngine(t, &memBroker{}, repoadapter.NewMemChatRepository(), allow)
}

func decodeEnvelope(t *testing.T, payload []byte) chat.Envelope {
	t.Helper()
	var env chat.Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func TestNoOpFramesHaveNoSideEffects(t *testing.T) {
	e := newLocalEngine(t, true)
	alice := &fakeSender{}
	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}
	ctx := context.Background()

	for _, frame := range []string{"", "   ", "ping", "PING", `{"type":"ping"}`, `{"type":"PING","toUserId":"bob","content":"x"}`, "not json {{{"} {
		e.ctl.handleFrame(ctx, sess, []byte(frame))
	}

	assert.Zero(t, e.reservations.callCount())
	assert.Zero(t, e.broker.publishCount())
	assert.Empty(t, alice.frames())

	pending, err := e.svc.PendingFor(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFrameMissingFieldsIsIgnored(t *testing.T) {
	e := newLocalEngine(t, true)
	alice := &fakeSender{}
	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}
	ctx := context.Background()

	e.ctl.handleFrame(ctx, sess, []byte(`{"toUserId":"","content":"hi"}`))
	e.ctl.handleFrame(ctx, sess, []byte(`{"toUserId":"bob","content":"   "}`))

	// Validation runs before the reservation check.
	assert.Zero(t, e.reservations.callCount())
	assert.Zero(t, e.broker.publishCount())
	assert.Empty(t, alice.frames())
}

func TestUnauthorizedSendGetsInlineError(t *testing.T) {
	e := newLocalEngine(t, false)
	alice := &fakeSender{}
	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}
	ctx := context.Background()

	e.ctl.handleFrame(ctx, sess, []byte(`{"toUserId":"bob","content":"hi"}`))

	assert.Equal(t, 1, e.reservations.callCount())
	assert.Zero(t, e.broker.publishCount())

	frames := alice.frames()
	require.Len(t, frames, 1)
	var ef errorFrame
	require.NoError(t, json.Unmarshal(frames[0], &ef))
	assert.Equal(t, "not authorized to chat", ef.Error)

	history, err := e.svc.History(ctx, e.svc.ThreadID("alice", "bob"))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAuthorizedSendDeliversToBothParticipants(t *testing.T) {
	e := newLocalEngine(t, true)
	alice := &fakeSender{}
	bob := &fakeSender{}
	e.registry.Register("alice", alice)
	e.registry.Register("bob", bob)
	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}
	ctx := context.Background()

	e.ctl.handleFrame(ctx, sess, []byte(`{"toUserId":"bob","content":"see you at noon"}`))

	assert.Equal(t, 1, e.broker.publishCount())

	bobFrames := bob.frames()
	require.Len(t, bobFrames, 1)
	env := decodeEnvelope(t, bobFrames[0])
	assert.Equal(t, "see you at noon", env.Content)
	assert.Equal(t, "alice", env.FromUserID)
	assert.Equal(t, "bob", env.ToUserID)
	assert.Equal(t, e.svc.ThreadID("alice", "bob"), env.ChatID)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Delivered)

	// The sender's own connections receive the echo.
	require.Len(t, alice.frames(), 1)

	// At rest the content is ciphertext.
	stored, err := e.svc.History(ctx, env.ChatID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, "see you at noon", stored[0].Content)
}

func TestCrossInstanceFanout(t *testing.T) {
	shared := &memBroker{}
	instanceA := newEngine(t, shared, repoadapter.NewMemChatRepository(), true)
	instanceB := newEngine(t, shared, repoadapter.NewMemChatRepository(), true)

	alice := &fakeSender{}
	bob := &fakeSender{}
	instanceA.registry.Register("alice", alice)
	instanceB.registry.Register("bob", bob)

	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}
	instanceA.ctl.handleFrame(context.Background(), sess, []byte(`{"toUserId":"bob","content":"over the wire"}`))

	// Bob is connected to a different instance and still receives the message.
	bobFrames := bob.frames()
	require.Len(t, bobFrames, 1)
	assert.Equal(t, "over the wire", decodeEnvelope(t, bobFrames[0]).Content)

	// Alice gets exactly one echo even though both instances saw the publish.
	assert.Len(t, alice.frames(), 1)
}

func TestFlushPendingReplaysBacklogOnce(t *testing.T) {
	e := newLocalEngine(t, true)
	ctx := context.Background()
	threadID := e.svc.ThreadID("alice", "bob")
	_, err := e.svc.EnsureThread(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = e.svc.SaveMessage(ctx, threadID, "alice", "bob", "first")
	require.NoError(t, err)
	_, err = e.svc.SaveMessage(ctx, threadID, "alice", "bob", "second")
	require.NoError(t, err)

	bob := &fakeSender{}
	sess := &session{userID: "bob", bearer: "Bearer t", conn: bob}
	e.ctl.flushPending(ctx, sess)

	frames := bob.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "first", decodeEnvelope(t, frames[0]).Content)
	assert.Equal(t, "second", decodeEnvelope(t, frames[1]).Content)

	pending, err := e.svc.PendingFor(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Reconnecting replays nothing.
	e.ctl.flushPending(ctx, sess)
	assert.Len(t, bob.frames(), 2)
}

func TestFlushPendingMarksDeliveredEvenWhenSendFails(t *testing.T) {
	e := newLocalEngine(t, true)
	ctx := context.Background()
	threadID := e.svc.ThreadID("alice", "bob")

	_, err := e.svc.SaveMessage(ctx, threadID, "alice", "bob", "lost in transit")
	require.NoError(t, err)

	bob := &fakeSender{fail: true}
	sess := &session{userID: "bob", bearer: "Bearer t", conn: bob}
	e.ctl.flushPending(ctx, sess)

	// Transport delivery is fire-and-forget: the batch is considered handled.
	pending, err := e.svc.PendingFor(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failingRepo struct {
	*repoadapter.MemChatRepository
}

func (f *failingRepo) SaveMessage(context.Context, chat.Message) (string, error) {
	return "", errors.New("db down")
}

func TestPersistenceFailureSendsInlineError(t *testing.T) {
	e := newEngine(t, &memBroker{}, &failingRepo{repoadapter.NewMemChatRepository()}, true)
	alice := &fakeSender{}
	sess := &session{userID: "alice", bearer: "Bearer t", conn: alice}

	e.ctl.handleFrame(context.Background(), sess, []byte(`{"toUserId":"bob","content":"hi"}`))

	frames := alice.frames()
	require.Len(t, frames, 1)
	var ef errorFrame
	require.NoError(t, json.Unmarshal(frames[0], &ef))
	assert.Equal(t, "message could not be delivered", ef.Error)
	assert.Zero(t, e.broker.publishCount())
}

func TestDispatchEnvelopeDropsUndecodablePayload(t *testing.T) {
	e := newLocalEngine(t, true)
	alice := &fakeSender{}
	e.registry.Register("alice", alice)

	e.ctl.dispatchEnvelope([]byte("garbage"))
	assert.Empty(t, alice.frames())
}
