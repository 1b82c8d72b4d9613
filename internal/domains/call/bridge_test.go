package call

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisorhq/voicebridge/internal/config"
	"github.com/advisorhq/voicebridge/internal/domains/nomination"
	"github.com/advisorhq/voicebridge/pkg/Logger"
	"github.com/advisorhq/voicebridge/pkg/voiceagent"
)

// fakeClient records everything the bridge sends without a socket.
type fakeClient struct {
	mu         sync.Mutex
	sent       []any
	closeCodes []int
}

func (f *fakeClient) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeClient) ReadMessage() (int, []byte, error) {
	select {} // never delivers; client feed is not under test here
}

func (f *fakeClient) CloseWithCode(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCodes = append(f.closeCodes, code)
	return nil
}

func (f *fakeClient) sentMessages() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.sent...)
}

// fakeAgent is an AgentLink fed from the test.
type fakeAgent struct {
	mu     sync.Mutex
	events chan voiceagent.Message
	audio  [][]byte
	closes int
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{events: make(chan voiceagent.Message, 32)}
}

func (f *fakeAgent) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, pcm)
	return nil
}

func (f *fakeAgent) Events() <-chan voiceagent.Message { return f.events }

func (f *fakeAgent) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeAgent) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeStore is an in-memory Store that mirrors the derived-status
// behaviour of the real repository.
type fakeStore struct {
	mu            sync.Mutex
	sessions      map[string]*Session
	drafts        map[uuid.UUID]nomination.FieldValues
	draftStatus   map[uuid.UUID]nomination.Status
	transcripts   []TranscriptLine
	endedStatuses []SessionStatus
	twoFactor     []TwoFactorStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    map[string]*Session{},
		drafts:      map[uuid.UUID]nomination.FieldValues{},
		draftStatus: map[uuid.UUID]nomination.Status{},
	}
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound{ID: id}
	}
	return s, nil
}

func (f *fakeStore) MarkSessionInProgress(_ context.Context, id string, _ time.Time) error {
	return nil
}

func (f *fakeStore) MarkSessionEnded(_ context.Context, id string, status SessionStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedStatuses = append(f.endedStatuses, status)
	return nil
}

func (f *fakeStore) SetTwoFactorStatus(_ context.Context, id string, status TwoFactorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.twoFactor = append(f.twoFactor, status)
	return nil
}

func (f *fakeStore) CreateDraft(_ context.Context, sessionID string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.drafts[id] = nomination.FieldValues{}
	f.draftStatus[id] = nomination.StatusEmpty
	return id, nil
}

func (f *fakeStore) UpdateDraftFields(_ context.Context, draftID uuid.UUID, fields nomination.FieldValues) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft := f.drafts[draftID]
	if draft == nil {
		draft = nomination.FieldValues{}
	}
	for k, v := range fields {
		draft[k] = v
	}
	f.drafts[draftID] = draft
	f.draftStatus[draftID] = nomination.DeriveStatus(draft)
	return nil
}

func (f *fakeStore) GetDraftFields(_ context.Context, draftID uuid.UUID) (nomination.FieldValues, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := nomination.FieldValues{}
	for k, v := range f.drafts[draftID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) InsertTranscript(_ context.Context, line TranscriptLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, line)
	return nil
}

func devSettings() *config.Settings {
	return &config.Settings{
		Env: "development",
		Call: config.CallConfig{
			GoodbyeGraceSecs:          1,
			ConnectorCloseTimeoutSecs: 1,
		},
	}
}

func newTestBridge(store *fakeStore) (*Bridge, *Registry) {
	logger := Logger.New(true)
	registry := NewRegistry(logger)
	bridge := NewBridge(devSettings(), logger, store, nil, registry)
	return bridge, registry
}

func TestTeardownIdempotent(t *testing.T) {
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	client := &fakeClient{}
	agent := newFakeAgent()
	conn := NewCallConnection("s-1", client, false)
	require.True(t, registry.Reserve("s-1", conn))
	conn.SetAgent(agent)

	// Simulate a client disconnect racing an explicit end-call message.
	bridge.endCall(conn, "client disconnected")
	bridge.endCall(conn, "client ended call")

	assert.Len(t, store.endedStatuses, 1, "exactly one terminal status write")
	assert.Equal(t, 0, registry.Len(), "exactly one registry removal")
	assert.Equal(t, 1, agent.closeCount())
}

func TestTeardownStatusReflectsCapturedData(t *testing.T) {
	ctx := context.Background()

	t.Run("no data means cancelled", func(t *testing.T) {
		store := newFakeStore()
		bridge, registry := newTestBridge(store)
		conn := NewCallConnection("s-2", &fakeClient{}, false)
		require.True(t, registry.Reserve("s-2", conn))

		draftID, err := store.CreateDraft(ctx, "s-2")
		require.NoError(t, err)
		conn.SetDraftID(draftID)

		bridge.endCall(conn, "client disconnected")
		require.Len(t, store.endedStatuses, 1)
		assert.Equal(t, SessionCancelled, store.endedStatuses[0])
	})

	t.Run("identifying data means completed", func(t *testing.T) {
		store := newFakeStore()
		bridge, registry := newTestBridge(store)
		conn := NewCallConnection("s-3", &fakeClient{}, false)
		require.True(t, registry.Reserve("s-3", conn))

		draftID, err := store.CreateDraft(ctx, "s-3")
		require.NoError(t, err)
		conn.SetDraftID(draftID)
		require.NoError(t, store.UpdateDraftFields(ctx, draftID,
			nomination.FieldValues{nomination.FieldFullName: "Sarah Johnson"}))

		bridge.endCall(conn, "conversation complete")
		require.Len(t, store.endedStatuses, 1)
		assert.Equal(t, SessionCompleted, store.endedStatuses[0])
	})
}

// The value for a question is attributed only once the next agent turn
// proves the conversation moved on, never when the answer arrives.
func TestTurnLagExtraction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	client := &fakeClient{}
	conn := NewCallConnection("s-4", client, false)
	require.True(t, registry.Reserve("s-4", conn))
	draftID, err := store.CreateDraft(ctx, "s-4")
	require.NoError(t, err)
	conn.SetDraftID(draftID)

	bridge.processAgentTurn(ctx, conn, "What is the full name of the person you'd like to nominate?")
	conn.RecordUserResponse("Sarah Johnson")

	fields, err := store.GetDraftFields(ctx, draftID)
	require.NoError(t, err)
	assert.Empty(t, fields, "no attribution before the next agent turn")

	bridge.processAgentTurn(ctx, conn, "And what is their relationship to you?")

	fields, err = store.GetDraftFields(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah Johnson", fields[nomination.FieldFullName])

	// The user utterance is consumed exactly once.
	bridge.processAgentTurn(ctx, conn, "Could you tell me their date of birth?")
	fields, err = store.GetDraftFields(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

// Full-call scenario: three question/answer rounds, then a confirmation
// utterance carrying every required field, then the agent ends the call.
func TestFullCallScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	client := &fakeClient{}
	conn := NewCallConnection("s-5", client, false)
	require.True(t, registry.Reserve("s-5", conn))
	draftID, err := store.CreateDraft(ctx, "s-5")
	require.NoError(t, err)
	conn.SetDraftID(draftID)

	agent := newFakeAgent()
	conn.SetAgent(agent)

	say := func(text string) voiceagent.Message {
		return voiceagent.Message{Type: voiceagent.TypeAgentResponse, Text: text}
	}
	answer := func(text string) voiceagent.Message {
		return voiceagent.Message{Type: voiceagent.TypeUserTranscript, Text: text}
	}

	for _, msg := range []voiceagent.Message{
		say("What is the full name of the person you'd like to nominate?"),
		answer("Sarah Johnson"),
		say("And what is their relationship to you?"),
		answer("She's my daughter"),
		say("What percentage would you like to allocate?"),
		answer("fifty percent"),
		say("Let me confirm what I have. The full name is Sarah Johnson, " +
			"the relationship is daughter, the date of birth is 15th of March 1985, " +
			"the allocation is 50, the nomination type is binding and the priority is primary."),
		{Type: voiceagent.TypeConversationEnd},
	} {
		agent.events <- msg
	}
	close(agent.events)

	bridge.runAgentFeed(conn, agent)

	fields, err := store.GetDraftFields(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah Johnson", fields[nomination.FieldFullName])
	assert.Equal(t, "daughter", fields[nomination.FieldRelationship])
	assert.Equal(t, "1985-03-15", fields[nomination.FieldDateOfBirth])
	assert.Equal(t, "50", fields[nomination.FieldAllocationPercentage])
	assert.Equal(t, "binding", fields[nomination.FieldNominationType])
	assert.Equal(t, "primary", fields[nomination.FieldPriority])

	store.mu.Lock()
	status := store.draftStatus[draftID]
	store.mu.Unlock()
	assert.Equal(t, nomination.StatusComplete, status)

	// Terminal write happened once, with data captured.
	require.Len(t, store.endedStatuses, 1)
	assert.Equal(t, SessionCompleted, store.endedStatuses[0])
	assert.Equal(t, 0, registry.Len())

	// Transcript sequence numbers are strictly increasing.
	store.mu.Lock()
	lines := append([]TranscriptLine(nil), store.transcripts...)
	store.mu.Unlock()
	require.NotEmpty(t, lines)
	for i := 1; i < len(lines); i++ {
		assert.Greater(t, lines[i].Sequence, lines[i-1].Sequence)
	}
}

func TestAgentAudioRelayedToClient(t *testing.T) {
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	client := &fakeClient{}
	conn := NewCallConnection("s-6", client, false)
	require.True(t, registry.Reserve("s-6", conn))

	agent := newFakeAgent()
	conn.SetAgent(agent)
	agent.events <- voiceagent.Message{Type: voiceagent.TypeAudio, Audio: []byte{1, 2, 3}}
	agent.events <- voiceagent.Message{Type: voiceagent.TypeConversationEnd}
	close(agent.events)

	bridge.runAgentFeed(conn, agent)

	var streams []AudioStream
	for _, msg := range client.sentMessages() {
		if s, ok := msg.(AudioStream); ok {
			streams = append(streams, s)
		}
	}
	require.Len(t, streams, 1)
	assert.Equal(t, "audio_stream", streams[0].Type)
	assert.Equal(t, "AQID", streams[0].AudioData) // base64 of 1,2,3
}

func TestGoodbyeSchedulesDelayedTeardown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	conn := NewCallConnection("s-7", &fakeClient{}, false)
	require.True(t, registry.Reserve("s-7", conn))

	bridge.processAgentTurn(ctx, conn, "Thanks so much, goodbye!")
	assert.False(t, conn.IsEnded(), "teardown must wait for the grace delay")

	require.Eventually(t, conn.IsEnded, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, registry.Len())
}

func TestGoodbyeTimerCancelledByOtherTeardown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	conn := NewCallConnection("s-8", &fakeClient{}, false)
	require.True(t, registry.Reserve("s-8", conn))

	bridge.processAgentTurn(ctx, conn, "Thanks so much, goodbye!")
	bridge.endCall(conn, "client disconnected")

	time.Sleep(1500 * time.Millisecond)
	assert.Len(t, store.endedStatuses, 1, "fired timer must not produce a second terminal write")
}

func TestTwoFactorRequestRaisesPending(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	conn := NewCallConnection("s-9", &fakeClient{}, false)
	require.True(t, registry.Reserve("s-9", conn))

	bridge.processAgentTurn(ctx, conn, "I'll need you to verify your identity in the app.")

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.twoFactor, 1)
	assert.Equal(t, TwoFactorPending, store.twoFactor[0])
}

func TestTestSessionSuppressesWrites(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	bridge, registry := newTestBridge(store)

	conn := NewCallConnection("test-abc", &fakeClient{}, true)
	require.True(t, registry.Reserve("test-abc", conn))

	bridge.processAgentTurn(ctx, conn, "Please verify your identity.")
	bridge.persistTranscript(ctx, conn, SpeakerAgent, "hello")
	bridge.endCall(conn, "client disconnected")

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.twoFactor)
	assert.Empty(t, store.transcripts)
	assert.Empty(t, store.endedStatuses)
}

// Websocket-level checks against a real upgrade: policy close codes for
// missing and duplicate session ids.
func newCallServer(t *testing.T, bridge *Bridge) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		bridge.HandleCall(r.Context(), conn, r.URL.Query().Get("session"))
	}))
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
}

func expectCloseCode(t *testing.T, conn *websocket.Conn, want int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected close error, got %v", err)
			assert.Equal(t, want, closeErr.Code)
			return
		}
	}
}

func TestHandleCallMissingSessionID(t *testing.T) {
	store := newFakeStore()
	bridge, _ := newTestBridge(store)
	srv := newCallServer(t, bridge)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	expectCloseCode(t, conn, ClosePolicyViolation)
}

func TestHandleCallDuplicateSession(t *testing.T) {
	store := newFakeStore()
	bridge, registry := newTestBridge(store)
	bridge.dialAgent = func(ctx context.Context) (AgentLink, error) {
		return newFakeAgent(), nil
	}
	srv := newCallServer(t, bridge)
	defer srv.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "session=test-dup"), nil)
	require.NoError(t, err)
	defer first.Close()

	// Wait for the winner to finish initialization.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := first.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "status_change")

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "session=test-dup"), nil)
	require.NoError(t, err)
	defer second.Close()

	expectCloseCode(t, second, ClosePolicyViolation)

	// The winning connection is still registered and untouched.
	_, ok := registry.Get("test-dup")
	assert.True(t, ok)
}
