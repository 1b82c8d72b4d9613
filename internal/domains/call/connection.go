package call

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/advisorhq/voicebridge/internal/domains/nomination"
	"github.com/advisorhq/voicebridge/pkg/audio"
	"github.com/advisorhq/voicebridge/pkg/voiceagent"
)

// AgentLink is the bridge's view of the vendor agent connection.
type AgentLink interface {
	SendAudio(pcm []byte) error
	Events() <-chan voiceagent.Message
	Close() error
}

// Connection lifecycle states. A connection is created in
// stateInitializing, moves to stateActive once the agent link is up and
// the client has been acknowledged, and ends exactly once.
const (
	stateInitializing = "initializing"
	stateActive       = "active"
	stateEnded        = "ended"

	eventActivate = "activate"
	eventEnd      = "end"
)

// CallConnection is the live state of one mediated call. Exactly one
// exists per session id at any time; the registry enforces that.
type CallConnection struct {
	SessionID   string
	Client      ClientChannel
	IsTest      bool
	ConnectedAt time.Time

	mu        sync.Mutex
	lifecycle *fsm.FSM

	agent   AgentLink
	draftID uuid.UUID

	sequence         int
	lastAskedField   nomination.Field
	lastUserResponse string
	hasUserResponse  bool

	pending      *audio.PendingBuffer
	goodbyeTimer *time.Timer
	subscription Subscription
}

// pendingAudioBytes sizes the buffer for client audio that arrives
// before the agent link is established. 64 KiB holds about two seconds
// of 16 kHz mono PCM.
const pendingAudioBytes = 64 * 1024

func NewCallConnection(sessionID string, client ClientChannel, isTest bool) *CallConnection {
	return &CallConnection{
		SessionID:   sessionID,
		Client:      client,
		IsTest:      isTest,
		ConnectedAt: time.Now(),
		pending:     audio.NewPendingBuffer(pendingAudioBytes),
		lifecycle: fsm.NewFSM(
			stateInitializing,
			fsm.Events{
				{Name: eventActivate, Src: []string{stateInitializing}, Dst: stateActive},
				{Name: eventEnd, Src: []string{stateInitializing, stateActive}, Dst: stateEnded},
			},
			fsm.Callbacks{},
		),
	}
}

// Activate marks the call live once initialization succeeded.
func (c *CallConnection) Activate() {
	_ = c.lifecycle.Event(context.Background(), eventActivate)
}

// BeginTeardown claims the single terminal transition. Only the first
// caller among the competing trigger paths gets true; everyone else is
// a no-op.
func (c *CallConnection) BeginTeardown() bool {
	return c.lifecycle.Event(context.Background(), eventEnd) == nil
}

// IsEnded reports whether teardown has already been claimed.
func (c *CallConnection) IsEnded() bool {
	return c.lifecycle.Current() == stateEnded
}

// NextSequence hands out the strictly increasing per-session transcript
// order, assigned at write time.
func (c *CallConnection) NextSequence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence++
	return c.sequence
}

// Sequence returns the current counter without advancing it.
func (c *CallConnection) Sequence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// SetAgent attaches the established vendor link.
func (c *CallConnection) SetAgent(link AgentLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agent = link
}

func (c *CallConnection) Agent() AgentLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

// SetDraftID records the in-progress structured record reference.
func (c *CallConnection) SetDraftID(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draftID = id
}

func (c *CallConnection) DraftID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftID
}

// RecordUserResponse stores the latest raw client utterance until the
// next agent turn attributes it to a field.
func (c *CallConnection) RecordUserResponse(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUserResponse = text
	c.hasUserResponse = true
}

// TakePendingAnswer returns the previously asked field together with the
// stored user utterance, consuming the utterance. False when either half
// of the pair is missing.
func (c *CallConnection) TakePendingAnswer() (nomination.Field, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastAskedField == "" || !c.hasUserResponse {
		return "", "", false
	}
	field, text := c.lastAskedField, c.lastUserResponse
	c.lastUserResponse = ""
	c.hasUserResponse = false
	return field, text, true
}

// SetAskedField records which field the agent is currently collecting.
func (c *CallConnection) SetAskedField(f nomination.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAskedField = f
}

// BufferAudio queues an early client audio frame until the agent link is
// ready. Reports false on overflow.
func (c *CallConnection) BufferAudio(pcm []byte) bool {
	return c.pending.Push(pcm) == nil
}

// DrainAudio flushes the queued early audio.
func (c *CallConnection) DrainAudio() [][]byte {
	return c.pending.Drain()
}

// ScheduleGoodbye arms the delayed auto-end after a goodbye phrase. An
// already armed timer is left alone.
func (c *CallConnection) ScheduleGoodbye(grace time.Duration, end func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.goodbyeTimer != nil || c.lifecycle.Current() == stateEnded {
		return
	}
	c.goodbyeTimer = time.AfterFunc(grace, end)
}

// CancelGoodbye stops a scheduled auto-end; teardown through any other
// path calls this so a stray timer never fires.
func (c *CallConnection) CancelGoodbye() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.goodbyeTimer != nil {
		c.goodbyeTimer.Stop()
		c.goodbyeTimer = nil
	}
}

// SetSubscription stores the notification handle for symmetric cleanup.
func (c *CallConnection) SetSubscription(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscription = sub
}

func (c *CallConnection) TakeSubscription() Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subscription
	c.subscription = nil
	return sub
}
