package call

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/advisorhq/voicebridge/internal/config"
	"github.com/advisorhq/voicebridge/internal/domains/nomination"
	"github.com/advisorhq/voicebridge/pkg/Logger"
	"github.com/advisorhq/voicebridge/pkg/voiceagent"
)

// testSessionPrefix marks session ids that synthesize an in-memory
// session in development mode, keeping local work decoupled from the
// store. All persistence writes are suppressed for such sessions.
const testSessionPrefix = "test-"

// Bridge mediates one live voice call per inbound client connection:
// it validates and reserves the session, opens the agent link, relays
// audio both ways, drives field extraction off the conversation, and
// owns teardown.
type Bridge struct {
	cfg      *config.Settings
	logger   *Logger.Logger
	store    Store
	notifier Notifier
	registry *Registry
	engine   *nomination.Engine

	// dialAgent is swappable so tests can run a call without a vendor.
	dialAgent func(ctx context.Context) (AgentLink, error)
}

func NewBridge(cfg *config.Settings, logger *Logger.Logger, store Store, notifier Notifier, registry *Registry) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifier,
		registry: registry,
		engine:   nomination.NewEngine(),
	}
	b.dialAgent = func(ctx context.Context) (AgentLink, error) {
		connector := voiceagent.New(voiceagent.Config{
			BaseURL:      cfg.Agent.BaseURL,
			AgentID:      cfg.Agent.AgentID,
			APIKey:       cfg.Agent.APIKey,
			CloseTimeout: cfg.Call.ConnectorCloseTimeout(),
		}, logger)
		if err := connector.Connect(ctx); err != nil {
			return nil, err
		}
		return connector, nil
	}
	return b
}

// Registry exposes the live-session registry for stats reporting.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Shutdown force-closes every live agent link; called on process exit.
func (b *Bridge) Shutdown() {
	b.registry.CloseAllAgents()
}

// HandleCall runs one client connection end to end. It returns when the
// call is over; the caller owns the websocket upgrade, nothing else.
func (b *Bridge) HandleCall(ctx context.Context, wsConn *websocket.Conn, sessionID string) {
	client := NewClientChannel(wsConn)

	if sessionID == "" {
		_ = client.CloseWithCode(ClosePolicyViolation, "missing session id")
		return
	}

	isTest := strings.HasPrefix(sessionID, testSessionPrefix) && b.cfg.IsDevelopment()

	session, err := b.resolveSession(ctx, sessionID, isTest)
	if err != nil {
		b.logger.Warnf("session %s lookup failed: %v", sessionID, err)
		_ = client.Send(NewErrorMessage("session not found"))
		_ = client.CloseWithCode(CloseNormal, "unknown session")
		return
	}

	if !isTest {
		if err := b.store.MarkSessionInProgress(ctx, session.ID, time.Now()); err != nil {
			b.logger.Errorf("marking session %s in progress: %v", sessionID, err)
		}
	}

	conn := NewCallConnection(sessionID, client, isTest)
	if !b.registry.Reserve(sessionID, conn) {
		b.logger.Warnf("rejecting duplicate connection for session %s", sessionID)
		_ = client.CloseWithCode(ClosePolicyViolation, "session already active")
		return
	}

	if err := b.initialize(ctx, conn); err != nil {
		b.logger.Errorf("call initialization failed for session %s: %v", sessionID, err)
		_ = client.Send(NewErrorMessage("could not start voice assistant"))
		b.endCall(conn, "initialization failed")
		return
	}

	if err := client.Send(NewStatusChange("connected", "call bridge ready")); err != nil {
		b.logger.Errorf("connected ack failed for session %s: %v", sessionID, err)
	}

	b.runClientFeed(ctx, conn)
}

func (b *Bridge) resolveSession(ctx context.Context, sessionID string, isTest bool) (*Session, error) {
	if isTest {
		return &Session{ID: sessionID, Status: SessionPending}, nil
	}
	return b.store.GetSession(ctx, sessionID)
}

// initialize performs the asynchronous half of call setup: draft record,
// agent link, relay goroutines and the notification subscription. The
// registry reservation is already held when this runs.
func (b *Bridge) initialize(ctx context.Context, conn *CallConnection) error {
	if !conn.IsTest {
		draftID, err := b.store.CreateDraft(ctx, conn.SessionID)
		if err != nil {
			b.logger.Errorf("creating draft for session %s: %v", conn.SessionID, err)
		} else {
			b.registry.Attach(conn.SessionID, nil, draftID)
		}
	}

	agent, err := b.dialAgent(ctx)
	if err != nil {
		return err
	}
	b.registry.Attach(conn.SessionID, agent, uuid.Nil)

	// Audio that raced in before the link existed goes out first.
	for _, frame := range conn.DrainAudio() {
		if err := agent.SendAudio(frame); err != nil {
			b.logger.Debugf("flushing buffered audio for session %s: %v", conn.SessionID, err)
			break
		}
	}

	go b.runAgentFeed(conn, agent)

	if !conn.IsTest && b.notifier != nil {
		sub, err := b.notifier.Subscribe(conn.SessionID)
		if err != nil {
			b.logger.Errorf("subscribing to updates for session %s: %v", conn.SessionID, err)
		} else {
			conn.SetSubscription(sub)
			go b.runNotificationFeed(conn, sub)
		}
	}

	conn.Activate()
	return nil
}

// runClientFeed is the inbound loop for the client channel: JSON control
// messages dispatched by type, binary frames unwrapped and forwarded to
// the agent.
func (b *Bridge) runClientFeed(ctx context.Context, conn *CallConnection) {
	for {
		msgType, data, err := conn.Client.ReadMessage()
		if err != nil {
			b.logger.Infof("client channel closed for session %s: %v", conn.SessionID, err)
			b.endCall(conn, "client disconnected")
			return
		}

		switch msgType {
		case websocket.TextMessage:
			msg, err := DecodeClientMessage(data)
			if err != nil {
				b.logger.Warnf("session %s: %v", conn.SessionID, err)
				continue
			}
			switch m := msg.(type) {
			case CallEnded:
				b.logger.Infof("client ended call for session %s: %s", conn.SessionID, m.Reason)
				b.endCall(conn, "client ended call")
				return
			case CallAccepted:
				b.logger.Debugf("client accepted call for session %s", conn.SessionID)
			case ClientPing:
				// keepalive, nothing to do
			}

		case websocket.BinaryMessage:
			_, pcm, err := DecodeAudioFrame(data)
			if err != nil {
				b.logger.Warnf("session %s: malformed audio frame: %v", conn.SessionID, err)
				_ = conn.Client.CloseWithCode(ClosePolicyViolation, "malformed audio frame")
				b.endCall(conn, "protocol error")
				return
			}
			if agent := conn.Agent(); agent != nil {
				if err := agent.SendAudio(pcm); err != nil {
					b.logger.Debugf("forwarding audio for session %s: %v", conn.SessionID, err)
				}
			} else if !conn.BufferAudio(pcm) {
				b.logger.Debugf("pending audio buffer overflow for session %s", conn.SessionID)
			}
		}
	}
}

// runAgentFeed consumes the agent link's normalized messages, feeding
// every agent turn through the extraction pipeline before relay.
func (b *Bridge) runAgentFeed(conn *CallConnection, agent AgentLink) {
	ctx := context.Background()
	for msg := range agent.Events() {
		switch msg.Type {
		case voiceagent.TypeAudio:
			out := AudioStream{
				Type:      "audio_stream",
				AudioData: base64.StdEncoding.EncodeToString(msg.Audio),
				Timestamp: time.Now(),
			}
			if err := conn.Client.Send(out); err != nil {
				b.logger.Debugf("relaying agent audio for session %s: %v", conn.SessionID, err)
			}

		case voiceagent.TypeUserTranscript:
			conn.RecordUserResponse(msg.Text)
			b.persistTranscript(ctx, conn, SpeakerClient, msg.Text)

		case voiceagent.TypeAgentResponse:
			b.processAgentTurn(ctx, conn, msg.Text)
			b.persistTranscript(ctx, conn, SpeakerAgent, msg.Text)

		case voiceagent.TypeConversationInit:
			b.logger.Debugf("agent conversation initialized for session %s", conn.SessionID)

		case voiceagent.TypeConversationEnd:
			b.logger.Infof("agent completed conversation for session %s", conn.SessionID)
			b.endCall(conn, "conversation complete")
			return

		case voiceagent.TypePassthrough:
			b.logger.Debugf("unrecognized agent event for session %s: %s", conn.SessionID, string(msg.Raw))
		}
	}
}

// runNotificationFeed reacts to out-of-band session updates: two-factor
// confirmation is relayed to the client, rejection and advisor-initiated
// termination end the call.
func (b *Bridge) runNotificationFeed(conn *CallConnection, sub Subscription) {
	for update := range sub.Updates() {
		switch {
		case update.TwoFactorStatus == TwoFactorConfirmed:
			if err := conn.Client.Send(NewStatusChange("two_factor_confirmed", "identity confirmed")); err != nil {
				b.logger.Debugf("relaying two-factor confirmation for session %s: %v", conn.SessionID, err)
			}
		case update.TwoFactorStatus == TwoFactorRejected:
			b.logger.Infof("two-factor rejected for session %s", conn.SessionID)
			b.endCall(conn, "two-factor rejected")
			return
		case update.Status == StatusTerminated:
			b.logger.Infof("advisor terminated session %s", conn.SessionID)
			b.endCall(conn, "advisor terminated")
			return
		}
	}
}

// processAgentTurn runs the extraction pipeline on one agent utterance.
// The turn-lag handoff comes first: a previously asked field plus a
// stored user utterance yields a value now that the conversation has
// provably moved on. Only then does the current utterance get to claim
// the next field.
func (b *Bridge) processAgentTurn(ctx context.Context, conn *CallConnection, text string) {
	if field, answer, ok := conn.TakePendingAnswer(); ok {
		if value, ok := b.engine.ExtractValue(field, answer); ok {
			b.writeFields(ctx, conn, nomination.FieldValues{field: value})
		} else {
			b.logger.Warnf("session %s: dropping unnormalizable %s value %q", conn.SessionID, field, answer)
		}
	}

	if result, ok := b.engine.ParseConfirmation(text); ok {
		for _, dropped := range result.Dropped {
			b.logger.Warnf("session %s: confirmation value for %s failed normalization, dropped", conn.SessionID, dropped)
		}
		if len(result.Fields) > 0 {
			b.writeFields(ctx, conn, result.Fields)
		}
	}

	if field, ok := b.engine.DetectField(text); ok {
		conn.SetAskedField(field)
	}

	if b.engine.IsTwoFactorRequest(text) && !conn.IsTest {
		if err := b.store.SetTwoFactorStatus(ctx, conn.SessionID, TwoFactorPending); err != nil {
			b.logger.Errorf("setting two-factor pending for session %s: %v", conn.SessionID, err)
		}
	}

	if b.engine.IsGoodbye(text) {
		grace := b.cfg.Call.GoodbyeGrace()
		b.logger.Infof("goodbye detected for session %s, ending in %s", conn.SessionID, grace)
		conn.ScheduleGoodbye(grace, func() {
			b.endCall(conn, "goodbye")
		})
	}
}

// writeFields persists extracted values and echoes them to the client.
// Persistence is suppressed for test sessions and never blocks the call.
func (b *Bridge) writeFields(ctx context.Context, conn *CallConnection, fields nomination.FieldValues) {
	if !conn.IsTest {
		if draftID := conn.DraftID(); draftID != uuid.Nil {
			if err := b.store.UpdateDraftFields(ctx, draftID, fields); err != nil {
				b.logger.Errorf("updating draft %s: %v", draftID, err)
			}
		}
	}

	payload := make(map[string]string, len(fields))
	for f, v := range fields {
		payload[string(f)] = v
	}
	if err := conn.Client.Send(NewFieldExtracted(payload)); err != nil {
		b.logger.Debugf("echoing extracted fields for session %s: %v", conn.SessionID, err)
	}
}

// persistTranscript writes one transcript line with the next sequence
// number, assigned at write time from the connection's own counter.
func (b *Bridge) persistTranscript(ctx context.Context, conn *CallConnection, speaker Speaker, text string) {
	if conn.IsTest || text == "" {
		return
	}
	line := TranscriptLine{
		SessionID: conn.SessionID,
		Speaker:   speaker,
		Text:      text,
		SpokenAt:  time.Now(),
		Sequence:  conn.NextSequence(),
	}
	if err := b.store.InsertTranscript(ctx, line); err != nil {
		b.logger.Errorf("persisting transcript for session %s: %v", conn.SessionID, err)
	}
}

// endCall is the single ordered teardown path. Every trigger funnels
// here; the connection's terminal state transition makes sure the
// effects run once no matter how many triggers race.
func (b *Bridge) endCall(conn *CallConnection, reason string) {
	if !conn.BeginTeardown() {
		return
	}
	b.logger.Infof("ending call for session %s: %s", conn.SessionID, reason)

	conn.CancelGoodbye()

	if sub := conn.TakeSubscription(); sub != nil {
		if err := sub.Close(); err != nil {
			b.logger.Debugf("closing subscription for session %s: %v", conn.SessionID, err)
		}
	}

	if agent := conn.Agent(); agent != nil {
		if err := agent.Close(); err != nil {
			b.logger.Errorf("closing agent link for session %s: %v", conn.SessionID, err)
		}
	}

	if !conn.IsTest {
		b.writeTerminalStatus(conn)
	}

	_ = conn.Client.CloseWithCode(CloseNormal, reason)

	if !b.registry.Remove(conn.SessionID) {
		b.logger.Warnf("session %s already removed from registry", conn.SessionID)
	}
}

// writeTerminalStatus decides completed versus cancelled by whether any
// identifying nominee data was captured, and stamps ended_at.
func (b *Bridge) writeTerminalStatus(conn *CallConnection) {
	ctx := context.Background()
	status := SessionCancelled
	if draftID := conn.DraftID(); draftID != uuid.Nil {
		fields, err := b.store.GetDraftFields(ctx, draftID)
		if err != nil {
			b.logger.Errorf("reading draft %s at teardown: %v", draftID, err)
		} else if nomination.HasIdentifyingData(fields) {
			status = SessionCompleted
		}
	}
	if err := b.store.MarkSessionEnded(ctx, conn.SessionID, status, time.Now()); err != nil {
		b.logger.Errorf("writing terminal status for session %s: %v", conn.SessionID, err)
	}
}
