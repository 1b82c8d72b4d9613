package voiceagent

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/advisorhq/voicebridge/pkg/Logger"
)

// Config parameterizes the outbound connection to the conversational
// voice agent service.
type Config struct {
	BaseURL string
	AgentID string
	APIKey  string
	// CloseTimeout bounds how long Close waits for the remote side to
	// acknowledge before force-terminating the transport.
	CloseTimeout time.Duration
}

// Connector owns one outbound duplex connection to the agent service for
// a single call. Inbound vendor frames are normalized into Messages on
// the Events channel; outbound audio goes through SendAudio.
type Connector struct {
	cfg    Config
	logger *Logger.Logger

	conn   *websocket.Conn
	events chan Message

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

func New(cfg Config, logger *Logger.Logger) *Connector {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 2 * time.Second
	}
	return &Connector{
		cfg:    cfg,
		logger: logger,
		events: make(chan Message, 64),
		done:   make(chan struct{}),
	}
}

// Connect establishes the connection and starts the read loop. The
// service requires no handshake payload; it is ready for audio as soon
// as the dial succeeds.
func (c *Connector) Connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/convai/conversation?agent_id=%s",
		c.cfg.BaseURL, url.QueryEscape(c.cfg.AgentID))

	header := http.Header{}
	header.Set("xi-api-key", c.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dialing agent service: %w", err)
	}
	c.conn = conn

	go c.readLoop()
	return nil
}

// Events returns the stream of normalized inbound messages. The channel
// is closed once the connection is finished, after a final
// conversation_end message when the remote side went away on its own.
func (c *Connector) Events() <-chan Message {
	return c.events
}

// SendAudio forwards one raw PCM frame wrapped in the vendor's envelope.
// Frames arriving after Close are silently dropped: audio during
// teardown is expected and harmless.
func (c *Connector) SendAudio(pcm []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}

	chunk := audioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(chunk)
}

// Close detaches the local listener immediately and gives the transport
// a bounded window to confirm closure before force-terminating. Safe to
// call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.conn == nil {
		close(c.events)
		return nil
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.CloseTimeout))
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debugf("agent close handshake write failed: %v", err)
	}

	select {
	case <-c.done:
	case <-time.After(c.cfg.CloseTimeout):
		c.logger.Warnf("agent connection did not close cleanly, force-terminating")
	}
	return c.conn.Close()
}

func (c *Connector) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		wsType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				// Remote side ended the conversation on its own.
				c.events <- Message{Type: TypeConversationEnd}
			}
			return
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			// Listener detached; drain without dispatching.
			continue
		}

		msg := decodeFrame(wsType, data)
		if msg.Type == TypePing {
			c.replyPong(msg.EventID)
			continue
		}
		c.events <- msg
	}
}

func (c *Connector) replyPong(eventID int) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(pongReply{Type: "pong", EventID: eventID}); err != nil {
		c.logger.Debugf("pong write failed: %v", err)
	}
}
