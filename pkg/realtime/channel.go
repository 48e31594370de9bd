package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atelier-dev/atelier/pkg/metrics"
	"github.com/atelier-dev/atelier/pkg/platform"
	"github.com/atelier-dev/atelier/pkg/toast"
)

// State is the channel lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the wire connection to one room. Subscribe returns the
// event stream; the transport closes the stream when the connection
// drops. Close is idempotent and releases all transport resources.
type Transport interface {
	Subscribe(ctx context.Context, room string) (<-chan Event, error)
	Track(local Peer) error
	Send(kind string, payload any) error
	Close() error
}

// ActionHandler handles one incoming collaboration action.
type ActionHandler func(a Action)

// Channel is a room-scoped presence/broadcast primitive. One Channel
// per logical room; it is not shared across unrelated features.
type Channel struct {
	transport Transport
	sessions  platform.SessionSource
	notifier  toast.Notifier
	logger    *slog.Logger
	metrics   *metrics.Set

	mu       sync.Mutex
	state    State
	local    Peer
	peers    map[string]Peer
	handlers map[string]ActionHandler
	loopDone chan struct{}
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithMetrics sets the metrics set. Default: none.
func WithMetrics(m *metrics.Set) ChannelOption {
	return func(c *Channel) {
		c.metrics = m
	}
}

// NewChannel creates a Channel in the Disconnected state.
func NewChannel(transport Transport, sessions platform.SessionSource, notifier toast.Notifier, opts ...ChannelOption) *Channel {
	c := &Channel{
		transport: transport,
		sessions:  sessions,
		notifier:  notifier,
		logger:    slog.Default(),
		state:     Disconnected,
		peers:     make(map[string]Peer),
		handlers:  make(map[string]ActionHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnAction registers the handler for one action type. Actions with no
// registered handler are logged and ignored. Register handlers before
// Connect.
func (c *Channel) OnAction(actionType string, h ActionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[actionType] = h
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Peers returns a copy of the observed roster.
func (c *Channel) Peers() []Peer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Peer, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out
}

// Connect joins the room: subscribes the transport, publishes local
// presence on the subscribe ack, and starts the event loop. A failed
// subscribe surfaces a "Connection failed" notification and leaves the
// channel Disconnected; Connect may be called again to retry.
func (c *Channel) Connect(ctx context.Context, roomID string) error {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("realtime: session lookup: %w", err)
	}
	if session == nil {
		return ErrAuthRequired
	}

	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	c.local = Peer{
		ID:     session.User.ID,
		Name:   session.User.Name,
		Avatar: session.User.AvatarURL,
	}
	c.mu.Unlock()

	events, err := c.transport.Subscribe(ctx, roomID)
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()

		c.metrics.ChannelConnect("error")
		c.logger.Error("room subscribe failed", "room", roomID, "error", err)
		toast.WithTitle(c.notifier, toast.LevelError,
			"Connection failed", "Could not connect to collaboration room")
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	// Subscribe acknowledged: publish local presence.
	if err := c.transport.Track(c.local); err != nil {
		c.logger.Error("presence track failed", "room", roomID, "error", err)
	}

	loopDone := make(chan struct{})
	c.mu.Lock()
	c.state = Connected
	c.loopDone = loopDone
	c.mu.Unlock()
	c.metrics.ChannelConnect("ok")

	go c.eventLoop(roomID, events, loopDone)
	return nil
}

// Disconnect leaves the room and releases the transport. Safe to call
// in any state and more than once.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	c.state = Disconnected
	c.peers = make(map[string]Peer)
	loopDone := c.loopDone
	c.loopDone = nil
	c.mu.Unlock()

	// Closing the transport ends the event stream, which ends the loop.
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("transport close", "error", err)
	}
	if loopDone != nil {
		<-loopDone
	}
}

// SendCursor broadcasts the local cursor position.
func (c *Channel) SendCursor(pos CursorPosition) error {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	userID := c.local.ID
	c.mu.Unlock()

	return c.transport.Send(KindCursor, map[string]any{
		"user_id":  userID,
		"position": pos,
	})
}

// SendAction broadcasts a collaboration action. The local user and
// timestamp are stamped in.
func (c *Channel) SendAction(a Action) error {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	a.UserID = c.local.ID
	c.mu.Unlock()

	if a.Timestamp == 0 {
		a.Timestamp = time.Now().UnixMilli()
	}
	return c.transport.Send(KindAction, a)
}

// eventLoop consumes the transport stream until it closes, then tears
// the channel down. The transport is released on every exit path.
func (c *Channel) eventLoop(roomID string, events <-chan Event, loopDone chan struct{}) {
	defer close(loopDone)
	defer c.transport.Close()

	for ev := range events {
		switch e := ev.(type) {
		case PresenceSync:
			c.metrics.ChannelEvent("presence_sync")
			c.applySync(e.Peers)

		case PeerJoined:
			c.metrics.ChannelEvent("join")
			toast.WithTitle(c.notifier, toast.LevelInfo,
				"User joined", fmt.Sprintf("%s joined the collaboration", peerName(e.Peer)))

		case PeerLeft:
			c.metrics.ChannelEvent("leave")
			toast.WithTitle(c.notifier, toast.LevelInfo,
				"User left", fmt.Sprintf("%s left the collaboration", peerName(e.Peer)))

		case BroadcastEvent:
			c.metrics.ChannelEvent(e.Kind)
			c.handleBroadcast(e)

		default:
			c.logger.Warn("unknown realtime event", "room", roomID, "event", fmt.Sprintf("%T", ev))
		}
	}

	c.mu.Lock()
	// Only tear down our own connection; a newer Connect may already
	// own the channel.
	wasConnected := false
	if c.loopDone == loopDone {
		wasConnected = c.state == Connected
		c.state = Disconnected
		c.peers = make(map[string]Peer)
		c.loopDone = nil
	}
	c.mu.Unlock()

	if wasConnected {
		c.logger.Info("room connection closed", "room", roomID)
	}
}

// applySync replaces the whole roster. Full replace keeps duplicate
// join/leave deliveries harmless.
func (c *Channel) applySync(peers []Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.peers = make(map[string]Peer, len(peers))
	for _, p := range peers {
		if p.ID == "" {
			continue
		}
		c.peers[p.ID] = p
	}
}

func (c *Channel) handleBroadcast(e BroadcastEvent) {
	switch e.Kind {
	case KindCursor:
		var msg struct {
			UserID   string         `json:"user_id"`
			Position CursorPosition `json:"position"`
		}
		if err := json.Unmarshal(e.Payload, &msg); err != nil {
			c.logger.Warn("bad cursor payload", "error", err)
			return
		}
		c.mu.Lock()
		if p, ok := c.peers[msg.UserID]; ok {
			pos := msg.Position
			p.Cursor = &pos
			c.peers[msg.UserID] = p
		}
		c.mu.Unlock()

	case KindAction:
		var a Action
		if err := json.Unmarshal(e.Payload, &a); err != nil {
			c.logger.Warn("bad action payload", "error", err)
			return
		}
		c.mu.Lock()
		h := c.handlers[a.Type]
		c.mu.Unlock()

		if h == nil {
			// Unrecognized action types are not fatal.
			c.logger.Debug("unhandled collaboration action", "type", a.Type)
			return
		}
		h(a)

	default:
		c.logger.Debug("unknown broadcast kind", "kind", e.Kind)
	}
}

func peerName(p Peer) string {
	if p.Name != "" {
		return p.Name
	}
	return "Unknown user"
}
