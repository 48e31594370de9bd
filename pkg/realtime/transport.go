package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Wire frame exchanged with the platform realtime endpoint. Every
// frame carries a type tag; broadcasts carry the event kind.
type wireFrame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Event   string          `json:"event,omitempty"`
	From    string          `json:"from,omitempty"`
	Peer    *Peer           `json:"peer,omitempty"`
	Peers   []Peer          `json:"peers,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame type tags.
const (
	frameSubscribed   = "subscribed"
	framePresenceSync = "presence_sync"
	frameJoin         = "join"
	frameLeave        = "leave"
	frameBroadcast    = "broadcast"
	frameTrack        = "track"
)

// WebsocketTransport connects one room over the platform's realtime
// websocket endpoint. One transport serves one subscription; create a
// new transport per Connect attempt.
type WebsocketTransport struct {
	endpoint     string
	anonKey      string
	dialer       *websocket.Dialer
	logger       *slog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	ackTimeout   time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan Event
	closed bool
}

// TransportOption configures a WebsocketTransport.
type TransportOption func(*WebsocketTransport)

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *WebsocketTransport) {
		t.dialer = d
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *WebsocketTransport) {
		t.logger = l
	}
}

// WithTimeouts sets the read and write deadlines.
func WithTimeouts(read, write time.Duration) TransportOption {
	return func(t *WebsocketTransport) {
		t.readTimeout = read
		t.writeTimeout = write
	}
}

// NewWebsocketTransport creates a transport for the realtime endpoint,
// e.g. "ws://localhost:54321/realtime/v1/ws".
func NewWebsocketTransport(endpoint, anonKey string, opts ...TransportOption) *WebsocketTransport {
	t := &WebsocketTransport{
		endpoint:     endpoint,
		anonKey:      anonKey,
		dialer:       websocket.DefaultDialer,
		logger:       slog.Default(),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		ackTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe implements Transport. It dials the endpoint, waits for the
// subscribe acknowledgment, and starts the read loop feeding the
// returned event stream. The stream is closed when the connection
// drops or Close is called.
func (t *WebsocketTransport) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("realtime: bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if t.anonKey != "" {
		header.Set("apikey", t.anonKey)
	}

	conn, _, err := t.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	// The server acknowledges the subscription before anything else.
	conn.SetReadDeadline(time.Now().Add(t.ackTimeout))
	var ack wireFrame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime: subscribe ack: %w", err)
	}
	if ack.Type != frameSubscribed {
		conn.Close()
		return nil, fmt.Errorf("realtime: unexpected ack frame %q", ack.Type)
	}

	events := make(chan Event, 16)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("realtime: transport closed")
	}
	t.conn = conn
	t.events = events
	t.mu.Unlock()

	go t.readLoop(conn, events)
	return events, nil
}

// Track implements Transport: publishes local presence metadata.
func (t *WebsocketTransport) Track(local Peer) error {
	return t.writeFrame(wireFrame{
		Type: frameTrack,
		Ref:  uuid.NewString(),
		Peer: &local,
	})
}

// Send implements Transport: broadcasts a typed payload to the room.
func (t *WebsocketTransport) Send(kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode broadcast: %w", err)
	}
	return t.writeFrame(wireFrame{
		Type:    frameBroadcast,
		Ref:     uuid.NewString(),
		Event:   kind,
		Payload: raw,
	})
}

// Close implements Transport. Idempotent; ends the read loop, which
// closes the event stream.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *WebsocketTransport) writeFrame(f wireFrame) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()

	if closed || conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("realtime: write: %w", err)
	}
	return nil
}

// readLoop converts wire frames into tagged events until the
// connection drops. Transport delivery order is preserved; nothing is
// buffered beyond the stream's own capacity.
func (t *WebsocketTransport) readLoop(conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(t.readTimeout))

		var f wireFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				t.logger.Error("read error", "error", err)
			}
			return
		}

		switch f.Type {
		case framePresenceSync:
			events <- PresenceSync{Peers: f.Peers}

		case frameJoin:
			if f.Peer != nil {
				events <- PeerJoined{Peer: *f.Peer}
			}

		case frameLeave:
			if f.Peer != nil {
				events <- PeerLeft{Peer: *f.Peer}
			}

		case frameBroadcast:
			events <- BroadcastEvent{Kind: f.Event, From: f.From, Payload: f.Payload}

		default:
			t.logger.Warn("unknown frame type", "type", f.Type)
		}
	}
}
