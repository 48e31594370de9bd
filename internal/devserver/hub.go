package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wire frame mirrored from the realtime transport.
type hubFrame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Event   string          `json:"event,omitempty"`
	From    string          `json:"from,omitempty"`
	Peer    *hubPeerMeta    `json:"peer,omitempty"`
	Peers   []hubPeerMeta   `json:"peers,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type hubPeerMeta struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type hubPeer struct {
	conn   *websocket.Conn
	meta   hubPeerMeta
	send   chan hubFrame
	closed bool // guarded by Hub.mu
}

type room struct {
	name  string
	peers map[*hubPeer]struct{}
}

// Hub is the realtime room registry: it accepts websocket
// subscriptions, relays presence and fans out broadcasts.
//
// All peer bookkeeping and fan-out happens under one mutex with
// non-blocking sends into per-peer buffers, so a slow or dying peer
// can neither stall a room nor receive a send after teardown.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local emulator: cross-origin is fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*room),
	}
}

// RoomSize reports the current peer count of a room.
func (h *Hub) RoomSize(roomName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[roomName]
	if !ok {
		return 0
	}
	return len(rm.peers)
}

// ServeHTTP upgrades the connection, acknowledges the subscription and
// runs the peer until it drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room")
	if roomName == "" {
		http.Error(w, "room required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", "error", err)
		return
	}

	peer := &hubPeer{
		conn: conn,
		send: make(chan hubFrame, 32),
	}

	// Acknowledge before anything else; the client's Subscribe blocks
	// on this frame.
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(hubFrame{Type: "subscribed"}); err != nil {
		conn.Close()
		return
	}

	go h.writeLoop(peer)
	h.readLoop(roomName, peer)
}

func (h *Hub) writeLoop(p *hubPeer) {
	for f := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := p.conn.WriteJSON(f); err != nil {
			return
		}
	}
}

func (h *Hub) readLoop(roomName string, p *hubPeer) {
	defer func() {
		h.leave(roomName, p)
		p.conn.Close()
	}()

	joined := false
	for {
		p.conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var f hubFrame
		if err := p.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Error("read error", "room", roomName, "error", err)
			}
			return
		}

		switch f.Type {
		case "track":
			if f.Peer == nil {
				continue
			}
			if !joined {
				joined = true
				h.join(roomName, p, *f.Peer)
			} else {
				h.retrack(roomName, p, *f.Peer)
			}

		case "broadcast":
			if !joined {
				continue
			}
			h.broadcast(roomName, p, f)

		default:
			h.logger.Warn("unknown frame type", "type", f.Type)
		}
	}
}

// sendLocked queues a frame for one peer. Hub.mu must be held.
func (h *Hub) sendLocked(roomName string, p *hubPeer, f hubFrame) {
	if p.closed {
		return
	}
	select {
	case p.send <- f:
	default:
		// Slow consumer; drop rather than stall the room.
		h.logger.Warn("dropping frame to slow peer", "room", roomName, "peer", p.meta.ID)
	}
}

// syncPresenceLocked sends the full roster to every peer in the room.
// Full-replace semantics keep duplicate deliveries harmless.
func (h *Hub) syncPresenceLocked(rm *room) {
	roster := make([]hubPeerMeta, 0, len(rm.peers))
	for p := range rm.peers {
		roster = append(roster, p.meta)
	}
	for p := range rm.peers {
		h.sendLocked(rm.name, p, hubFrame{Type: "presence_sync", Peers: roster})
	}
}

func (h *Hub) join(roomName string, p *hubPeer, meta hubPeerMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p.meta = meta
	rm, ok := h.rooms[roomName]
	if !ok {
		rm = &room{name: roomName, peers: make(map[*hubPeer]struct{})}
		h.rooms[roomName] = rm
	}
	for other := range rm.peers {
		h.sendLocked(roomName, other, hubFrame{Type: "join", Peer: &meta})
	}
	rm.peers[p] = struct{}{}
	h.syncPresenceLocked(rm)

	h.logger.Info("peer joined", "room", roomName, "peer", meta.ID)
}

func (h *Hub) retrack(roomName string, p *hubPeer, meta hubPeerMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p.meta = meta
	if rm, ok := h.rooms[roomName]; ok {
		h.syncPresenceLocked(rm)
	}
}

func (h *Hub) leave(roomName string, p *hubPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.send)
	}

	rm, ok := h.rooms[roomName]
	if !ok {
		return
	}
	if _, member := rm.peers[p]; !member {
		return
	}
	delete(rm.peers, p)
	if len(rm.peers) == 0 {
		// Room GC.
		delete(h.rooms, roomName)
		h.logger.Info("peer left", "room", roomName, "peer", p.meta.ID)
		return
	}

	meta := p.meta
	for other := range rm.peers {
		h.sendLocked(roomName, other, hubFrame{Type: "leave", Peer: &meta})
	}
	h.syncPresenceLocked(rm)

	h.logger.Info("peer left", "room", roomName, "peer", meta.ID)
}

// broadcast fans a frame out to every other peer in the room.
func (h *Hub) broadcast(roomName string, from *hubPeer, f hubFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[roomName]
	if !ok {
		return
	}
	out := hubFrame{
		Type:    "broadcast",
		Event:   f.Event,
		From:    from.meta.ID,
		Payload: f.Payload,
	}
	for p := range rm.peers {
		if p != from {
			h.sendLocked(roomName, p, out)
		}
	}
}
