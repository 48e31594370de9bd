package realtime

import "encoding/json"

// CursorPosition is a peer's last-known cursor location.
type CursorPosition struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Element string  `json:"element,omitempty"`
}

// Peer is one participant in a room, as published through presence.
type Peer struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Avatar string          `json:"avatar,omitempty"`
	Cursor *CursorPosition `json:"cursor,omitempty"`
}

// Action is an arbitrary collaboration message dispatched by type.
type Action struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	UserID    string          `json:"user_id"`
}

// Broadcast kinds carried by the transport.
const (
	KindCursor = "cursor"
	KindAction = "action"
)

// Event is a tagged transport event. The closed set of variants is
// PresenceSync, PeerJoined, PeerLeft and BroadcastEvent.
type Event interface {
	isEvent()
}

// PresenceSync replaces the full observed peer roster.
type PresenceSync struct {
	Peers []Peer
}

// PeerJoined reports a peer joining the room.
type PeerJoined struct {
	Peer Peer
}

// PeerLeft reports a peer leaving the room.
type PeerLeft struct {
	Peer Peer
}

// BroadcastEvent carries a typed broadcast payload from a peer.
type BroadcastEvent struct {
	Kind    string
	From    string
	Payload json.RawMessage
}

func (PresenceSync) isEvent()   {}
func (PeerJoined) isEvent()     {}
func (PeerLeft) isEvent()       {}
func (BroadcastEvent) isEvent() {}
