// Package realtime provides the room-based presence/broadcast channel
// used for live collaboration and order-status updates.
//
// A Channel joins a named room, publishes the local user's presence,
// maintains the roster of connected peers, and exchanges typed
// broadcast messages (cursor positions, arbitrary action payloads).
// Transport events arrive as a stream of tagged variants consumed by
// one event-loop goroutine per connection; the wrapper never reorders
// or buffers them, and presence sync is a full roster replace so
// duplicate join/leave deliveries are harmless.
//
// Lifecycle: Disconnected -> Connect -> Connecting -> subscribe ack ->
// Connected (presence tracked) -> Disconnect or transport close ->
// Disconnected. A failed subscribe surfaces a "Connection failed"
// notification and leaves the channel Disconnected; retry is the
// caller's decision. The transport is released on every exit path.
package realtime
