// Package toast delivers user-visible notifications.
//
// Every recoverable failure in the toolkit (a rejected mutation, a
// realtime connection that could not be established) surfaces here
// rather than propagating to the caller as a crash. The Notifier
// interface decouples producers from the UI: applications feed a Sink
// into their notification surface, tests use a Recorder.
package toast
