// Package optimistic makes social toggles feel instantaneous while
// guaranteeing eventual consistency with the platform.
//
// A Toggler applies the predicted result of a like or
// collection-membership toggle to every cached page containing the
// target in one synchronous pass, then issues the remote mutation in
// the background. On success the cache is left alone; a later
// invalidation confirms convergence. On failure the pre-toggle
// snapshot is restored exactly and the user is notified.
//
// Three guards protect the cache:
//
//   - an auth gate: unauthenticated toggles never touch the cache or
//     the network
//   - an in-flight guard: a duplicate toggle for the same target and
//     action is dropped, not queued, so double-clicks cannot
//     double-count
//   - a per-target version stamp: a failure observed after a newer
//     toggle has superseded it does not roll back the newer state
package optimistic
