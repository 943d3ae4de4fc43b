// Package apiruntime models the API Runtime external collaborator
// (spec.md §6): REST handle, availability/inactivity-timer handle, and
// address cache. Only the availability handle's inactivity timer is
// touched by the orchestrator directly (spec.md §4.7, §4.8); the rest
// is exposed purely as an interface boundary.
package apiruntime

import "context"

// Availability is the subset of the API Runtime the orchestrator drives
// directly: suspend/unsuspend around network changes, offline
// signalling, and the inactivity timer that resets on any command
// while disconnected and starts when the tunnel becomes Disconnected
// (spec.md §4.8 step 5).
type Availability interface {
	Suspend()
	Unsuspend()
	SetOffline(offline bool)
	StartInactivityTimer()
	StopInactivityTimer()
	ResetInactivityTimer()
	ResumeBackground()
	NextAPIEndpoint(ctx context.Context) error
}

// Runtime bundles the REST handle, availability handle, and address
// cache the orchestrator's collaborators need. The REST client and
// address cache are opaque beyond this interface boundary: the
// orchestrator core never calls REST endpoints directly.
type Runtime interface {
	Availability() Availability
}
