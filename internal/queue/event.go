// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the auth.events queue.
const (
    EventUserRegistered = "user.registered"
    EventRolePromoted   = "user.promoted"
)

// AuthEvent is published when the directory changes: a first login creates
// a user, or an admin promotes one. It contains enough information for
// downstream consumers to log, notify or trigger analytics without
// querying the primary database.
type AuthEvent struct {
    Type  string `json:"type"`
    UID   string `json:"uid,omitempty"`
    Email string `json:"email"`
    Role  string `json:"role"`
    At    string `json:"at"`
}
