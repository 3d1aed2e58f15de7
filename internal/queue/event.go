// Package queue defines message payloads exchanged over the message broker
// and the consumer that processes them.
package queue

// UserRegisteredQueue is the durable queue registration events are routed to.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published after a registration transaction commits.
// It carries enough for downstream consumers (welcome notifications, audit
// logs) to act without querying the primary database.  It never contains
// credentials.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	FullName     string `json:"full_name"`
	RegisteredAt string `json:"registered_at"`
}
