package models

import "time"

// PresenceRecord is one connected admin. Ephemeral: created on subscribe,
// refreshed by heartbeat, destroyed on disconnect or timeout. Never
// persisted.
type PresenceRecord struct {
	Email    string    `json:"email"`
	OnlineAt time.Time `json:"online_at"`
}

// LockState is the advisory "a game is being scored" flag shared by all
// admins of a tournament. It is UI-enforced, not a mutex: two admins racing
// past it are resolved by event-store order, not by the lock.
type LockState struct {
	Locked   bool   `json:"locked"`
	LockedBy string `json:"locked_by,omitempty"`
}
