package models

import "time"

// ActivityLogEntry is a derived, human-readable view of one logged action.
// Entries are never persisted as a separate source of truth: the whole log
// is regenerable from the event stream alone.
type ActivityLogEntry struct {
	ID          string    `json:"id"`
	AdminEmail  string    `json:"admin_email"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
