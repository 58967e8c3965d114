package models

import "time"

// Team is a registered competing entity, seeded from registration data and
// consumed read-only afterwards. Removal happens via a team_remove event,
// never by deleting the row. Per-game alive/kill counters are ephemeral
// client state (see localstate), and point totals are always derived by the
// projection, never stored here.
type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Players      []string  `json:"players" db:"players"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
