package models

import "time"

// TournamentStatus mirrors the ENUM in the DB.
type TournamentStatus string

const (
	StatusLobby    TournamentStatus = "lobby"
	StatusActive   TournamentStatus = "active"
	StatusFinished TournamentStatus = "finished"
)

// Tournament is one competition instance. Rows are never deleted; a new
// tournament supersedes the previous one and the results page always reads
// the most recent row.
type Tournament struct {
	ID                int              `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	Status            TournamentStatus `json:"status" db:"status"`
	CurrentGame       int              `json:"current_game" db:"current_game"`
	TotalGames        int              `json:"total_games" db:"total_games"`
	PlacementConfig   []int64          `json:"placement_config" db:"placement_config"`
	KillPointsPerKill int              `json:"kill_points_per_kill" db:"kill_points_per_kill"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// DefaultPlacementConfig is the standard points curve used when a tournament
// is created without an explicit one.
func DefaultPlacementConfig() []int64 {
	return []int64{15, 12, 10, 8, 6, 5, 4, 3, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1}
}

// PlacementPoints returns the points awarded for a 1-based placement rank.
// Placements beyond the configured curve score zero.
func (t *Tournament) PlacementPoints(placement int) int {
	if placement < 1 || placement > len(t.PlacementConfig) {
		return 0
	}
	return int(t.PlacementConfig[placement-1])
}
