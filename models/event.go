package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags the variant carried in TournamentEvent.EventData.
type EventType string

const (
	EventGameEnd           EventType = "game_end"
	EventGameScoreOverride EventType = "game_score_override"
	EventPointsAdjust      EventType = "points_adjust"
	EventTeamRemove        EventType = "team_remove"
	EventTournamentReopen  EventType = "tournament_reopen"
)

// TournamentEvent is the append-only unit of truth. The log is never edited
// or deleted; corrections are always new events, and undo flips the undone
// flag while keeping the record for audit. Insertion order (the serial id)
// is the authoritative event order.
type TournamentEvent struct {
	ID           int64           `json:"id" db:"id"`
	TournamentID int             `json:"tournament_id" db:"tournament_id"`
	EventType    EventType       `json:"event_type" db:"event_type"`
	EventData    json.RawMessage `json:"event_data" db:"event_data"`
	GameNumber   int             `json:"game_number" db:"game_number"`
	ActorEmail   string          `json:"actor_email" db:"actor_email"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	Undone       bool            `json:"undone" db:"undone"`
	UndoneBy     *string         `json:"undone_by,omitempty" db:"undone_by"`
	UndoneAt     *time.Time      `json:"undone_at,omitempty" db:"undone_at"`
}

// PlacementEntry is one team's result line within a single game.
type PlacementEntry struct {
	TeamID          int `json:"team_id"`
	Placement       int `json:"placement"`
	Kills           int `json:"kills"`
	KillPoints      int `json:"kill_points"`
	PlacementPoints int `json:"placement_points"`
}

// GameEndPayload is the canonical result of a completed game.
type GameEndPayload struct {
	GameNumber int              `json:"game_number"`
	Placements []PlacementEntry `json:"placements"`
}

// ScoreOverridePayload corrects one team's entry for one game after the
// fact. It supersedes the matching line in projection without mutating the
// original game_end event.
type ScoreOverridePayload struct {
	TeamID          int `json:"team_id"`
	GameNumber      int `json:"game_number"`
	Kills           int `json:"kills"`
	KillPoints      int `json:"kill_points"`
	PlacementPoints int `json:"placement_points"`
}

// PointsAdjustPayload is a manual tournament-wide bonus or penalty. Deltas
// are additive and cumulative across multiple adjust events, so their
// arrival order never matters.
type PointsAdjustPayload struct {
	TeamID               int `json:"team_id"`
	KillPointsDelta      int `json:"kill_points_delta"`
	PlacementPointsDelta int `json:"placement_points_delta"`
}

// TeamRemovePayload soft-removes a team from all subsequent standings while
// its per-game history stays in the log.
type TeamRemovePayload struct {
	TeamID int `json:"team_id"`
}

// NewEvent builds an event with its payload marshalled into EventData.
// The store assigns id and created_at on append.
func NewEvent(tournamentID int, eventType EventType, gameNumber int, actorEmail string, payload interface{}) (*TournamentEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &TournamentEvent{
		TournamentID: tournamentID,
		EventType:    eventType,
		EventData:    data,
		GameNumber:   gameNumber,
		ActorEmail:   actorEmail,
	}, nil
}

func (e *TournamentEvent) GameEnd() (*GameEndPayload, error) {
	var p GameEndPayload
	if err := json.Unmarshal(e.EventData, &p); err != nil {
		return nil, fmt.Errorf("event %d: malformed game_end payload: %w", e.ID, err)
	}
	return &p, nil
}

func (e *TournamentEvent) ScoreOverride() (*ScoreOverridePayload, error) {
	var p ScoreOverridePayload
	if err := json.Unmarshal(e.EventData, &p); err != nil {
		return nil, fmt.Errorf("event %d: malformed game_score_override payload: %w", e.ID, err)
	}
	return &p, nil
}

func (e *TournamentEvent) PointsAdjust() (*PointsAdjustPayload, error) {
	var p PointsAdjustPayload
	if err := json.Unmarshal(e.EventData, &p); err != nil {
		return nil, fmt.Errorf("event %d: malformed points_adjust payload: %w", e.ID, err)
	}
	return &p, nil
}

func (e *TournamentEvent) TeamRemove() (*TeamRemovePayload, error) {
	var p TeamRemovePayload
	if err := json.Unmarshal(e.EventData, &p); err != nil {
		return nil, fmt.Errorf("event %d: malformed team_remove payload: %w", e.ID, err)
	}
	return &p, nil
}
