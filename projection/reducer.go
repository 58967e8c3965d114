// Package projection folds the tournament event ledger into current
// standings. The fold is pure and deterministic: identical event sets yield
// identical output on every machine, which is what lets admin dashboards,
// spectator overlays and the server-rendered results page all compute their
// own copy and still agree bit for bit.
package projection

import (
	"log/slog"
	"sort"

	"github.com/apexscore/live-scoring/models"
)

// TeamStanding is one ranked row of the leaderboard. Point totals are always
// derived here, never read from storage.
type TeamStanding struct {
	TeamID          int      `json:"team_id"`
	Name            string   `json:"name"`
	Players         []string `json:"players"`
	KillPoints      int      `json:"kill_points"`
	PlacementPoints int      `json:"placement_points"`
	TotalPoints     int      `json:"total_points"`
	Rank            int      `json:"rank"`
}

// GameResult is the projected outcome of one completed game, overrides
// already applied.
type GameResult struct {
	GameNumber int                     `json:"game_number"`
	Placements []models.PlacementEntry `json:"placements"`
}

// Result is the full projected state: ranked standings plus per-game
// history. History keeps entries for removed teams; only the standings
// listing filters them out.
type Result struct {
	Teams       []TeamStanding `json:"teams"`
	GameHistory []GameResult   `json:"game_history"`
}

type overrideKey struct {
	teamID     int
	gameNumber int
}

// Reduce replays the full undone-filtered log. No incremental snapshot is
// ever trusted as ground truth, so there is nothing to drift.
//
// Order sensitivity: points_adjust deltas are summed (addition commutes) and
// team_remove is a set union (idempotent), so concurrent arrival order from
// multiple admins cannot change totals. Only game_score_override is
// order-sensitive; "last writer wins" is resolved by event-store insertion
// order (the serial id), never by client clocks.
func Reduce(tournament *models.Tournament, teams []models.Team, events []models.TournamentEvent, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	type adjust struct {
		kills      int
		placements int
	}
	adjustments := make(map[int]adjust)
	removed := make(map[int]bool)
	overrides := make(map[overrideKey]models.ScoreOverridePayload)
	var gameEnds []models.TournamentEvent

	for _, e := range events {
		if e.Undone {
			continue
		}
		switch e.EventType {
		case models.EventPointsAdjust:
			p, err := e.PointsAdjust()
			if err != nil {
				logger.Warn("skipping malformed event", slog.Int64("event_id", e.ID), slog.Any("error", err))
				continue
			}
			a := adjustments[p.TeamID]
			a.kills += p.KillPointsDelta
			a.placements += p.PlacementPointsDelta
			adjustments[p.TeamID] = a
		case models.EventTeamRemove:
			p, err := e.TeamRemove()
			if err != nil {
				logger.Warn("skipping malformed event", slog.Int64("event_id", e.ID), slog.Any("error", err))
				continue
			}
			removed[p.TeamID] = true
		case models.EventGameScoreOverride:
			p, err := e.ScoreOverride()
			if err != nil {
				logger.Warn("skipping malformed event", slog.Int64("event_id", e.ID), slog.Any("error", err))
				continue
			}
			// events arrive id-ascending, so a plain map write is
			// last-writer-wins by insertion order
			overrides[overrideKey{p.TeamID, p.GameNumber}] = *p
		case models.EventGameEnd:
			gameEnds = append(gameEnds, e)
		default:
			// lifecycle markers (tournament_reopen) and future variants
			// carry no score
		}
	}

	sort.SliceStable(gameEnds, func(i, j int) bool {
		if gameEnds[i].GameNumber != gameEnds[j].GameNumber {
			return gameEnds[i].GameNumber < gameEnds[j].GameNumber
		}
		if !gameEnds[i].CreatedAt.Equal(gameEnds[j].CreatedAt) {
			return gameEnds[i].CreatedAt.Before(gameEnds[j].CreatedAt)
		}
		return gameEnds[i].ID < gameEnds[j].ID
	})

	history := make([]GameResult, 0, len(gameEnds))
	for _, e := range gameEnds {
		payload, err := e.GameEnd()
		if err != nil {
			logger.Warn("skipping malformed event", slog.Int64("event_id", e.ID), slog.Any("error", err))
			continue
		}

		result := GameResult{GameNumber: payload.GameNumber}
		seen := make(map[int]bool, len(payload.Placements))
		for _, entry := range payload.Placements {
			seen[entry.TeamID] = true
			if ov, ok := overrides[overrideKey{entry.TeamID, payload.GameNumber}]; ok {
				entry.Kills = ov.Kills
				entry.KillPoints = ov.KillPoints
				entry.PlacementPoints = ov.PlacementPoints
			}
			result.Placements = append(result.Placements, entry)
		}
		// an override may target a team the original result never listed;
		// synthesize its entry at the end of the game's list
		synthesized := make([]models.PlacementEntry, 0)
		for key, ov := range overrides {
			if key.gameNumber != payload.GameNumber || seen[key.teamID] {
				continue
			}
			synthesized = append(synthesized, models.PlacementEntry{
				TeamID:          ov.TeamID,
				Kills:           ov.Kills,
				KillPoints:      ov.KillPoints,
				PlacementPoints: ov.PlacementPoints,
			})
		}
		sort.Slice(synthesized, func(i, j int) bool { return synthesized[i].TeamID < synthesized[j].TeamID })
		result.Placements = append(result.Placements, synthesized...)
		history = append(history, result)
	}

	totals := make(map[int]*TeamStanding, len(teams))
	standings := make([]TeamStanding, 0, len(teams))
	for _, team := range teams {
		if removed[team.ID] {
			continue
		}
		totals[team.ID] = &TeamStanding{TeamID: team.ID, Name: team.Name, Players: team.Players}
	}
	for _, game := range history {
		for _, entry := range game.Placements {
			if s, ok := totals[entry.TeamID]; ok {
				s.KillPoints += entry.KillPoints
				s.PlacementPoints += entry.PlacementPoints
			}
		}
	}
	for teamID, a := range adjustments {
		if s, ok := totals[teamID]; ok {
			s.KillPoints += a.kills
			s.PlacementPoints += a.placements
		}
	}
	for _, team := range teams {
		if s, ok := totals[team.ID]; ok {
			s.TotalPoints = s.KillPoints + s.PlacementPoints
			standings = append(standings, *s)
		}
	}

	// deterministic rank order: total desc, kill points desc, id asc
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].TotalPoints != standings[j].TotalPoints {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		if standings[i].KillPoints != standings[j].KillPoints {
			return standings[i].KillPoints > standings[j].KillPoints
		}
		return standings[i].TeamID < standings[j].TeamID
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}

	return Result{Teams: standings, GameHistory: history}
}
