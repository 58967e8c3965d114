package projection

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTournament = &models.Tournament{
	ID:                1,
	Name:              "Test Cup",
	Status:            models.StatusActive,
	TotalGames:        2,
	PlacementConfig:   []int64{10, 6, 4},
	KillPointsPerKill: 1,
}

var testTeams = []models.Team{
	{ID: 1, TournamentID: 1, Name: "Alpha", Players: []string{"a1", "a2"}},
	{ID: 2, TournamentID: 1, Name: "Bravo", Players: []string{"b1", "b2"}},
	{ID: 3, TournamentID: 1, Name: "Charlie", Players: []string{"c1", "c2"}},
}

func mustEvent(t *testing.T, id int64, eventType models.EventType, gameNumber int, payload interface{}) models.TournamentEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.TournamentEvent{
		ID:           id,
		TournamentID: 1,
		EventType:    eventType,
		EventData:    data,
		GameNumber:   gameNumber,
		ActorEmail:   "admin@example.com",
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, int(id), 0, time.UTC),
	}
}

func gameEndEvent(t *testing.T, id int64, gameNumber int, placements []models.PlacementEntry) models.TournamentEvent {
	t.Helper()
	return mustEvent(t, id, models.EventGameEnd, gameNumber, models.GameEndPayload{
		GameNumber: gameNumber,
		Placements: placements,
	})
}

// scenarioEvents builds the worked example: placementConfig [10,6,4],
// 1 point per kill, two games.
func scenarioEvents(t *testing.T) []models.TournamentEvent {
	t.Helper()
	return []models.TournamentEvent{
		gameEndEvent(t, 1, 1, []models.PlacementEntry{
			{TeamID: 1, Placement: 1, Kills: 2, KillPoints: 2, PlacementPoints: 10},
			{TeamID: 2, Placement: 2, Kills: 1, KillPoints: 1, PlacementPoints: 6},
			{TeamID: 3, Placement: 3, Kills: 0, KillPoints: 0, PlacementPoints: 4},
		}),
		gameEndEvent(t, 2, 2, []models.PlacementEntry{
			{TeamID: 1, Placement: 3, Kills: 1, KillPoints: 1, PlacementPoints: 4},
			{TeamID: 2, Placement: 1, Kills: 3, KillPoints: 3, PlacementPoints: 10},
			{TeamID: 3, Placement: 2, Kills: 2, KillPoints: 2, PlacementPoints: 6},
		}),
	}
}

func totalsByTeam(result Result) map[int]int {
	out := make(map[int]int)
	for _, s := range result.Teams {
		out[s.TeamID] = s.TotalPoints
	}
	return out
}

func TestReduceScenarioTotals(t *testing.T) {
	events := scenarioEvents(t)

	afterGameOne := Reduce(testTournament, testTeams, events[:1], nil)
	assert.Equal(t, map[int]int{1: 12, 2: 7, 3: 4}, totalsByTeam(afterGameOne))

	final := Reduce(testTournament, testTeams, events, nil)
	assert.Equal(t, map[int]int{1: 17, 2: 20, 3: 12}, totalsByTeam(final))

	require.Len(t, final.Teams, 3)
	assert.Equal(t, 2, final.Teams[0].TeamID, "Bravo leads")
	assert.Equal(t, 1, final.Teams[0].Rank)
	assert.Len(t, final.GameHistory, 2)
}

func TestReduceDeterminism(t *testing.T) {
	events := scenarioEvents(t)
	events = append(events,
		mustEvent(t, 3, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 2, PlacementPointsDelta: 5}),
		mustEvent(t, 4, models.EventGameScoreOverride, 1, models.ScoreOverridePayload{TeamID: 3, GameNumber: 1, Kills: 2, KillPoints: 2, PlacementPoints: 4}),
	)

	first := Reduce(testTournament, testTeams, events, nil)
	second := Reduce(testTournament, testTeams, events, nil)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "repeated folds over the same event set must be byte-identical")
}

func TestReduceAdjustmentsCommute(t *testing.T) {
	adjusts := []models.TournamentEvent{
		mustEvent(t, 10, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 1, KillPointsDelta: 2}),
		mustEvent(t, 11, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 1, PlacementPointsDelta: -3}),
		mustEvent(t, 12, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 2, KillPointsDelta: 4}),
		mustEvent(t, 13, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 1, KillPointsDelta: 1}),
	}

	base := Reduce(testTournament, testTeams, adjusts, nil)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.TournamentEvent, len(adjusts))
		copy(shuffled, adjusts)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		permuted := Reduce(testTournament, testTeams, shuffled, nil)
		assert.Equal(t, totalsByTeam(base), totalsByTeam(permuted))
	}
}

func TestReduceOverridePrecedence(t *testing.T) {
	events := scenarioEvents(t)
	// correct Alpha's game-1 kills from 2 to 5
	events = append(events, mustEvent(t, 5, models.EventGameScoreOverride, 1, models.ScoreOverridePayload{
		TeamID: 1, GameNumber: 1, Kills: 5, KillPoints: 5, PlacementPoints: 10,
	}))

	result := Reduce(testTournament, testTeams, events, nil)

	game1 := result.GameHistory[0]
	var alpha *models.PlacementEntry
	for i := range game1.Placements {
		if game1.Placements[i].TeamID == 1 {
			alpha = &game1.Placements[i]
		}
	}
	require.NotNil(t, alpha)
	assert.Equal(t, 5, alpha.Kills, "projected game entry shows the overridden value")
	assert.Equal(t, 5, alpha.KillPoints)

	// 5+10 (overridden game 1) + 1+4 (game 2), not the original 2 kills on top
	assert.Equal(t, 20, totalsByTeam(result)[1])
}

func TestReduceOverrideLastWriterWinsByLogOrder(t *testing.T) {
	events := scenarioEvents(t)
	events = append(events,
		mustEvent(t, 6, models.EventGameScoreOverride, 2, models.ScoreOverridePayload{TeamID: 2, GameNumber: 2, Kills: 4, KillPoints: 4, PlacementPoints: 10}),
		mustEvent(t, 7, models.EventGameScoreOverride, 2, models.ScoreOverridePayload{TeamID: 2, GameNumber: 2, Kills: 6, KillPoints: 6, PlacementPoints: 10}),
	)

	result := Reduce(testTournament, testTeams, events, nil)
	assert.Equal(t, 23, totalsByTeam(result)[2], "later override fully replaces the earlier one")

	var bravo models.PlacementEntry
	for _, entry := range result.GameHistory[1].Placements {
		if entry.TeamID == 2 {
			bravo = entry
		}
	}
	assert.Equal(t, 6, bravo.Kills)
}

func TestReduceOverrideSynthesizesMissingEntry(t *testing.T) {
	events := []models.TournamentEvent{
		gameEndEvent(t, 1, 1, []models.PlacementEntry{
			{TeamID: 1, Placement: 1, Kills: 2, KillPoints: 2, PlacementPoints: 10},
		}),
		mustEvent(t, 2, models.EventGameScoreOverride, 1, models.ScoreOverridePayload{
			TeamID: 3, GameNumber: 1, Kills: 1, KillPoints: 1, PlacementPoints: 0,
		}),
	}

	result := Reduce(testTournament, testTeams, events, nil)
	require.Len(t, result.GameHistory, 1)
	require.Len(t, result.GameHistory[0].Placements, 2)
	assert.Equal(t, 3, result.GameHistory[0].Placements[1].TeamID, "synthesized entry appended at the end")
	assert.Equal(t, 1, totalsByTeam(result)[3])
}

func TestReduceTeamRemoval(t *testing.T) {
	events := scenarioEvents(t)
	remove := mustEvent(t, 8, models.EventTeamRemove, 0, models.TeamRemovePayload{TeamID: 3})
	events = append(events, remove)

	result := Reduce(testTournament, testTeams, events, nil)

	totals := totalsByTeam(result)
	assert.Equal(t, 17, totals[1], "removal leaves other teams unaffected")
	assert.Equal(t, 20, totals[2])
	assert.NotContains(t, totals, 3, "removed team dropped from standings")

	// history is never rewritten
	for _, game := range result.GameHistory {
		found := false
		for _, entry := range game.Placements {
			if entry.TeamID == 3 {
				found = true
			}
		}
		assert.True(t, found, "game %d keeps the removed team's entry", game.GameNumber)
	}
}

func TestReduceRemovalIdempotent(t *testing.T) {
	events := scenarioEvents(t)
	once := append([]models.TournamentEvent{},
		append(events, mustEvent(t, 8, models.EventTeamRemove, 0, models.TeamRemovePayload{TeamID: 3}))...)
	twice := append([]models.TournamentEvent{},
		append(once, mustEvent(t, 9, models.EventTeamRemove, 0, models.TeamRemovePayload{TeamID: 3}))...)

	assert.Equal(t,
		totalsByTeam(Reduce(testTournament, testTeams, once, nil)),
		totalsByTeam(Reduce(testTournament, testTeams, twice, nil)))
}

func TestReduceUndoRestoresEffectNotHistory(t *testing.T) {
	events := scenarioEvents(t)
	remove := mustEvent(t, 8, models.EventTeamRemove, 0, models.TeamRemovePayload{TeamID: 3})
	remove.Undone = true
	events = append(events, remove)

	result := Reduce(testTournament, testTeams, events, nil)
	assert.Contains(t, totalsByTeam(result), 3, "undoing the removal restores the team")
	assert.Equal(t, 12, totalsByTeam(result)[3])
}

func TestReduceSkipsUndoneEvents(t *testing.T) {
	events := scenarioEvents(t)
	events[1].Undone = true

	result := Reduce(testTournament, testTeams, events, nil)
	assert.Equal(t, map[int]int{1: 12, 2: 7, 3: 4}, totalsByTeam(result))
	assert.Len(t, result.GameHistory, 1)
}

func TestReduceSkipsMalformedPayload(t *testing.T) {
	events := scenarioEvents(t)
	events = append(events, models.TournamentEvent{
		ID:           99,
		TournamentID: 1,
		EventType:    models.EventGameEnd,
		EventData:    json.RawMessage(`{"placements": "not-a-list"`),
		GameNumber:   3,
		CreatedAt:    time.Now(),
	})

	result := Reduce(testTournament, testTeams, events, nil)
	assert.Len(t, result.GameHistory, 2, "one bad record cannot blank the leaderboard")
	assert.Equal(t, map[int]int{1: 17, 2: 20, 3: 12}, totalsByTeam(result))
}

func TestReduceIgnoresLifecycleEvents(t *testing.T) {
	events := scenarioEvents(t)
	events = append(events, mustEvent(t, 20, models.EventTournamentReopen, 0, struct{}{}))

	result := Reduce(testTournament, testTeams, events, nil)
	assert.Equal(t, map[int]int{1: 17, 2: 20, 3: 12}, totalsByTeam(result))
}

// A spectator joining mid-tournament fetches the full log and folds it; the
// outcome must match an admin that has been connected since game one.
func TestReduceSpectatorConsistency(t *testing.T) {
	events := scenarioEvents(t)
	events = append(events,
		mustEvent(t, 3, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 1, KillPointsDelta: 2}),
	)

	incumbent := Reduce(testTournament, testTeams, events, nil)

	fetched := make([]models.TournamentEvent, len(events))
	copy(fetched, events)
	lateJoiner := Reduce(testTournament, testTeams, fetched, nil)

	a, err := json.Marshal(incumbent)
	require.NoError(t, err)
	b, err := json.Marshal(lateJoiner)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReduceAppendNeverChangesUnrelatedValues(t *testing.T) {
	events := scenarioEvents(t)
	before := Reduce(testTournament, testTeams, events, nil)

	events = append(events, mustEvent(t, 30, models.EventPointsAdjust, 0, models.PointsAdjustPayload{TeamID: 2, KillPointsDelta: 1}))
	after := Reduce(testTournament, testTeams, events, nil)

	assert.Equal(t, totalsByTeam(before)[1], totalsByTeam(after)[1])
	assert.Equal(t, totalsByTeam(before)[3], totalsByTeam(after)[3])
	assert.Equal(t, before.GameHistory, after.GameHistory)
}
