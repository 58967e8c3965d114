package localstate

import (
	"path/filepath"
	"testing"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine() *Machine {
	tournament := &models.Tournament{
		ID:                1,
		Status:            models.StatusLobby,
		CurrentGame:       1,
		TotalGames:        2,
		PlacementConfig:   []int64{10, 6, 4},
		KillPointsPerKill: 1,
	}
	teams := []models.Team{
		{ID: 1, Name: "Alpha", Players: []string{"a1", "a2"}},
		{ID: 2, Name: "Bravo", Players: []string{"b1", "b2"}},
	}
	return New(tournament, teams)
}

func TestStartRequiresTeams(t *testing.T) {
	tournament := &models.Tournament{Status: models.StatusLobby, TotalGames: 2}
	m := New(tournament, nil)
	assert.ErrorIs(t, m.Start(), ErrNoTeams)

	m = newTestMachine()
	require.NoError(t, m.Start())
	assert.Equal(t, models.StatusActive, m.Status())
	assert.Equal(t, 1, m.CurrentGame())
}

func TestStartOnlyFromLobby(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), ErrTournamentNotActive)
}

func TestKillAndEliminationCounters(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Start())

	require.NoError(t, m.RecordKill(1))
	require.NoError(t, m.RecordKill(1))
	assert.ErrorIs(t, m.RecordKill(99), ErrUnknownTeam)

	require.NoError(t, m.EliminatePlayer(2, 0))
	teams := m.Teams()
	assert.True(t, teams[1].Alive, "one player down, team still alive")

	require.NoError(t, m.EliminatePlayer(2, 1))
	teams = m.Teams()
	assert.False(t, teams[1].Alive, "all players down eliminates the team")
	assert.ErrorIs(t, m.RecordKill(2), ErrTeamEliminated)
}

func TestEliminateTeam(t *testing.T) {
	m := newTestMachine()

	assert.ErrorIs(t, m.EliminateTeam(1), ErrTournamentNotActive)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.EliminateTeam(99), ErrUnknownTeam)

	require.NoError(t, m.EliminateTeam(1))
	teams := m.Teams()
	assert.False(t, teams[0].Alive)
	for _, alive := range teams[0].PlayersAlive {
		assert.False(t, alive, "a team wipe downs every player")
	}
	assert.ErrorIs(t, m.RecordKill(1), ErrTeamEliminated)

	// a second wipe of the same team is rejected, not silently absorbed
	assert.ErrorIs(t, m.EliminateTeam(1), ErrTeamEliminated)
}

func TestEndGameValidation(t *testing.T) {
	m := newTestMachine()

	_, err := m.EndGame([]PlacementInput{{TeamID: 1, Placement: 1}})
	assert.ErrorIs(t, err, ErrTournamentNotActive, "cannot end a game from the lobby")

	require.NoError(t, m.Start())
	_, err = m.EndGame(nil)
	assert.ErrorIs(t, err, ErrNoPlacements)
	_, err = m.EndGame([]PlacementInput{{TeamID: 42, Placement: 1}})
	assert.ErrorIs(t, err, ErrUnknownTeam)
}

func TestEndGameBuildsPayloadAndAdvances(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Start())
	require.NoError(t, m.RecordKill(1))
	require.NoError(t, m.RecordKill(1))

	payload, err := m.EndGame([]PlacementInput{
		{TeamID: 1, Placement: 1},
		{TeamID: 2, Placement: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, payload.GameNumber)
	require.Len(t, payload.Placements, 2)
	assert.Equal(t, 2, payload.Placements[0].Kills)
	assert.Equal(t, 2, payload.Placements[0].KillPoints)
	assert.Equal(t, 10, payload.Placements[0].PlacementPoints)
	assert.Equal(t, 6, payload.Placements[1].PlacementPoints)

	assert.Equal(t, 2, m.CurrentGame(), "advances to the next game")
	assert.Equal(t, models.StatusActive, m.Status())
	for _, team := range m.Teams() {
		assert.Zero(t, team.GameKills, "counters reset at the game boundary")
		assert.True(t, team.Alive)
	}
}

func TestEndGameFinishesAfterLastGame(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Start())

	_, err := m.EndGame([]PlacementInput{{TeamID: 1, Placement: 1}})
	require.NoError(t, err)
	_, err = m.EndGame([]PlacementInput{{TeamID: 2, Placement: 1}})
	require.NoError(t, err)

	assert.Equal(t, models.StatusFinished, m.Status())

	_, err = m.EndGame([]PlacementInput{{TeamID: 1, Placement: 1}})
	assert.ErrorIs(t, err, ErrTournamentNotActive, "only corrections are permitted once finished")
}

func TestReopen(t *testing.T) {
	m := newTestMachine()
	assert.ErrorIs(t, m.Reopen(), ErrTournamentNotDone)

	require.NoError(t, m.Start())
	_, err := m.EndGame([]PlacementInput{{TeamID: 1, Placement: 1}})
	require.NoError(t, err)
	_, err = m.EndGame([]PlacementInput{{TeamID: 2, Placement: 1}})
	require.NoError(t, err)

	require.NoError(t, m.Reopen())
	assert.Equal(t, models.StatusActive, m.Status())
	assert.Equal(t, 2, m.CurrentGame(), "reopen lands on the last game of the plan")
}

func TestSyncStatus(t *testing.T) {
	m := newTestMachine()
	assert.Equal(t, SyncOffline, m.SyncStatus())

	m.SetConnected(true)
	assert.Equal(t, SyncSynced, m.SyncStatus())

	m.MarkPending("w1")
	assert.Equal(t, SyncSyncing, m.SyncStatus())
	assert.Equal(t, 1, m.PendingCount())

	m.SetConnected(false)
	assert.Equal(t, SyncOffline, m.SyncStatus(), "offline wins over pending writes")

	m.SetConnected(true)
	m.ConfirmPending("w1")
	assert.Equal(t, SyncSynced, m.SyncStatus())
}

func TestApplyProjectionReplayWins(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Start())
	require.NoError(t, m.RecordKill(1))
	_, err := m.EndGame([]PlacementInput{{TeamID: 1, Placement: 1}, {TeamID: 2, Placement: 2}})
	require.NoError(t, err)

	// the server-side replay disagrees: another admin's override landed first
	replayed := projection.Result{
		Teams: []projection.TeamStanding{
			{TeamID: 1, Name: "Alpha", TotalPoints: 8, Rank: 1},
			{TeamID: 2, Name: "Bravo", TotalPoints: 6, Rank: 2},
		},
	}
	serverRow := &models.Tournament{
		Status:            models.StatusActive,
		CurrentGame:       2,
		TotalGames:        2,
		PlacementConfig:   []int64{10, 6, 4},
		KillPointsPerKill: 1,
	}
	m.ApplyProjection(replayed, serverRow)

	assert.Equal(t, replayed, m.Projection())
	divergence := m.Divergence()
	require.Len(t, divergence, 1)
	assert.Equal(t, 1, divergence[0].TeamID)
	assert.Equal(t, 11, divergence[0].Optimistic, "optimistic value the admin saw")
	assert.Equal(t, 8, divergence[0].Replayed, "value the replay settled on")

	// a second replay with the same numbers is quiet
	m.ApplyProjection(replayed, serverRow)
	assert.Empty(t, m.Divergence())
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "fallback.db"))
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.Load(1)
	require.NoError(t, err)
	assert.False(t, found)

	snapshot := Snapshot{
		Tournament:  &models.Tournament{ID: 1, Name: "Test Cup", Status: models.StatusActive},
		CurrentGame: 2,
		Projection: projection.Result{
			Teams: []projection.TeamStanding{{TeamID: 1, Name: "Alpha", TotalPoints: 12, Rank: 1}},
		},
	}
	require.NoError(t, store.Save(1, snapshot))

	loaded, found, err := store.Load(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snapshot.Projection, loaded.Projection)
	assert.Equal(t, "Test Cup", loaded.Tournament.Name)
	assert.False(t, loaded.SavedAt.IsZero())

	require.NoError(t, store.Delete(1))
	_, found, err = store.Load(1)
	require.NoError(t, err)
	assert.False(t, found)
}
