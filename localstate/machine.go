// Package localstate holds the optimistic client-side state machine. It is
// updated synchronously on every admin action for responsiveness, but is
// always provisional: the next replay of the projection over the confirmed
// log overwrites it. The log is ground truth, never this machine.
package localstate

import (
	"errors"
	"sync"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/projection"
)

var (
	ErrNoTeams             = errors.New("at least one team with a player is required to start")
	ErrNoPlacements        = errors.New("cannot end a game with no recorded placements")
	ErrTournamentNotActive = errors.New("tournament is not active")
	ErrTournamentNotDone   = errors.New("tournament is not finished")
	ErrUnknownTeam         = errors.New("unknown team")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrTeamEliminated      = errors.New("team is already eliminated this game")
)

// SyncStatus is the client-visible tri-state summarizing channel health and
// pending writes.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncSyncing SyncStatus = "syncing"
	SyncOffline SyncStatus = "offline"
)

// TeamState carries the in-game counters for one team during the current
// game. Reset at every game boundary.
type TeamState struct {
	TeamID       int      `json:"team_id"`
	Name         string   `json:"name"`
	Players      []string `json:"players"`
	PlayersAlive []bool   `json:"players_alive"`
	Alive        bool     `json:"alive"`
	GameKills    int      `json:"game_kills"`
}

// PlacementInput is an admin-entered final rank for one team; kills are
// taken from the machine's live counters.
type PlacementInput struct {
	TeamID    int `json:"team_id"`
	Placement int `json:"placement"`
}

// Divergence records one spot where an optimistic total was overwritten by
// replay, so the losing admin of a write conflict can see it happened.
type Divergence struct {
	TeamID     int `json:"team_id"`
	Optimistic int `json:"optimistic"`
	Replayed   int `json:"replayed"`
}

// Machine mirrors the tournament lifecycle locally. All methods are safe for
// concurrent use by the UI loop and the sync channel callback.
type Machine struct {
	mu sync.Mutex

	status            models.TournamentStatus
	currentGame       int
	totalGames        int
	placementConfig   []int64
	killPointsPerKill int

	teams     []*TeamState
	teamIndex map[int]*TeamState

	connected bool
	pending   map[string]time.Time

	optimisticTotals map[int]int
	authoritative    projection.Result
	divergence       []Divergence
}

func New(tournament *models.Tournament, teams []models.Team) *Machine {
	m := &Machine{
		status:            tournament.Status,
		currentGame:       tournament.CurrentGame,
		totalGames:        tournament.TotalGames,
		placementConfig:   tournament.PlacementConfig,
		killPointsPerKill: tournament.KillPointsPerKill,
		teamIndex:         make(map[int]*TeamState, len(teams)),
		pending:           make(map[string]time.Time),
		optimisticTotals:  make(map[int]int),
	}
	if m.currentGame < 1 {
		m.currentGame = 1
	}
	for _, t := range teams {
		m.addTeam(t)
	}
	return m
}

func (m *Machine) addTeam(t models.Team) {
	alive := make([]bool, len(t.Players))
	for i := range alive {
		alive[i] = true
	}
	ts := &TeamState{
		TeamID:       t.ID,
		Name:         t.Name,
		Players:      t.Players,
		PlayersAlive: alive,
		Alive:        len(t.Players) > 0,
	}
	m.teams = append(m.teams, ts)
	m.teamIndex[t.ID] = ts
}

func (m *Machine) Status() models.TournamentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) CurrentGame() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentGame
}

// Teams returns a copy of the current-game team states.
func (m *Machine) Teams() []TeamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TeamState, 0, len(m.teams))
	for _, t := range m.teams {
		copied := *t
		copied.Players = append([]string(nil), t.Players...)
		copied.PlayersAlive = append([]bool(nil), t.PlayersAlive...)
		out = append(out, copied)
	}
	return out
}

// Start moves lobby → active. Requires at least one team with a player;
// rejected locally before any event is emitted.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusLobby {
		return ErrTournamentNotActive
	}
	ok := false
	for _, t := range m.teams {
		if len(t.Players) > 0 {
			ok = true
			break
		}
	}
	if !ok {
		return ErrNoTeams
	}
	m.status = models.StatusActive
	m.currentGame = 1
	m.resetGameCountersLocked()
	return nil
}

func (m *Machine) RecordKill(teamID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusActive {
		return ErrTournamentNotActive
	}
	t, ok := m.teamIndex[teamID]
	if !ok {
		return ErrUnknownTeam
	}
	if !t.Alive {
		return ErrTeamEliminated
	}
	t.GameKills++
	return nil
}

// EliminatePlayer marks one player down; the team is eliminated once every
// player is down.
func (m *Machine) EliminatePlayer(teamID, playerIdx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusActive {
		return ErrTournamentNotActive
	}
	t, ok := m.teamIndex[teamID]
	if !ok {
		return ErrUnknownTeam
	}
	if playerIdx < 0 || playerIdx >= len(t.PlayersAlive) {
		return ErrUnknownPlayer
	}
	t.PlayersAlive[playerIdx] = false
	t.Alive = false
	for _, alive := range t.PlayersAlive {
		if alive {
			t.Alive = true
			break
		}
	}
	return nil
}

// EliminateTeam takes a whole squad out in one tap, for when the observer
// sees the wipe before the per-player calls catch up.
func (m *Machine) EliminateTeam(teamID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusActive {
		return ErrTournamentNotActive
	}
	t, ok := m.teamIndex[teamID]
	if !ok {
		return ErrUnknownTeam
	}
	if !t.Alive {
		return ErrTeamEliminated
	}
	for i := range t.PlayersAlive {
		t.PlayersAlive[i] = false
	}
	t.Alive = false
	return nil
}

// EndGame validates the admin-entered placements, builds the game_end
// payload (kills from the live counters, points from the tournament config),
// applies the result optimistically, and advances the game plan: next game
// while games remain, finished once the plan is exhausted. The caller is
// expected to append the returned payload to the ledger; this machine's
// totals stay provisional until replay confirms them.
func (m *Machine) EndGame(placements []PlacementInput) (*models.GameEndPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}
	if len(placements) == 0 {
		return nil, ErrNoPlacements
	}

	payload := &models.GameEndPayload{GameNumber: m.currentGame}
	for _, in := range placements {
		t, ok := m.teamIndex[in.TeamID]
		if !ok {
			return nil, ErrUnknownTeam
		}
		entry := models.PlacementEntry{
			TeamID:     in.TeamID,
			Placement:  in.Placement,
			Kills:      t.GameKills,
			KillPoints: t.GameKills * m.killPointsPerKill,
		}
		if in.Placement >= 1 && in.Placement <= len(m.placementConfig) {
			entry.PlacementPoints = int(m.placementConfig[in.Placement-1])
		}
		payload.Placements = append(payload.Placements, entry)
		m.optimisticTotals[in.TeamID] += entry.KillPoints + entry.PlacementPoints
	}

	if m.currentGame >= m.totalGames {
		m.currentGame = m.totalGames + 1
		m.status = models.StatusFinished
	} else {
		m.currentGame++
	}
	m.resetGameCountersLocked()
	return payload, nil
}

// Reopen moves finished → active so a last-game score can be fixed. The
// caller must emit the matching tournament_reopen event: all clients
// converge through the log, not through this local flag.
func (m *Machine) Reopen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.StatusFinished {
		return ErrTournamentNotDone
	}
	m.status = models.StatusActive
	if m.currentGame > m.totalGames {
		m.currentGame = m.totalGames
	}
	m.resetGameCountersLocked()
	return nil
}

func (m *Machine) resetGameCountersLocked() {
	for _, t := range m.teams {
		for i := range t.PlayersAlive {
			t.PlayersAlive[i] = true
		}
		t.Alive = len(t.Players) > 0
		t.GameKills = 0
	}
}

// MarkPending records an in-flight write before the append round-trips.
func (m *Machine) MarkPending(localID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[localID] = time.Now()
}

func (m *Machine) ConfirmPending(localID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, localID)
}

func (m *Machine) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Machine) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SyncStatus derives the tri-state indicator: offline when the channel is
// down, syncing while any local write is unconfirmed, synced otherwise.
func (m *Machine) SyncStatus() SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return SyncOffline
	}
	if len(m.pending) > 0 {
		return SyncSyncing
	}
	return SyncSynced
}

// ApplyProjection reconciles against a fresh replay of the confirmed log.
// The replayed projection always wins; any optimistic total it overwrites is
// surfaced through Divergence so the losing side of a write conflict can see
// its change was superseded.
func (m *Machine) ApplyProjection(result projection.Result, tournament *models.Tournament) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.divergence = m.divergence[:0]
	for _, standing := range result.Teams {
		if optimistic, ok := m.optimisticTotals[standing.TeamID]; ok && optimistic != standing.TotalPoints {
			m.divergence = append(m.divergence, Divergence{
				TeamID:     standing.TeamID,
				Optimistic: optimistic,
				Replayed:   standing.TotalPoints,
			})
		}
		m.optimisticTotals[standing.TeamID] = standing.TotalPoints
	}
	m.authoritative = result

	if tournament != nil {
		m.status = tournament.Status
		m.totalGames = tournament.TotalGames
		m.placementConfig = tournament.PlacementConfig
		m.killPointsPerKill = tournament.KillPointsPerKill
		if tournament.CurrentGame != m.currentGame {
			m.currentGame = tournament.CurrentGame
			m.resetGameCountersLocked()
		}
	}
}

// Projection returns the last reconciled (authoritative) result.
func (m *Machine) Projection() projection.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authoritative
}

// Divergence reports the conflicts detected by the most recent
// ApplyProjection.
func (m *Machine) Divergence() []Divergence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Divergence(nil), m.divergence...)
}
