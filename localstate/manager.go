package localstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/projection"
)

// Manager is the single-device fallback mode: when no server is reachable it
// keeps the whole ledger in process, folds it with the same reducer every
// client runs, and persists a snapshot after every change so a restart picks
// up exactly where the device left off. The same rules apply as online:
// events are append-only, undo flips a flag, standings are always a fresh
// fold of the log.
type Manager struct {
	mu sync.Mutex

	machine *Machine
	store   *SnapshotStore
	logger  *slog.Logger

	tournament  *models.Tournament
	teams       []models.Team
	events      []models.TournamentEvent
	nextEventID int64
	actorEmail  string
}

// NewManager restores the tournament's snapshot when one exists, otherwise
// starts fresh. A nil store disables persistence.
func NewManager(tournament *models.Tournament, teams []models.Team, store *SnapshotStore, actorEmail string, logger *slog.Logger) (*Manager, error) {
	mgr := &Manager{
		machine:     New(tournament, teams),
		store:       store,
		logger:      logger,
		tournament:  tournament,
		teams:       teams,
		nextEventID: 1,
		actorEmail:  actorEmail,
	}
	if store == nil {
		return mgr, nil
	}

	snapshot, found, err := store.Load(tournament.ID)
	if err != nil {
		return nil, err
	}
	if found {
		mgr.events = snapshot.Events
		for _, e := range mgr.events {
			if e.ID >= mgr.nextEventID {
				mgr.nextEventID = e.ID + 1
			}
		}
		if snapshot.Tournament != nil {
			mgr.tournament.Status = snapshot.Tournament.Status
			mgr.tournament.CurrentGame = snapshot.Tournament.CurrentGame
		}
		mgr.refoldLocked()
		logger.Info("restored local snapshot",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("events", len(mgr.events)),
			slog.Time("saved_at", snapshot.SavedAt))
	}
	return mgr, nil
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.machine.Start(); err != nil {
		return err
	}
	m.tournament.Status = models.StatusActive
	m.tournament.CurrentGame = 1
	return m.persistLocked()
}

func (m *Manager) RecordKill(teamID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.machine.RecordKill(teamID); err != nil {
		return err
	}
	return m.persistLocked()
}

func (m *Manager) EliminatePlayer(teamID, playerIdx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.machine.EliminatePlayer(teamID, playerIdx); err != nil {
		return err
	}
	return m.persistLocked()
}

func (m *Manager) EliminateTeam(teamID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.machine.EliminateTeam(teamID); err != nil {
		return err
	}
	return m.persistLocked()
}

// EndGame builds the canonical game_end payload from the live counters,
// appends it to the local ledger, and re-folds.
func (m *Manager) EndGame(placements []PlacementInput) (*models.TournamentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, err := m.machine.EndGame(placements)
	if err != nil {
		return nil, err
	}
	event, err := models.NewEvent(m.tournament.ID, models.EventGameEnd, payload.GameNumber, m.actorEmail, payload)
	if err != nil {
		return nil, err
	}
	m.appendLocked(event)
	m.tournament.Status = m.machine.Status()
	m.tournament.CurrentGame = m.machine.CurrentGame()
	m.refoldLocked()
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	return event, nil
}

func (m *Manager) Reopen() (*models.TournamentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.machine.Reopen(); err != nil {
		return nil, err
	}
	event, err := models.NewEvent(m.tournament.ID, models.EventTournamentReopen, 0, m.actorEmail, struct{}{})
	if err != nil {
		return nil, err
	}
	m.appendLocked(event)
	m.tournament.Status = models.StatusActive
	m.tournament.CurrentGame = m.machine.CurrentGame()
	m.refoldLocked()
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	return event, nil
}

// Undo flips the most recent non-undone event and re-folds. Returns
// (nil, nil) when there is nothing left to undo; the row itself is never
// deleted.
func (m *Manager) Undo() (*models.TournamentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var event *models.TournamentEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if !m.events[i].Undone {
			event = &m.events[i]
			break
		}
	}
	if event == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	actor := m.actorEmail
	event.Undone = true
	event.UndoneBy = &actor
	event.UndoneAt = &now

	if event.EventType == models.EventGameEnd {
		m.tournament.Status = models.StatusActive
		m.tournament.CurrentGame = event.GameNumber
	}
	m.refoldLocked()
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	clone := *event
	return &clone, nil
}

// Events returns a copy of the local ledger in insertion order.
func (m *Manager) Events() []models.TournamentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TournamentEvent(nil), m.events...)
}

func (m *Manager) Teams() []TeamState {
	return m.machine.Teams()
}

func (m *Manager) Projection() projection.Result {
	return m.machine.Projection()
}

func (m *Manager) Tournament() models.Tournament {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tournament
}

// Close persists a final snapshot and releases the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	if err := m.persistLocked(); err != nil {
		return err
	}
	return m.store.Close()
}

func (m *Manager) appendLocked(event *models.TournamentEvent) {
	event.ID = m.nextEventID
	m.nextEventID++
	event.CreatedAt = time.Now().UTC()
	m.events = append(m.events, *event)
}

func (m *Manager) refoldLocked() {
	result := projection.Reduce(m.tournament, m.teams, m.events, m.logger)
	m.machine.ApplyProjection(result, m.tournament)
}

func (m *Manager) persistLocked() error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(m.tournament.ID, Snapshot{
		Tournament:  m.tournament,
		Teams:       m.machine.Teams(),
		Events:      m.events,
		Projection:  m.machine.Projection(),
		CurrentGame: m.tournament.CurrentGame,
	})
}
