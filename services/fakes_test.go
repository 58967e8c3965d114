package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/repositories"
)

// In-memory repository fakes. They ignore the SQLExecutor argument since
// there is no real transaction to join.

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now().UTC()
	clone := *t
	r.tournaments[t.ID] = &clone
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTournamentRepo) GetLatest(_ context.Context) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Tournament
	for _, t := range r.tournaments {
		if latest == nil || t.ID > latest.ID {
			latest = t
		}
	}
	if latest == nil {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateProgress(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus, currentGame int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.CurrentGame = currentGame
	return nil
}

func (r *fakeTournamentRepo) seed(t models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
	}
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	r.tournaments[t.ID] = &t
	return &t
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID int
	teams  map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{nextID: 1, teams: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) Seed(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.teams {
		if existing.TournamentID == team.TournamentID && existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = r.nextID
	r.nextID++
	team.CreatedAt = time.Now().UTC()
	clone := *team
	r.teams[team.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *team
	return &clone, nil
}

func (r *fakeTeamRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Team
	for id := 1; id < r.nextID; id++ {
		if team, ok := r.teams[id]; ok && team.TournamentID == tournamentID {
			out = append(out, *team)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID int64
	events []models.TournamentEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1}
}

func (r *fakeEventRepo) Append(_ context.Context, _ repositories.SQLExecutor, e *models.TournamentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now().UTC()
	e.Undone = false
	r.events = append(r.events, *e)
	return nil
}

func (r *fakeEventRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.TournamentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TournamentEvent
	for _, e := range r.events {
		if e.TournamentID == tournamentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) LatestUndoable(_ context.Context, tournamentID int) (*models.TournamentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].TournamentID == tournamentID && !r.events[i].Undone {
			clone := r.events[i]
			return &clone, nil
		}
	}
	return nil, repositories.ErrNoUndoableEvent
}

func (r *fakeEventRepo) MarkUndone(_ context.Context, _ repositories.SQLExecutor, eventID int64, actorEmail string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == eventID {
			// same guard as the UPDATE ... AND undone = FALSE clause
			if r.events[i].Undone {
				return repositories.ErrEventNotFound
			}
			r.events[i].Undone = true
			r.events[i].UndoneBy = &actorEmail
			r.events[i].UndoneAt = &at
			return nil
		}
	}
	return repositories.ErrEventNotFound
}

type fakeBroadcaster struct {
	mu          sync.Mutex
	events      []*models.TournamentEvent
	tournaments []*models.Tournament
}

func (b *fakeBroadcaster) BroadcastEvent(_ string, event *models.TournamentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroadcaster) BroadcastTournament(_ string, tournament *models.Tournament) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tournaments = append(b.tournaments, tournament)
}

func (b *fakeBroadcaster) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *fakeBroadcaster) tournamentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tournaments)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
