package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/repositories"
)

type TeamSeed struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
}

type CreateTournamentInput struct {
	Name              string     `json:"name"`
	TotalGames        int        `json:"total_games"`
	PlacementConfig   []int64    `json:"placement_config,omitempty"`
	KillPointsPerKill int        `json:"kill_points_per_kill,omitempty"`
	Teams             []TeamSeed `json:"teams"`
}

type TournamentService interface {
	// Create inserts a new tournament row with its seeded roster. The new
	// row supersedes earlier tournaments; nothing is deleted.
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetLatest(ctx context.Context) (*models.Tournament, error)
	ListTeams(ctx context.Context, tournamentID int) ([]models.Team, error)
	// Start moves lobby → active.
	Start(ctx context.Context, id int, actorEmail string) (*models.Tournament, error)
	// Reopen moves finished → active so a last-game score can be fixed. It
	// appends a tournament_reopen event in the same transaction so every
	// client converges through the log, not through a local flag.
	Reopen(ctx context.Context, id int, actorEmail string) (*models.Tournament, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	eventRepo      repositories.EventRepository
	hub            Broadcaster
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	eventRepo repositories.EventRepository,
	hub Broadcaster,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		eventRepo:      eventRepo,
		hub:            hub,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.TotalGames < 1 {
		return nil, ErrInvalidGamePlan
	}

	tournament := &models.Tournament{
		Name:              input.Name,
		Status:            models.StatusLobby,
		CurrentGame:       1,
		TotalGames:        input.TotalGames,
		PlacementConfig:   input.PlacementConfig,
		KillPointsPerKill: input.KillPointsPerKill,
	}
	if len(tournament.PlacementConfig) == 0 {
		tournament.PlacementConfig = models.DefaultPlacementConfig()
	}
	if tournament.KillPointsPerKill == 0 {
		tournament.KillPointsPerKill = 1
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	for i := range input.Teams {
		seed := input.Teams[i]
		team := &models.Team{
			TournamentID: tournament.ID,
			Name:         strings.TrimSpace(seed.Name),
			Players:      seed.Players,
		}
		if team.Name == "" {
			return nil, ErrValidationFailed
		}
		if err := s.teamRepo.Seed(ctx, nil, team); err != nil {
			return nil, fmt.Errorf("failed to seed team %q: %w", team.Name, err)
		}
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("total_games", tournament.TotalGames),
		slog.Int("teams", len(input.Teams)))
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) GetLatest(ctx context.Context) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) ListTeams(ctx context.Context, tournamentID int) ([]models.Team, error) {
	return s.teamRepo.ListByTournament(ctx, tournamentID)
}

func (s *tournamentService) Start(ctx context.Context, id int, actorEmail string) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusLobby {
		return nil, ErrInvalidStatusTransition
	}

	teams, err := s.teamRepo.ListByTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	hasPlayers := false
	for _, team := range teams {
		if len(team.Players) > 0 {
			hasPlayers = true
			break
		}
	}
	if !hasPlayers {
		return nil, ErrNoTeams
	}

	if err := s.tournamentRepo.UpdateProgress(ctx, nil, id, models.StatusActive, 1); err != nil {
		return nil, err
	}
	tournament.Status = models.StatusActive
	tournament.CurrentGame = 1

	s.logger.Info("tournament started", slog.Int("tournament_id", id), slog.String("actor", actorEmail))
	s.hub.BroadcastTournament(roomID(id), tournament)
	return tournament, nil
}

func (s *tournamentService) Reopen(ctx context.Context, id int, actorEmail string) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusFinished {
		return nil, ErrTournamentNotFinished
	}

	event, err := models.NewEvent(id, models.EventTournamentReopen, 0, actorEmail, struct{}{})
	if err != nil {
		return nil, err
	}

	currentGame := tournament.TotalGames
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if txErr := s.eventRepo.Append(ctx, tx, event); txErr != nil {
			return txErr
		}
		return s.tournamentRepo.UpdateProgress(ctx, tx, id, models.StatusActive, currentGame)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reopen tournament %d: %w", id, err)
	}
	tournament.Status = models.StatusActive
	tournament.CurrentGame = currentGame

	s.logger.Info("tournament reopened", slog.Int("tournament_id", id), slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(id), event)
	s.hub.BroadcastTournament(roomID(id), tournament)
	return tournament, nil
}

// withTx runs fn inside a transaction; a nil handle degrades to
// non-transactional execution against the repositories' own connections.
func (s *tournamentService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fn(nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// roomID is the realtime channel name for a tournament.
func roomID(tournamentID int) string {
	return strconv.Itoa(tournamentID)
}
