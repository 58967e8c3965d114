package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/repositories"
)

// PlacementResult is one admin-entered result line for a game end: final
// rank plus the kill count. Points are computed server-side from the
// tournament config so every payload in the ledger is canonical.
type PlacementResult struct {
	TeamID    int `json:"team_id"`
	Placement int `json:"placement"`
	Kills     int `json:"kills"`
}

// OverrideInput corrects one team's entry for one game after the fact.
type OverrideInput struct {
	TeamID          int `json:"team_id"`
	GameNumber      int `json:"game_number"`
	Kills           int `json:"kills"`
	PlacementPoints int `json:"placement_points"`
}

// AdjustInput is a manual tournament-wide bonus or penalty for one team.
type AdjustInput struct {
	TeamID               int `json:"team_id"`
	KillPointsDelta      int `json:"kill_points_delta"`
	PlacementPointsDelta int `json:"placement_points_delta"`
}

// ScoringService owns every write to the event ledger. Appended events are
// never edited or deleted; corrections are new events and undo flips a flag.
type ScoringService interface {
	// RecordGameEnd appends the canonical result of the current game and
	// advances the game plan in the same transaction.
	RecordGameEnd(ctx context.Context, tournamentID int, placements []PlacementResult, actorEmail string) (*models.TournamentEvent, error)
	OverrideGameScore(ctx context.Context, tournamentID int, input OverrideInput, actorEmail string) (*models.TournamentEvent, error)
	AdjustPoints(ctx context.Context, tournamentID int, input AdjustInput, actorEmail string) (*models.TournamentEvent, error)
	RemoveTeam(ctx context.Context, tournamentID, teamID int, actorEmail string) (*models.TournamentEvent, error)
	// UndoLastAction marks the most recent non-undone event undone and
	// returns it. When nothing is undoable it returns (nil, nil): a no-op,
	// not an error.
	UndoLastAction(ctx context.Context, tournamentID int, actorEmail string) (*models.TournamentEvent, error)
	CanUndo(ctx context.Context, tournamentID int) (bool, error)
}

type scoringService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	eventRepo      repositories.EventRepository
	hub            Broadcaster
	logger         *slog.Logger
}

func NewScoringService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	eventRepo repositories.EventRepository,
	hub Broadcaster,
	logger *slog.Logger,
) ScoringService {
	return &scoringService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		eventRepo:      eventRepo,
		hub:            hub,
		logger:         logger,
	}
}

func (s *scoringService) RecordGameEnd(ctx context.Context, tournamentID int, placements []PlacementResult, actorEmail string) (*models.TournamentEvent, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}
	if len(placements) == 0 {
		return nil, ErrNoPlacements
	}

	roster, err := s.rosterIndex(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	payload := models.GameEndPayload{GameNumber: tournament.CurrentGame}
	seen := make(map[int]bool, len(placements))
	for _, in := range placements {
		if !roster[in.TeamID] {
			return nil, ErrTeamNotInTournament
		}
		if seen[in.TeamID] {
			return nil, ErrDuplicatePlacementTeam
		}
		seen[in.TeamID] = true
		payload.Placements = append(payload.Placements, models.PlacementEntry{
			TeamID:          in.TeamID,
			Placement:       in.Placement,
			Kills:           in.Kills,
			KillPoints:      in.Kills * tournament.KillPointsPerKill,
			PlacementPoints: tournament.PlacementPoints(in.Placement),
		})
	}

	event, err := models.NewEvent(tournamentID, models.EventGameEnd, tournament.CurrentGame, actorEmail, payload)
	if err != nil {
		return nil, err
	}

	nextGame := tournament.CurrentGame + 1
	nextStatus := models.StatusActive
	if tournament.CurrentGame >= tournament.TotalGames {
		nextStatus = models.StatusFinished
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if txErr := s.eventRepo.Append(ctx, tx, event); txErr != nil {
			return txErr
		}
		return s.tournamentRepo.UpdateProgress(ctx, tx, tournamentID, nextStatus, nextGame)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record game end: %w", err)
	}
	tournament.Status = nextStatus
	tournament.CurrentGame = nextGame

	s.logger.Info("game ended",
		slog.Int("tournament_id", tournamentID),
		slog.Int("game_number", event.GameNumber),
		slog.Int("teams_scored", len(payload.Placements)),
		slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(tournamentID), event)
	s.hub.BroadcastTournament(roomID(tournamentID), tournament)
	return event, nil
}

func (s *scoringService) OverrideGameScore(ctx context.Context, tournamentID int, input OverrideInput, actorEmail string) (*models.TournamentEvent, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if input.GameNumber < 1 || input.GameNumber > tournament.TotalGames {
		return nil, ErrInvalidGameNumber
	}
	if err := s.requireTeam(ctx, tournamentID, input.TeamID); err != nil {
		return nil, err
	}

	payload := models.ScoreOverridePayload{
		TeamID:          input.TeamID,
		GameNumber:      input.GameNumber,
		Kills:           input.Kills,
		KillPoints:      input.Kills * tournament.KillPointsPerKill,
		PlacementPoints: input.PlacementPoints,
	}
	event, err := models.NewEvent(tournamentID, models.EventGameScoreOverride, input.GameNumber, actorEmail, payload)
	if err != nil {
		return nil, err
	}
	if err := s.eventRepo.Append(ctx, nil, event); err != nil {
		return nil, fmt.Errorf("failed to append override: %w", err)
	}

	s.logger.Info("game score overridden",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", input.TeamID),
		slog.Int("game_number", input.GameNumber),
		slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(tournamentID), event)
	return event, nil
}

func (s *scoringService) AdjustPoints(ctx context.Context, tournamentID int, input AdjustInput, actorEmail string) (*models.TournamentEvent, error) {
	if input.KillPointsDelta == 0 && input.PlacementPointsDelta == 0 {
		return nil, ErrEmptyAdjustment
	}
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	if err := s.requireTeam(ctx, tournamentID, input.TeamID); err != nil {
		return nil, err
	}

	payload := models.PointsAdjustPayload{
		TeamID:               input.TeamID,
		KillPointsDelta:      input.KillPointsDelta,
		PlacementPointsDelta: input.PlacementPointsDelta,
	}
	event, err := models.NewEvent(tournamentID, models.EventPointsAdjust, 0, actorEmail, payload)
	if err != nil {
		return nil, err
	}
	if err := s.eventRepo.Append(ctx, nil, event); err != nil {
		return nil, fmt.Errorf("failed to append adjustment: %w", err)
	}

	s.logger.Info("points adjusted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", input.TeamID),
		slog.Int("kill_delta", input.KillPointsDelta),
		slog.Int("placement_delta", input.PlacementPointsDelta),
		slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(tournamentID), event)
	return event, nil
}

func (s *scoringService) RemoveTeam(ctx context.Context, tournamentID, teamID int, actorEmail string) (*models.TournamentEvent, error) {
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	if err := s.requireTeam(ctx, tournamentID, teamID); err != nil {
		return nil, err
	}

	event, err := models.NewEvent(tournamentID, models.EventTeamRemove, 0, actorEmail, models.TeamRemovePayload{TeamID: teamID})
	if err != nil {
		return nil, err
	}
	if err := s.eventRepo.Append(ctx, nil, event); err != nil {
		return nil, fmt.Errorf("failed to append team removal: %w", err)
	}

	s.logger.Info("team removed from standings",
		slog.Int("tournament_id", tournamentID),
		slog.Int("team_id", teamID),
		slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(tournamentID), event)
	return event, nil
}

func (s *scoringService) UndoLastAction(ctx context.Context, tournamentID int, actorEmail string) (*models.TournamentEvent, error) {
	event, err := s.eventRepo.LatestUndoable(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoUndoableEvent) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if txErr := s.eventRepo.MarkUndone(ctx, tx, event.ID, actorEmail, now); txErr != nil {
			return txErr
		}
		// undoing a game_end rewinds the game plan to the undone game
		if event.EventType == models.EventGameEnd {
			return s.tournamentRepo.UpdateProgress(ctx, tx, tournamentID, models.StatusActive, event.GameNumber)
		}
		return nil
	})
	if err != nil {
		// lost a concurrent undo race: another admin flipped this event
		// between the read and the write, the ledger already holds the
		// outcome this undo wanted
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to undo event %d: %w", event.ID, err)
	}
	event.Undone = true
	event.UndoneBy = &actorEmail
	event.UndoneAt = &now

	s.logger.Info("action undone",
		slog.Int("tournament_id", tournamentID),
		slog.Int64("event_id", event.ID),
		slog.String("event_type", string(event.EventType)),
		slog.String("actor", actorEmail))
	s.hub.BroadcastEvent(roomID(tournamentID), event)
	if event.EventType == models.EventGameEnd {
		if tournament, getErr := s.getTournament(ctx, tournamentID); getErr == nil {
			s.hub.BroadcastTournament(roomID(tournamentID), tournament)
		}
	}
	return event, nil
}

func (s *scoringService) CanUndo(ctx context.Context, tournamentID int) (bool, error) {
	_, err := s.eventRepo.LatestUndoable(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoUndoableEvent) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *scoringService) getTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *scoringService) rosterIndex(ctx context.Context, tournamentID int) (map[int]bool, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	index := make(map[int]bool, len(teams))
	for _, team := range teams {
		index[team.ID] = true
	}
	return index, nil
}

func (s *scoringService) requireTeam(ctx context.Context, tournamentID, teamID int) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	if team.TournamentID != tournamentID {
		return ErrTeamNotInTournament
	}
	return nil
}

// withTx runs fn inside a transaction; a nil handle degrades to
// non-transactional execution against the repositories' own connections.
func (s *scoringService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
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
