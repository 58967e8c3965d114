package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/projection"
	"github.com/apexscore/live-scoring/repositories"
	"github.com/apexscore/live-scoring/storage"
	"golang.org/x/sync/errgroup"
)

// Scoreboard is the full public read: the tournament row, the roster, the
// complete event log, and the standings computed by the same fold every
// client runs. The projection is computed fresh on every read; no cached
// aggregate is ever served as authoritative.
type Scoreboard struct {
	Tournament  *models.Tournament       `json:"tournament"`
	Teams       []models.Team            `json:"teams"`
	Events      []models.TournamentEvent `json:"events"`
	Projection  projection.Result        `json:"projection"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// ResultsService is the read-only surface shared by the public results page
// and the broadcast overlay. It requires no admin privilege.
type ResultsService interface {
	// GetScoreboard serves the most recent tournament.
	GetScoreboard(ctx context.Context) (*Scoreboard, error)
	GetScoreboardByID(ctx context.Context, tournamentID int) (*Scoreboard, error)
	ListEvents(ctx context.Context, tournamentID int) ([]models.TournamentEvent, error)
	// PublishSnapshot uploads the scoreboard JSON to object storage so
	// stream overlays have a CDN-served fallback.
	PublishSnapshot(ctx context.Context, tournamentID int) error
}

type resultsService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	eventRepo      repositories.EventRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewResultsService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	eventRepo repositories.EventRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ResultsService {
	return &resultsService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		eventRepo:      eventRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *resultsService) GetScoreboard(ctx context.Context) (*Scoreboard, error) {
	tournament, err := s.tournamentRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.build(ctx, tournament)
}

func (s *resultsService) GetScoreboardByID(ctx context.Context, tournamentID int) (*Scoreboard, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.build(ctx, tournament)
}

func (s *resultsService) ListEvents(ctx context.Context, tournamentID int) ([]models.TournamentEvent, error) {
	return s.eventRepo.ListByTournament(ctx, tournamentID)
}

func (s *resultsService) build(ctx context.Context, tournament *models.Tournament) (*Scoreboard, error) {
	var (
		teams  []models.Team
		events []models.TournamentEvent
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListByTournament(gCtx, tournament.ID)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.eventRepo.ListByTournament(gCtx, tournament.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load scoreboard data for tournament %d: %w", tournament.ID, err)
	}

	return &Scoreboard{
		Tournament:  tournament,
		Teams:       teams,
		Events:      events,
		Projection:  projection.Reduce(tournament, teams, events, s.logger),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *resultsService) PublishSnapshot(ctx context.Context, tournamentID int) error {
	if s.uploader == nil {
		return nil
	}
	scoreboard, err := s.GetScoreboardByID(ctx, tournamentID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(scoreboard)
	if err != nil {
		return fmt.Errorf("failed to marshal scoreboard snapshot: %w", err)
	}

	key := fmt.Sprintf("scoreboards/%d.json", tournamentID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to upload scoreboard snapshot: %w", err)
	}

	s.logger.Info("scoreboard snapshot published",
		slog.Int("tournament_id", tournamentID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
	return nil
}
