package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/apexscore/live-scoring/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetLatest returns the most recent tournament row. The public results
	// page always reads this one; superseded rows are kept, never deleted.
	GetLatest(ctx context.Context) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateProgress(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, currentGame int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO tournaments (name, status, current_game, total_games, placement_config, kill_points_per_kill)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.Name, t.Status, t.CurrentGame, t.TotalGames, pq.Array(t.PlacementConfig), t.KillPointsPerKill,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, status, current_game, total_games, placement_config, kill_points_per_kill, created_at
		FROM tournaments
		WHERE id = $1`
	return r.scanOne(r.getExecutor(nil).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetLatest(ctx context.Context) (*models.Tournament, error) {
	query := `
		SELECT id, name, status, current_game, total_games, placement_config, kill_points_per_kill, created_at
		FROM tournaments
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	return r.scanOne(r.getExecutor(nil).QueryRowContext(ctx, query))
}

func (r *postgresTournamentRepository) scanOne(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Status, &t.CurrentGame, &t.TotalGames,
		pq.Array(&t.PlacementConfig), &t.KillPointsPerKill, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateProgress advances status and current_game together so a game_end
// append and the lifecycle transition commit atomically.
func (r *postgresTournamentRepository) UpdateProgress(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, currentGame int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1, current_game = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, status, currentGame, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
	}
	return err
}
