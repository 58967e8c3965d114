package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/apexscore/live-scoring/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name already taken in this tournament")
)

// TeamRepository reads the roster seeded from registration data. The core
// never writes rosters back after seeding; team removal is a team_remove
// event, not a row delete.
type TeamRepository interface {
	Seed(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Seed(ctx context.Context, exec SQLExecutor, t *models.Team) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO teams (tournament_id, name, players)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, t.TournamentID, t.Name, pq.Array(t.Players)).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "teams_tournament_id_name_key" {
				return ErrTeamNameConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	executor := r.getExecutor(nil)
	query := `SELECT id, tournament_id, name, players, created_at FROM teams WHERE id = $1`

	t := &models.Team{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.TournamentID, &t.Name, pq.Array(&t.Players), &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Team, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, name, players, created_at
		FROM teams
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if scanErr := rows.Scan(&t.ID, &t.TournamentID, &t.Name, pq.Array(&t.Players), &t.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}
