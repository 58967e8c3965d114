package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/lib/pq"
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrNoUndoableEvent    = errors.New("no undoable event")
	ErrEventInvalidTarget = errors.New("event references an unknown tournament")
)

// EventRepository is the append-only ledger. Rows are immutable except for
// the undone flag; the serial id is the authoritative event order shared by
// every client.
type EventRepository interface {
	Append(ctx context.Context, exec SQLExecutor, event *models.TournamentEvent) error
	ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentEvent, error)
	LatestUndoable(ctx context.Context, tournamentID int) (*models.TournamentEvent, error)
	MarkUndone(ctx context.Context, exec SQLExecutor, eventID int64, actorEmail string, at time.Time) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEventRepository) Append(ctx context.Context, exec SQLExecutor, e *models.TournamentEvent) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_events (tournament_id, event_type, event_data, game_number, actor_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, undone`

	err := executor.QueryRowContext(ctx, query,
		e.TournamentID, e.EventType, []byte(e.EventData), e.GameNumber, e.ActorEmail,
	).Scan(&e.ID, &e.CreatedAt, &e.Undone)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23503" && pqErr.Constraint == "tournament_events_tournament_id_fkey" {
				return ErrEventInvalidTarget
			}
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *postgresEventRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentEvent, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, event_type, event_data, game_number, actor_email, created_at, undone, undone_by, undone_at
		FROM tournament_events
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.TournamentEvent, 0)
	for rows.Next() {
		var e models.TournamentEvent
		var data []byte
		if scanErr := rows.Scan(
			&e.ID, &e.TournamentID, &e.EventType, &data, &e.GameNumber,
			&e.ActorEmail, &e.CreatedAt, &e.Undone, &e.UndoneBy, &e.UndoneAt,
		); scanErr != nil {
			return nil, scanErr
		}
		e.EventData = data
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresEventRepository) LatestUndoable(ctx context.Context, tournamentID int) (*models.TournamentEvent, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, event_type, event_data, game_number, actor_email, created_at, undone, undone_by, undone_at
		FROM tournament_events
		WHERE tournament_id = $1 AND undone = FALSE
		ORDER BY id DESC
		LIMIT 1`

	e := &models.TournamentEvent{}
	var data []byte
	err := executor.QueryRowContext(ctx, query, tournamentID).Scan(
		&e.ID, &e.TournamentID, &e.EventType, &data, &e.GameNumber,
		&e.ActorEmail, &e.CreatedAt, &e.Undone, &e.UndoneBy, &e.UndoneAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoUndoableEvent
		}
		return nil, err
	}
	e.EventData = data
	return e, nil
}

// MarkUndone flips the undone flag on an existing row. This is the only
// mutation the ledger permits; the row itself is never deleted.
func (r *postgresEventRepository) MarkUndone(ctx context.Context, exec SQLExecutor, eventID int64, actorEmail string, at time.Time) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_events SET undone = TRUE, undone_by = $1, undone_at = $2 WHERE id = $3 AND undone = FALSE`
	result, err := executor.ExecContext(ctx, query, actorEmail, at, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event %d undone: %w", eventID, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
