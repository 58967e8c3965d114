package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/repositories"
)

// ActivityService renders the audit trail. Entries are derived from the
// event stream on every read and never stored separately, so the trail can
// always be regenerated from the ledger alone.
type ActivityService interface {
	List(ctx context.Context, tournamentID int) ([]models.ActivityLogEntry, error)
}

type activityService struct {
	eventRepo repositories.EventRepository
}

func NewActivityService(eventRepo repositories.EventRepository) ActivityService {
	return &activityService{eventRepo: eventRepo}
}

func (s *activityService) List(ctx context.Context, tournamentID int) ([]models.ActivityLogEntry, error) {
	events, err := s.eventRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return DeriveActivity(events), nil
}

// DeriveActivity maps the event stream to human-readable entries, newest
// last. Each event yields one entry; an undone event additionally yields a
// distinct entry for the undo action itself.
func DeriveActivity(events []models.TournamentEvent) []models.ActivityLogEntry {
	entries := make([]models.ActivityLogEntry, 0, len(events))
	for i := range events {
		e := &events[i]
		entries = append(entries, models.ActivityLogEntry{
			ID:          fmt.Sprintf("evt-%d", e.ID),
			AdminEmail:  e.ActorEmail,
			Description: describeEvent(e),
			CreatedAt:   e.CreatedAt,
		})
		if e.Undone && e.UndoneBy != nil && e.UndoneAt != nil {
			entries = append(entries, models.ActivityLogEntry{
				ID:          fmt.Sprintf("undo-%d", e.ID),
				AdminEmail:  *e.UndoneBy,
				Description: fmt.Sprintf("undid: %s", describeEvent(e)),
				CreatedAt:   *e.UndoneAt,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

func describeEvent(e *models.TournamentEvent) string {
	switch e.EventType {
	case models.EventGameEnd:
		payload, err := e.GameEnd()
		if err != nil {
			break
		}
		return fmt.Sprintf("ended game %d (%d teams scored)", payload.GameNumber, len(payload.Placements))
	case models.EventGameScoreOverride:
		payload, err := e.ScoreOverride()
		if err != nil {
			break
		}
		return fmt.Sprintf("corrected game %d score for team %d (kills=%d, placement points=%d)",
			payload.GameNumber, payload.TeamID, payload.Kills, payload.PlacementPoints)
	case models.EventPointsAdjust:
		payload, err := e.PointsAdjust()
		if err != nil {
			break
		}
		return fmt.Sprintf("adjusted points for team %d (kills %+d, placement %+d)",
			payload.TeamID, payload.KillPointsDelta, payload.PlacementPointsDelta)
	case models.EventTeamRemove:
		payload, err := e.TeamRemove()
		if err != nil {
			break
		}
		return fmt.Sprintf("removed team %d from standings", payload.TeamID)
	case models.EventTournamentReopen:
		return "reopened the tournament"
	}
	return fmt.Sprintf("recorded a %s action", e.EventType)
}
