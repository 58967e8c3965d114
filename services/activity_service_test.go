package services

import (
	"testing"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveActivity(t *testing.T) {
	base := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	undoneAt := base.Add(10 * time.Minute)
	undoneBy := "second@example.com"

	gameEnd, err := models.NewEvent(1, models.EventGameEnd, 1, "admin@example.com", models.GameEndPayload{
		GameNumber: 1,
		Placements: []models.PlacementEntry{{TeamID: 1, Placement: 1}},
	})
	require.NoError(t, err)
	gameEnd.ID = 1
	gameEnd.CreatedAt = base

	adjust, err := models.NewEvent(1, models.EventPointsAdjust, 0, "admin@example.com", models.PointsAdjustPayload{
		TeamID:          2,
		KillPointsDelta: -3,
	})
	require.NoError(t, err)
	adjust.ID = 2
	adjust.CreatedAt = base.Add(5 * time.Minute)
	adjust.Undone = true
	adjust.UndoneBy = &undoneBy
	adjust.UndoneAt = &undoneAt

	entries := DeriveActivity([]models.TournamentEvent{*gameEnd, *adjust})
	require.Len(t, entries, 3)

	assert.Equal(t, "evt-1", entries[0].ID)
	assert.Equal(t, "admin@example.com", entries[0].AdminEmail)
	assert.Contains(t, entries[0].Description, "ended game 1")

	assert.Equal(t, "evt-2", entries[1].ID)
	assert.Contains(t, entries[1].Description, "adjusted points for team 2")

	// the undo shows up as its own entry attributed to the undoing admin
	assert.Equal(t, "undo-2", entries[2].ID)
	assert.Equal(t, "second@example.com", entries[2].AdminEmail)
	assert.Contains(t, entries[2].Description, "undid:")
	assert.Equal(t, undoneAt, entries[2].CreatedAt)
}

func TestDeriveActivity_Empty(t *testing.T) {
	entries := DeriveActivity(nil)
	assert.Empty(t, entries)
}
