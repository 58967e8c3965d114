package services

import "github.com/apexscore/live-scoring/models"

// Broadcaster is the slice of the realtime hub the services need: pushing
// ledger and lifecycle changes to every subscriber of a tournament room.
// Satisfied by *realtime.Hub.
type Broadcaster interface {
	BroadcastEvent(roomID string, event *models.TournamentEvent)
	BroadcastTournament(roomID string, tournament *models.Tournament)
}
