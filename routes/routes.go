package routes

import (
	"github.com/apexscore/live-scoring/handlers"
	"github.com/apexscore/live-scoring/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	scoringHandler *handlers.ScoringHandler,
	resultsHandler *handlers.ResultsHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/token", authHandler.IssueToken)

	router.Route("/tournaments", func(r chi.Router) {
		// public read-only surface: results page and broadcast overlays
		r.Get("/current", tournamentHandler.GetCurrent)
		r.Get("/current/scoreboard", resultsHandler.GetCurrentScoreboard)
		r.Get("/{tournamentID}", tournamentHandler.GetByID)
		r.Get("/{tournamentID}/scoreboard", resultsHandler.GetScoreboard)
		r.Get("/{tournamentID}/events", resultsHandler.ListEvents)
		r.Get("/{tournamentID}/teams", tournamentHandler.ListTeams)
		r.Get("/{tournamentID}/activity", resultsHandler.ListActivity)

		// admin-only writes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))
			r.Use(middleware.RequireAdmin)

			r.Post("/", tournamentHandler.Create)
			r.Post("/{tournamentID}/start", tournamentHandler.Start)
			r.Post("/{tournamentID}/reopen", tournamentHandler.Reopen)
			r.Post("/{tournamentID}/games/end", scoringHandler.EndGame)
			r.Post("/{tournamentID}/overrides", scoringHandler.OverrideScore)
			r.Post("/{tournamentID}/adjustments", scoringHandler.AdjustPoints)
			r.Delete("/{tournamentID}/teams/{teamID}", scoringHandler.RemoveTeam)
			r.Post("/{tournamentID}/undo", scoringHandler.Undo)
			r.Get("/{tournamentID}/undo", scoringHandler.CanUndo)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
