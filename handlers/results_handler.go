package handlers

import (
	"net/http"

	"github.com/apexscore/live-scoring/services"
)

// ResultsHandler serves the public read-only surface: the results page and
// the broadcast overlay fetch from here without any admin privilege.
type ResultsHandler struct {
	resultsService  services.ResultsService
	activityService services.ActivityService
}

func NewResultsHandler(resultsService services.ResultsService, activityService services.ActivityService) *ResultsHandler {
	return &ResultsHandler{resultsService: resultsService, activityService: activityService}
}

func (h *ResultsHandler) GetCurrentScoreboard(w http.ResponseWriter, r *http.Request) {
	scoreboard, err := h.resultsService.GetScoreboard(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreboard, nil)
}

func (h *ResultsHandler) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	scoreboard, err := h.resultsService.GetScoreboardByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreboard, nil)
}

// ListEvents serves the full ordered event log. A spectator joining
// mid-tournament fetches this once and folds it, which is what guarantees
// it computes the same standings as a client connected since game one.
func (h *ResultsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	events, err := h.resultsService.ListEvents(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil)
}

func (h *ResultsHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	entries, err := h.activityService.List(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"activity": entries}, nil)
}
