package handlers

import (
	"net/http"
	"strconv"

	"github.com/apexscore/live-scoring/middleware"
	"github.com/apexscore/live-scoring/services"
	"github.com/go-chi/chi/v5"
)

type ScoringHandler struct {
	scoringService services.ScoringService
}

func NewScoringHandler(scoringService services.ScoringService) *ScoringHandler {
	return &ScoringHandler{scoringService: scoringService}
}

type gameEndRequest struct {
	Placements []services.PlacementResult `json:"placements"`
}

func (h *ScoringHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	var input gameEndRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.scoringService.RecordGameEnd(r.Context(), id, input.Placements, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event, nil)
}

func (h *ScoringHandler) OverrideScore(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	var input services.OverrideInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.scoringService.OverrideGameScore(r.Context(), id, input, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event, nil)
}

func (h *ScoringHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	var input services.AdjustInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	event, err := h.scoringService.AdjustPoints(r.Context(), id, input, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event, nil)
}

func (h *ScoringHandler) RemoveTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	teamID, err := strconv.Atoi(chi.URLParam(r, "teamID"))
	if err != nil || teamID < 1 {
		errorResponse(w, r, http.StatusBadRequest, "invalid team id")
		return
	}

	event, svcErr := h.scoringService.RemoveTeam(r.Context(), id, teamID, middleware.EmailFromContext(r.Context()))
	if svcErr != nil {
		mapServiceErrorToHTTP(w, r, svcErr)
		return
	}
	writeJSON(w, http.StatusCreated, event, nil)
}

// Undo reverses the most recent non-undone action. A tournament with
// nothing to undo answers 200 with undone:false rather than an error.
func (h *ScoringHandler) Undo(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}

	event, err := h.scoringService.UndoLastAction(r.Context(), id, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusOK, jsonResponse{"undone": false}, nil)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"undone": true, "event": event}, nil)
}

func (h *ScoringHandler) CanUndo(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	canUndo, err := h.scoringService.CanUndo(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"can_undo": canUndo}, nil)
}
