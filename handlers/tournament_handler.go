package handlers

import (
	"net/http"
	"strconv"

	"github.com/apexscore/live-scoring/middleware"
	"github.com/apexscore/live-scoring/services"
	"github.com/go-chi/chi/v5"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament, nil)
}

func (h *TournamentHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.GetLatest(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	tournament, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	teams, err := h.tournamentService.ListTeams(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"teams": teams}, nil)
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	tournament, err := h.tournamentService.Start(r.Context(), id, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDParam(w, r)
	if !ok {
		return
	}
	tournament, err := h.tournamentService.Reopen(r.Context(), id, middleware.EmailFromContext(r.Context()))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func tournamentIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := chi.URLParam(r, "tournamentID")
	id, err := strconv.Atoi(idStr)
	if err != nil || id < 1 {
		errorResponse(w, r, http.StatusBadRequest, "invalid tournament id")
		return 0, false
	}
	return id, true
}
