package services

import "errors"

// Shared errors used across services and the HTTP mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules. All of these are rejected before any
	// event is appended to the ledger.
	ErrValidationFailed           = errors.New("validation failed")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrInvalidGamePlan            = errors.New("total games must be positive")
	ErrNoTeams                    = errors.New("at least one team with a player is required")
	ErrNoPlacements               = errors.New("cannot end a game with no recorded placements")
	ErrDuplicatePlacementTeam     = errors.New("a team appears more than once in the placements")
	ErrEmptyAdjustment            = errors.New("adjustment must change at least one point total")
	ErrInvalidGameNumber          = errors.New("game number is outside the tournament plan")
	ErrTournamentNotActive        = errors.New("tournament is not active")
	ErrTournamentNotFinished      = errors.New("tournament is not finished")
	ErrInvalidStatusTransition    = errors.New("invalid tournament status transition")
	ErrTeamNotInTournament        = errors.New("team is not part of this tournament")

	// Entity-specific not-found errors.
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTeamNotFound       = errors.New("team not found")

	// Conflicts.
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Auth.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
