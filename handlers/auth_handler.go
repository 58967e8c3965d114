package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/apexscore/live-scoring/services"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// AuthHandler is the thin gate in front of the scoring core: it exchanges
// the shared operator password for an admin bearer token. Real identity and
// role management live outside this service.
type AuthHandler struct {
	jwtSecret         []byte
	adminPasswordHash string
}

func NewAuthHandler(jwtSecret string, adminPasswordHash string) *AuthHandler {
	return &AuthHandler{
		jwtSecret:         []byte(jwtSecret),
		adminPasswordHash: adminPasswordHash,
	}
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var input tokenRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Email == "" {
		badRequestResponse(w, r, errors.New("email is required"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.adminPasswordHash), []byte(input.Password)); err != nil {
		unauthorizedResponse(w, r, services.ErrAuthenticationFailed.Error())
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"email":    input.Email,
		"is_admin": true,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{"token": signed, "expires_at": now.Add(tokenTTL)}, nil)
}
