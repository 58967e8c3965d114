package handlers

import (
	"log"
	"net/http"

	"github.com/apexscore/live-scoring/middleware"
	"github.com/apexscore/live-scoring/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the dashboard and overlay origins before the
		// next event once their final domains are settled
		return true
	},
}

type WebSocketHandler struct {
	hub       *realtime.Hub
	jwtSecret []byte
}

func NewWebSocketHandler(hub *realtime.Hub, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, jwtSecret: []byte(jwtSecret)}
}

// ServeWs subscribes a client to a tournament room. Connections are
// spectators by default; a valid admin token passed as ?token= upgrades the
// connection to admin (presence-listed, may send heartbeat and lock frames).
// Browsers cannot set headers on websocket dials, hence the query parameter.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "tournamentID")
	if tournamentID == "" {
		http.Error(w, "Missing tournamentID", http.StatusBadRequest)
		return
	}

	email := ""
	isAdmin := false
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := middleware.ParseToken(token, h.jwtSecret)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		email, _ = claims["email"].(string)
		isAdmin, _ = claims["is_admin"].(bool)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for tournament %s: %v", tournamentID, err)
		return
	}

	client := &realtime.Client{
		ID:      uuid.NewString(),
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Room:    tournamentID,
		Email:   email,
		IsAdmin: isAdmin,
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
