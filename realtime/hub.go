// Package realtime is the tournament-scoped pub/sub channel: it fans out
// appended events to every subscriber, tracks which admins are present, and
// shares the advisory "a game is being scored" lock. All of this state is
// ephemeral and reconstructible; on reconnect clients re-fetch the log and
// re-derive everything rather than trusting a stale copy.
package realtime

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/apexscore/live-scoring/models"
)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu       sync.RWMutex
	rooms    map[string]map[*Client]bool
	presence map[string]map[string]time.Time
	locks    map[string]models.LockState
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		presence:   make(map[string]map[string]time.Time),
		locks:      make(map[string]models.LockState),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	if client.IsAdmin && client.Email != "" {
		if _, ok := h.presence[client.Room]; !ok {
			h.presence[client.Room] = make(map[string]time.Time)
		}
		h.presence[client.Room][client.Email] = time.Now()
	}
	total := len(h.rooms[client.Room])
	h.mu.Unlock()

	log.Printf("Client %s registered to room %s. Total clients in room: %d", client.ID, client.Room, total)

	// a joining client needs the current ephemeral state immediately; the
	// event log itself comes over HTTP
	h.sendTo(client, Message{Type: MessageLockState, Payload: h.Lock(client.Room), RoomID: client.Room})
	h.broadcastPresence(client.Room)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	roomClients, ok := h.rooms[client.Room]
	if ok {
		if _, okClient := roomClients[client]; okClient {
			client.Mu.Lock()
			if !client.IsClosed {
				close(client.Send)
				client.IsClosed = true
			}
			client.Mu.Unlock()
			delete(roomClients, client)
			if len(roomClients) == 0 {
				delete(h.rooms, client.Room)
				delete(h.presence, client.Room)
				delete(h.locks, client.Room)
				log.Printf("Room %s closed as it's empty.", client.Room)
			}
		}
	}
	if client.IsAdmin && client.Email != "" {
		if emails, ok := h.presence[client.Room]; ok {
			// another connection of the same admin may still be open
			stillConnected := false
			for c := range h.rooms[client.Room] {
				if c.IsAdmin && c.Email == client.Email {
					stillConnected = true
					break
				}
			}
			if !stillConnected {
				delete(emails, client.Email)
			}
		}
	}
	h.mu.Unlock()

	h.broadcastPresence(client.Room)
}

// BroadcastEvent fans an appended or undone ledger event out to every
// subscriber of the tournament room, including the originator.
func (h *Hub) BroadcastEvent(roomID string, event *models.TournamentEvent) {
	h.broadcastToRoom(roomID, Message{Type: MessageEventAppended, Payload: event, RoomID: roomID})
}

// BroadcastTournament announces a lifecycle change of the tournament row.
func (h *Hub) BroadcastTournament(roomID string, tournament *models.Tournament) {
	h.broadcastToRoom(roomID, Message{Type: MessageTournamentUpdated, Payload: tournament, RoomID: roomID})
}

// Presence lists the currently connected admins of a room, oldest first.
func (h *Hub) Presence(roomID string) []models.PresenceRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	records := make([]models.PresenceRecord, 0, len(h.presence[roomID]))
	for email, onlineAt := range h.presence[roomID] {
		records = append(records, models.PresenceRecord{Email: email, OnlineAt: onlineAt})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].OnlineAt.Equal(records[j].OnlineAt) {
			return records[i].OnlineAt.Before(records[j].OnlineAt)
		}
		return records[i].Email < records[j].Email
	})
	return records
}

// Lock returns the advisory lock state of a room.
func (h *Hub) Lock(roomID string) models.LockState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.locks[roomID]
}

// SetLock toggles the advisory scoring lock and broadcasts the new state.
// It is not a mutex: two admins racing past it are resolved by event-store
// order, so the flag is applied unconditionally.
func (h *Hub) SetLock(roomID string, locked bool, byEmail string) {
	h.mu.Lock()
	state := models.LockState{Locked: locked}
	if locked {
		state.LockedBy = byEmail
	}
	h.locks[roomID] = state
	h.mu.Unlock()

	h.broadcastToRoom(roomID, Message{Type: MessageLockState, Payload: state, RoomID: roomID})
}

// Heartbeat refreshes an admin's presence timestamp.
func (h *Hub) Heartbeat(roomID, email string) {
	if email == "" {
		return
	}
	h.mu.Lock()
	if _, ok := h.presence[roomID]; !ok {
		h.presence[roomID] = make(map[string]time.Time)
	}
	h.presence[roomID][email] = time.Now()
	h.mu.Unlock()
}

// SweepStalePresence expires admins whose last heartbeat is older than
// maxAge and rebroadcasts the presence lists that changed.
func (h *Hub) SweepStalePresence(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	h.mu.Lock()
	changed := make([]string, 0)
	for roomID, emails := range h.presence {
		for email, onlineAt := range emails {
			if onlineAt.Before(cutoff) {
				delete(emails, email)
				changed = append(changed, roomID)
			}
		}
	}
	h.mu.Unlock()

	for _, roomID := range changed {
		h.broadcastPresence(roomID)
	}
}

func (h *Hub) broadcastPresence(roomID string) {
	h.broadcastToRoom(roomID, Message{Type: MessagePresenceState, Payload: h.Presence(roomID), RoomID: roomID})
}

func (h *Hub) broadcastToRoom(roomID string, message Message) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshalling message for room %s: %v", roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range roomClients {
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("Client's send channel full or closed for room %s. Skipping.", roomID)
		}
		client.Mu.Unlock()
	}
}

func (h *Hub) sendTo(client *Client, message Message) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshalling message for client %s: %v", client.ID, err)
		return
	}
	client.Mu.Lock()
	defer client.Mu.Unlock()
	if client.IsClosed {
		return
	}
	select {
	case client.Send <- messageBytes:
	default:
	}
}
