package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(room, email string, isAdmin bool) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Room:    room,
		Email:   email,
		IsAdmin: isAdmin,
		Send:    make(chan []byte, 16),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	return hub
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	c.Hub = hub
	hub.Register <- c
	// registration sends the lock state to the new client synchronously
	// after the room is updated; receiving it proves we are in
	require.Eventually(t, func() bool { return len(c.Send) > 0 }, time.Second, 5*time.Millisecond)
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case raw := <-c.Send:
			var m Message
			if err := json.Unmarshal(raw, &m); err == nil {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

func TestHubPresenceOnJoinAndLeave(t *testing.T) {
	hub := startHub(t)

	admin := newTestClient("42", "alice@example.com", true)
	registerAndWait(t, hub, admin)

	records := hub.Presence("42")
	require.Len(t, records, 1)
	assert.Equal(t, "alice@example.com", records[0].Email)

	spectator := newTestClient("42", "", false)
	registerAndWait(t, hub, spectator)
	assert.Len(t, hub.Presence("42"), 1, "spectators are not listed in presence")

	hub.Unregister <- admin
	assert.Eventually(t, func() bool { return len(hub.Presence("42")) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubPresenceSweep(t *testing.T) {
	hub := startHub(t)
	admin := newTestClient("7", "bob@example.com", true)
	registerAndWait(t, hub, admin)

	hub.SweepStalePresence(time.Hour)
	assert.Len(t, hub.Presence("7"), 1, "fresh heartbeat survives the sweep")

	hub.SweepStalePresence(0)
	assert.Empty(t, hub.Presence("7"), "stale presence expires")

	hub.Heartbeat("7", "bob@example.com")
	assert.Len(t, hub.Presence("7"), 1, "heartbeat re-registers presence")
}

func TestHubLockToggleBroadcast(t *testing.T) {
	hub := startHub(t)
	first := newTestClient("9", "alice@example.com", true)
	second := newTestClient("9", "bob@example.com", true)
	registerAndWait(t, hub, first)
	registerAndWait(t, hub, second)
	drain(first)
	drain(second)

	hub.SetLock("9", true, "alice@example.com")

	state := hub.Lock("9")
	assert.True(t, state.Locked)
	assert.Equal(t, "alice@example.com", state.LockedBy)

	require.Eventually(t, func() bool { return len(second.Send) > 0 }, time.Second, 5*time.Millisecond)
	messages := drain(second)
	require.NotEmpty(t, messages)
	assert.Equal(t, MessageLockState, messages[len(messages)-1].Type)

	hub.SetLock("9", false, "bob@example.com")
	state = hub.Lock("9")
	assert.False(t, state.Locked)
	assert.Empty(t, state.LockedBy)
}

func TestHubBroadcastEventReachesWholeRoom(t *testing.T) {
	hub := startHub(t)
	admin := newTestClient("3", "alice@example.com", true)
	spectator := newTestClient("3", "", false)
	other := newTestClient("4", "carol@example.com", true)
	registerAndWait(t, hub, admin)
	registerAndWait(t, hub, spectator)
	registerAndWait(t, hub, other)
	drain(admin)
	drain(spectator)
	drain(other)

	event := &models.TournamentEvent{ID: 11, TournamentID: 3, EventType: models.EventGameEnd}
	hub.BroadcastEvent("3", event)

	for _, c := range []*Client{admin, spectator} {
		require.Eventually(t, func() bool { return len(c.Send) > 0 }, time.Second, 5*time.Millisecond)
		messages := drain(c)
		require.Len(t, messages, 1)
		assert.Equal(t, MessageEventAppended, messages[0].Type)
		assert.Equal(t, "3", messages[0].RoomID)
	}
	assert.Empty(t, drain(other), "other rooms stay quiet")
}

func TestHubInboundClientMessages(t *testing.T) {
	hub := startHub(t)
	admin := newTestClient("5", "alice@example.com", true)
	spectator := newTestClient("5", "", false)
	registerAndWait(t, hub, admin)
	registerAndWait(t, hub, spectator)

	admin.handleMessage([]byte(`{"type":"lock","locked":true}`))
	assert.True(t, hub.Lock("5").Locked)

	spectator.handleMessage([]byte(`{"type":"lock","locked":false}`))
	assert.True(t, hub.Lock("5").Locked, "spectator frames are dropped")

	before := hub.Presence("5")[0].OnlineAt
	time.Sleep(5 * time.Millisecond)
	admin.handleMessage([]byte(`{"type":"heartbeat"}`))
	after := hub.Presence("5")[0].OnlineAt
	assert.True(t, after.After(before), "heartbeat refreshes online_at")
}
