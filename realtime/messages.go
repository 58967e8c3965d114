package realtime

// MessageType tags the frames fanned out to subscribers of a tournament
// room.
type MessageType string

const (
	// MessageEventAppended carries a freshly appended (or just-undone)
	// ledger event; subscribers re-run the projection on receipt.
	MessageEventAppended MessageType = "EVENT_APPENDED"
	// MessagePresenceState carries the full current presence list.
	MessagePresenceState MessageType = "PRESENCE_STATE"
	// MessageLockState carries the advisory scoring-lock flag.
	MessageLockState MessageType = "LOCK_STATE"
	// MessageTournamentUpdated carries the tournament row after a
	// lifecycle transition.
	MessageTournamentUpdated MessageType = "TOURNAMENT_UPDATED"
)

// Message is the outbound frame.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// clientMessage is the inbound frame from admin clients. Spectators send
// nothing; anything they do send is dropped.
type clientMessage struct {
	Type   string `json:"type"` // "heartbeat" | "lock"
	Locked bool   `json:"locked,omitempty"`
}
