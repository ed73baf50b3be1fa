package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is a presence state in the pending -> ready -> {left,banned}
// machine described in spec.md §4.D.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionReady   SessionStatus = "ready"
	SessionLeft    SessionStatus = "left"
	SessionBanned  SessionStatus = "banned"
)

// IsActive reports whether the status still counts as present in the
// room for agent.list purposes.
func (s SessionStatus) IsActive() bool {
	return s == SessionPending || s == SessionReady
}

// AgentSession tracks one agent's presence in one room. Only one active
// (pending or ready) session may exist per (AgentID, RoomID).
type AgentSession struct {
	ID        uuid.UUID     `gorm:"type:char(36);primaryKey"`
	AgentID   AgentID       `gorm:"size:191;not null;index:idx_session_agent_room,priority:1"`
	RoomID    uuid.UUID     `gorm:"type:char(36);not null;index:idx_session_agent_room,priority:2"`
	Status    SessionStatus `gorm:"size:16;not null"`
	CreatedAt time.Time     `gorm:"autoCreateTime"`
}

func (AgentSession) TableName() string { return "agent_session" }

// transitions enumerates the legal moves of the presence FSM.
var transitions = map[SessionStatus][]SessionStatus{
	SessionPending: {SessionReady, SessionLeft, SessionBanned},
	SessionReady:   {SessionLeft, SessionBanned},
}

// CanTransition reports whether moving from s to next is a legal step
// in the presence state machine.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
