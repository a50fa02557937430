package events

import (
	"encoding/json"
	"fmt"

	"github.com/flowdesk/flowdesk/internal/domain/models"
)

// Inbound event types.
const (
	TypeJoinSession  = "join-session"
	TypeLeaveSession = "leave-session"
	TypeSendMessage  = "send-message"
	TypeAddTask      = "add-task"
	TypeToggleTask   = "toggle-task"
	TypeDeleteTask   = "delete-task"
)

// Outbound event types.
const (
	TypeSessionUpdated = "session-updated"
	TypeNewMessage     = "new-message"
	TypeTaskUpdated    = "task-updated"
	TypeSessionClosed  = "session-closed"
	TypeError          = "error"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage wraps a payload into the wire envelope.
func NewMessage(eventType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	return Message{Type: eventType, Data: data}, nil
}

type JoinSessionEvent struct {
	SessionID string `json:"session_id"`
}

type SendMessageEvent struct {
	Text string `json:"text"`
}

type AddTaskEvent struct {
	Text string `json:"text"`
}

type TaskRefEvent struct {
	TaskID string `json:"task_id"`
}

// SessionUpdatedEvent carries the session together with its live roster.
type SessionUpdatedEvent struct {
	Session          *models.Session      `json:"session"`
	Status           models.Status        `json:"status"`
	Roster           []models.Participant `json:"roster"`
	VideoURL         string               `json:"video_url,omitempty"`
	RemainingSeconds int                  `json:"remaining_seconds"`
}

type NewMessageEvent struct {
	Message *models.Message `json:"message"`
}

type TaskUpdatedEvent struct {
	Tasks []models.Task `json:"tasks"`
}

type SessionClosedEvent struct {
	SessionID string `json:"session_id"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
