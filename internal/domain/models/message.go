package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once created and ordered by arrival per session.
type Message struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SessionID  uuid.UUID `json:"session_id" db:"session_id"`
	AuthorID   uuid.UUID `json:"author_id" db:"author_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func NewMessage(sessionID uuid.UUID, author *User, text string) *Message {
	return &Message{
		ID:         uuid.New(),
		SessionID:  sessionID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}
