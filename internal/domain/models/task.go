package models

import (
	"time"

	"github.com/google/uuid"
)

// Task lives inside one room. Only its author may toggle or delete it.
type Task struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SessionID  uuid.UUID `json:"session_id" db:"session_id"`
	AuthorID   uuid.UUID `json:"author_id" db:"author_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Text       string    `json:"text" db:"text"`
	Completed  bool      `json:"completed" db:"completed"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func NewTask(sessionID uuid.UUID, author *User, text string) *Task {
	return &Task{
		ID:         uuid.New(),
		SessionID:  sessionID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}
