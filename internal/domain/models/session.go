package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

type Session struct {
	ID              uuid.UUID `json:"id" db:"id"`
	HostID          uuid.UUID `json:"host_id" db:"host_id"`
	HostName        string    `json:"host_name" db:"host_name"`
	HostAvatar      string    `json:"host_avatar" db:"host_avatar"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Participants    int       `json:"participants" db:"participants"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

func (s *Session) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// StatusAt derives the session status from the clock alone. It is pure, so
// it may be recomputed at any rate and is correct on first read without a
// tick having run. A session starting exactly at now is already active.
func (s *Session) StatusAt(now time.Time) Status {
	if now.Before(s.StartTime) {
		return StatusScheduled
	}

	if !now.After(s.EndTime()) {
		return StatusActive
	}

	return StatusEnded
}
