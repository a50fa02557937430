package dto

import (
	"time"

	"github.com/flowdesk/flowdesk/internal/domain/output"
)

type CreateSessionRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxParticipants int       `json:"max_participants"`
}

type ListSessionsResponse struct {
	Sessions []output.SessionView `json:"sessions"`
}

type GroupedSessionsResponse struct {
	Groups []output.DateGroup `json:"groups"`
}
