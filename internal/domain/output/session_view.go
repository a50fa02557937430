package output

import "github.com/flowdesk/flowdesk/internal/domain/models"

// SessionView pairs a session with its status derived at read time.
type SessionView struct {
	*models.Session
	Status models.Status `json:"status"`
}

// DateGroup holds one calendar day's sessions for display.
type DateGroup struct {
	Date     string        `json:"date"`
	Sessions []SessionView `json:"sessions"`
}
