package input

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationError carries a single human-readable reason suitable for
// inline display. It never escalates into a panic.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	allowedDurations       = []int{25, 45, 60, 90, 120}
	allowedMaxParticipants = []int{4, 6, 8, 10}
)

type CreateSessionInput struct {
	HostID          uuid.UUID
	HostName        string
	HostAvatar      string
	Title           string
	Description     string
	StartTime       time.Time
	DurationMinutes int
	MaxParticipants int
}

// Validate checks the input against the fixed creation rules. now is the
// creation instant; the start time must be strictly in the future.
func (in *CreateSessionInput) Validate(now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Reason: "Please enter a session title"}
	}

	if !in.StartTime.After(now) {
		return &ValidationError{Reason: "Start time must be in the future"}
	}

	if !contains(allowedDurations, in.DurationMinutes) {
		return &ValidationError{Reason: fmt.Sprintf("Duration must be one of %v minutes", allowedDurations)}
	}

	if !contains(allowedMaxParticipants, in.MaxParticipants) {
		return &ValidationError{Reason: fmt.Sprintf("Max participants must be one of %v", allowedMaxParticipants)}
	}

	return nil
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
