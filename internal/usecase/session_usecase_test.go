package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/domain/input"
	"github.com/flowdesk/flowdesk/internal/domain/models"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/memory"
)

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func validCreateInput(now time.Time) *input.CreateSessionInput {
	return &input.CreateSessionInput{
		HostID:          uuid.New(),
		HostName:        "ada",
		Title:           "Morning deep work",
		Description:     "Heads down",
		StartTime:       now.Add(time.Hour),
		DurationMinutes: 45,
		MaxParticipants: 6,
	}
}

func TestCreateSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := memory.NewSessionRepository()
	uc := NewSessionUsecase(repo, nil).(*sessionUsecase)
	uc.now = fixedClock(now)

	session, err := uc.CreateSession(context.Background(), validCreateInput(now))
	if err != nil {
		t.Fatalf("CreateSession() = %v", err)
	}

	if session.ID == uuid.Nil {
		t.Error("session id not assigned")
	}
	if session.Participants != 0 {
		t.Errorf("participants = %d, want 0", session.Participants)
	}

	stored, err := repo.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if stored.Title != "Morning deep work" {
		t.Errorf("stored title = %q", stored.Title)
	}
}

func TestCreateSessionRejectsInvalidInput(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := memory.NewSessionRepository()
	uc := NewSessionUsecase(repo, nil).(*sessionUsecase)
	uc.now = fixedClock(now)

	in := validCreateInput(now)
	in.Title = "   "

	_, err := uc.CreateSession(context.Background(), in)

	var vErr *input.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("CreateSession() = %v, want *input.ValidationError", err)
	}

	// Rejected input never reaches the store.
	sessions, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("store has %d sessions after rejected create, want 0", len(sessions))
	}
}

func TestListSessionsDerivesAndFilters(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := memory.NewSessionRepository()
	uc := NewSessionUsecase(repo, nil).(*sessionUsecase)
	uc.now = fixedClock(now)

	seed := []*models.Session{
		{ID: uuid.New(), Title: "upcoming", StartTime: now.Add(time.Hour), DurationMinutes: 45},
		{ID: uuid.New(), Title: "live", StartTime: now.Add(-10 * time.Minute), DurationMinutes: 45},
		{ID: uuid.New(), Title: "over", StartTime: now.Add(-2 * time.Hour), DurationMinutes: 25},
	}
	for _, s := range seed {
		if err := repo.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	all, err := uc.ListSessions(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("unfiltered list = %d sessions, want 3", len(all))
	}

	wantStatus := map[string]models.Status{
		"upcoming": models.StatusScheduled,
		"live":     models.StatusActive,
		"over":     models.StatusEnded,
	}
	for _, v := range all {
		if v.Status != wantStatus[v.Title] {
			t.Errorf("session %q status = %q, want %q", v.Title, v.Status, wantStatus[v.Title])
		}
	}

	active, err := uc.ListSessions(context.Background(), models.StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Title != "live" {
		t.Errorf("active filter = %v, want only %q", active, "live")
	}
}

func TestGroupSessionsByDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	repo := memory.NewSessionRepository()
	uc := NewSessionUsecase(repo, nil).(*sessionUsecase)
	uc.now = fixedClock(now)

	seed := []*models.Session{
		{ID: uuid.New(), Title: "tomorrow late", StartTime: now.Add(24*time.Hour + 6*time.Hour), DurationMinutes: 45},
		{ID: uuid.New(), Title: "today", StartTime: now.Add(time.Hour), DurationMinutes: 45},
		{ID: uuid.New(), Title: "tomorrow early", StartTime: now.Add(24*time.Hour + time.Hour), DurationMinutes: 45},
	}
	for _, s := range seed {
		if err := repo.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := uc.GroupSessionsByDate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}

	if groups[0].Date != "2025-06-01" || groups[1].Date != "2025-06-02" {
		t.Errorf("dates = %q, %q; want ascending calendar days", groups[0].Date, groups[1].Date)
	}

	day2 := groups[1].Sessions
	if len(day2) != 2 || day2[0].Title != "tomorrow early" || day2[1].Title != "tomorrow late" {
		t.Errorf("second day ordering wrong: %v", day2)
	}
}

func TestDropSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := memory.NewSessionRepository()
	uc := NewSessionUsecase(repo, nil).(*sessionUsecase)
	uc.now = fixedClock(now)

	session := &models.Session{ID: uuid.New(), Title: "short lived", StartTime: now, DurationMinutes: 25}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}

	if err := uc.DropSession(context.Background(), session.ID); err != nil {
		t.Fatalf("DropSession() = %v", err)
	}

	if _, err := repo.GetByID(context.Background(), session.ID); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Errorf("GetByID after drop = %v, want ErrSessionNotFound", err)
	}
}
