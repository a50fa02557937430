package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/application/metric"
	"github.com/flowdesk/flowdesk/internal/domain/input"
	"github.com/flowdesk/flowdesk/internal/domain/models"
	"github.com/flowdesk/flowdesk/internal/domain/output"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres/repository"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/redis"
)

// SessionUsecase is the session lifecycle controller: it validates
// creation, derives the status of every session at read time and shapes
// the set for display.
type SessionUsecase interface {
	CreateSession(ctx context.Context, in *input.CreateSessionInput) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// ListSessions derives statuses at the current instant and filters by
	// status; the empty status means no filter.
	ListSessions(ctx context.Context, status models.Status) ([]output.SessionView, error)

	// GroupSessionsByDate buckets sessions by calendar date, dates and
	// sessions both sorted ascending by time.
	GroupSessionsByDate(ctx context.Context, status models.Status) ([]output.DateGroup, error)

	// DropSession removes a session whose room has closed.
	DropSession(ctx context.Context, id uuid.UUID) error

	// RefreshStatusMetrics recomputes the per-status session gauges. It is
	// called on a fixed tick and is safe at any rate: derivation is pure.
	RefreshStatusMetrics(ctx context.Context)
}

type sessionUsecase struct {
	sessionRepo repository.SessionRepository
	cache       redis.SessionCache

	now func() time.Time
}

// NewSessionUsecase wires the controller. cache may be nil, reads then go
// straight to the repository.
func NewSessionUsecase(sessionRepo repository.SessionRepository, cache redis.SessionCache) SessionUsecase {
	return &sessionUsecase{
		sessionRepo: sessionRepo,
		cache:       cache,
		now:         time.Now,
	}
}

func (uc *sessionUsecase) CreateSession(ctx context.Context, in *input.CreateSessionInput) (*models.Session, error) {
	if err := in.Validate(uc.now()); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:              uuid.New(),
		HostID:          in.HostID,
		HostName:        in.HostName,
		HostAvatar:      in.HostAvatar,
		Title:           in.Title,
		Description:     in.Description,
		MaxParticipants: in.MaxParticipants,
		StartTime:       in.StartTime,
		DurationMinutes: in.DurationMinutes,
		CreatedAt:       uc.now(),
		UpdatedAt:       uc.now(),
	}

	if err := uc.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, session); err != nil {
			slog.Warn("cache session", slog.Any(constant.Error, err))
		}
	}

	return session, nil
}

func (uc *sessionUsecase) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if uc.cache != nil {
		if session, err := uc.cache.Get(ctx, id); err == nil {
			return session, nil
		}
	}

	session, err := uc.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, session); err != nil {
			slog.Warn("cache session", slog.Any(constant.Error, err))
		}
	}

	return session, nil
}

func (uc *sessionUsecase) ListSessions(ctx context.Context, status models.Status) ([]output.SessionView, error) {
	sessions, err := uc.sessionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := uc.now()

	views := make([]output.SessionView, 0, len(sessions))
	for _, s := range sessions {
		derived := s.StatusAt(now)
		if status != "" && derived != status {
			continue
		}

		views = append(views, output.SessionView{Session: s, Status: derived})
	}

	return views, nil
}

func (uc *sessionUsecase) GroupSessionsByDate(ctx context.Context, status models.Status) ([]output.DateGroup, error) {
	views, err := uc.ListSessions(ctx, status)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]output.SessionView)
	for _, v := range views {
		date := v.StartTime.Format("2006-01-02")
		byDate[date] = append(byDate[date], v)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	groups := make([]output.DateGroup, 0, len(dates))
	for _, date := range dates {
		sessions := byDate[date]
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].StartTime.Before(sessions[j].StartTime)
		})

		groups = append(groups, output.DateGroup{Date: date, Sessions: sessions})
	}

	return groups, nil
}

func (uc *sessionUsecase) DropSession(ctx context.Context, id uuid.UUID) error {
	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, id); err != nil {
			slog.Warn("drop cached session", slog.Any(constant.Error, err))
		}
	}

	if err := uc.sessionRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func (uc *sessionUsecase) RefreshStatusMetrics(ctx context.Context) {
	sessions, err := uc.sessionRepo.List(ctx)
	if err != nil {
		slog.Error("list sessions for metrics", slog.Any(constant.Error, err))
		return
	}

	now := uc.now()
	counts := map[models.Status]int{
		models.StatusScheduled: 0,
		models.StatusActive:    0,
		models.StatusEnded:     0,
	}

	for _, s := range sessions {
		counts[s.StatusAt(now)]++
	}

	for status, count := range counts {
		metric.SetSessionsByStatus(string(status), count)
	}
}
