package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/application/metric"
	"github.com/flowdesk/flowdesk/internal/domain/events"
	"github.com/flowdesk/flowdesk/internal/domain/models"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/memory"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres/repository"
	"github.com/flowdesk/flowdesk/internal/room"
)

// RealtimeUsecase is the per-session broadcast channel. Every handler is
// fire-and-forget: user mistakes come back as error events on the caller's
// own connection, persistence failures are logged and swallowed with the
// successor broadcast skipped, and nothing here crashes the channel.
type RealtimeUsecase interface {
	HandleJoin(ctx context.Context, userID uuid.UUID, ev events.JoinSessionEvent) error
	HandleLeave(ctx context.Context, userID uuid.UUID) error
	HandleMessage(ctx context.Context, userID uuid.UUID, ev events.SendMessageEvent) error

	HandleAddTask(ctx context.Context, userID uuid.UUID, ev events.AddTaskEvent) error
	HandleToggleTask(ctx context.Context, userID uuid.UUID, ev events.TaskRefEvent) error
	HandleDeleteTask(ctx context.Context, userID uuid.UUID, ev events.TaskRefEvent) error

	BroadcastSessionState(ctx context.Context, sessionID uuid.UUID) error
}

type realtimeUsecase struct {
	sessionUsecase SessionUsecase

	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	taskRepo    repository.TaskRepository

	roster memory.RosterRepository
	wsRepo memory.WebsocketConnectionRepository

	rooms *room.Manager

	now func() time.Time
}

func NewRealtimeUsecase(
	sessionUsecase SessionUsecase,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	taskRepo repository.TaskRepository,
	roster memory.RosterRepository,
	wsRepo memory.WebsocketConnectionRepository,
	rooms *room.Manager,
) RealtimeUsecase {
	return &realtimeUsecase{
		sessionUsecase: sessionUsecase,
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		messageRepo:    messageRepo,
		taskRepo:       taskRepo,
		roster:         roster,
		wsRepo:         wsRepo,
		rooms:          rooms,
		now:            time.Now,
	}
}

func (uc *realtimeUsecase) HandleJoin(ctx context.Context, userID uuid.UUID, ev events.JoinSessionEvent) error {
	sessionID, err := uuid.Parse(ev.SessionID)
	if err != nil {
		uc.sendError(userID, "invalid session_id")
		return nil
	}

	session, err := uc.sessionUsecase.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("get session", slog.Any(constant.Error, err), slog.Any(constant.SessionID, sessionID))
		uc.sendError(userID, "session not found")
		return nil
	}

	switch session.StatusAt(uc.now()) {
	case models.StatusScheduled:
		uc.sendError(userID, "session has not started yet")
		return nil
	case models.StatusEnded:
		uc.sendError(userID, "session has already ended")
		return nil
	}

	if _, already := uc.memberOf(ctx, userID, sessionID); !already {
		if uc.roster.Count(ctx, sessionID) >= session.MaxParticipants {
			uc.sendError(userID, "session is full")
			return nil
		}
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	uc.roster.AddMember(ctx, sessionID, models.NewParticipant(user))

	rt := uc.rooms.Open(sessionID, time.Until(session.EndTime()), uc.onRoomClosed)
	metric.SetOpenRooms(uc.rooms.Count())

	if rt.State() == room.StateInitializing {
		if err := rt.Start(ctx); err != nil {
			// No automatic retry: the runtime stays in Initializing and a
			// later join attempts provisioning again.
			slog.Error(
				"start room runtime",
				slog.Any(constant.Error, err),
				slog.Any(constant.SessionID, sessionID),
			)
			uc.sendError(userID, err.Error())
		}
	}

	if err := uc.sessionRepo.UpdateParticipants(ctx, sessionID, uc.roster.Count(ctx, sessionID)); err != nil {
		slog.Error(
			"persist participant count",
			slog.Any(constant.Error, err),
			slog.Any(constant.SessionID, sessionID),
		)
		return nil
	}

	return uc.BroadcastSessionState(ctx, sessionID)
}

// HandleLeave serves both the explicit leave event and an abrupt
// disconnect observed by the transport; the roster effect is identical.
func (uc *realtimeUsecase) HandleLeave(ctx context.Context, userID uuid.UUID) error {
	sessionID, ok := uc.roster.SessionOf(ctx, userID)
	if !ok {
		return nil
	}

	uc.roster.RemoveMember(ctx, sessionID, userID)

	if uc.roster.Count(ctx, sessionID) == 0 {
		if rt, ok := uc.rooms.Get(sessionID); ok {
			rt.Close()
		}
		return nil
	}

	if err := uc.sessionRepo.UpdateParticipants(ctx, sessionID, uc.roster.Count(ctx, sessionID)); err != nil {
		slog.Error(
			"persist participant count",
			slog.Any(constant.Error, err),
			slog.Any(constant.SessionID, sessionID),
		)
		return nil
	}

	return uc.BroadcastSessionState(ctx, sessionID)
}

func (uc *realtimeUsecase) HandleMessage(ctx context.Context, userID uuid.UUID, ev events.SendMessageEvent) error {
	sessionID, ok := uc.roster.SessionOf(ctx, userID)
	if !ok {
		uc.sendError(userID, "join a session first")
		return nil
	}

	if ev.Text == "" {
		return nil
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	msg := models.NewMessage(sessionID, user, ev.Text)

	rt, ok := uc.rooms.Get(sessionID)
	if !ok {
		return nil
	}

	if err := rt.AppendMessage(*msg); err != nil {
		// Room already closed or not yet running: drop silently.
		return nil
	}

	if err := uc.messageRepo.Create(ctx, msg); err != nil {
		slog.Error(
			"persist message",
			slog.Any(constant.Error, err),
			slog.Any(constant.SessionID, sessionID),
		)
		return nil
	}

	payload, err := events.NewMessage(events.TypeNewMessage, events.NewMessageEvent{Message: msg})
	if err != nil {
		return err
	}

	uc.broadcast(ctx, sessionID, payload)

	return nil
}

func (uc *realtimeUsecase) HandleAddTask(ctx context.Context, userID uuid.UUID, ev events.AddTaskEvent) error {
	sessionID, rt, ok := uc.roomOf(ctx, userID)
	if !ok || ev.Text == "" {
		return nil
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	task := models.NewTask(sessionID, user, ev.Text)

	if err := rt.AddTask(*task); err != nil {
		return nil
	}

	if err := uc.taskRepo.Create(ctx, task); err != nil {
		slog.Error("persist task", slog.Any(constant.Error, err), slog.Any(constant.TaskID, task.ID))
	}

	return uc.broadcastTasks(ctx, sessionID, rt)
}

func (uc *realtimeUsecase) HandleToggleTask(ctx context.Context, userID uuid.UUID, ev events.TaskRefEvent) error {
	sessionID, rt, ok := uc.roomOf(ctx, userID)
	if !ok {
		return nil
	}

	taskID, err := uuid.Parse(ev.TaskID)
	if err != nil {
		uc.sendError(userID, "invalid task_id")
		return nil
	}

	if err := rt.ToggleTask(taskID, userID); err != nil {
		if errors.Is(err, room.ErrNotAuthor) || errors.Is(err, room.ErrTaskNotFound) {
			uc.sendError(userID, err.Error())
		}
		return nil
	}

	for _, t := range rt.Tasks() {
		if t.ID != taskID {
			continue
		}
		if err := uc.taskRepo.Update(ctx, &t); err != nil {
			slog.Error("persist task", slog.Any(constant.Error, err), slog.Any(constant.TaskID, taskID))
		}
	}

	return uc.broadcastTasks(ctx, sessionID, rt)
}

func (uc *realtimeUsecase) HandleDeleteTask(ctx context.Context, userID uuid.UUID, ev events.TaskRefEvent) error {
	sessionID, rt, ok := uc.roomOf(ctx, userID)
	if !ok {
		return nil
	}

	taskID, err := uuid.Parse(ev.TaskID)
	if err != nil {
		uc.sendError(userID, "invalid task_id")
		return nil
	}

	if err := rt.DeleteTask(taskID, userID); err != nil {
		if errors.Is(err, room.ErrNotAuthor) || errors.Is(err, room.ErrTaskNotFound) {
			uc.sendError(userID, err.Error())
		}
		return nil
	}

	if err := uc.taskRepo.Delete(ctx, taskID); err != nil {
		slog.Error("persist task delete", slog.Any(constant.Error, err), slog.Any(constant.TaskID, taskID))
	}

	return uc.broadcastTasks(ctx, sessionID, rt)
}

// BroadcastSessionState sends session-updated with the live roster to
// every member of the session, including the one whose action caused it.
func (uc *realtimeUsecase) BroadcastSessionState(ctx context.Context, sessionID uuid.UUID) error {
	session, err := uc.sessionUsecase.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	members := uc.roster.Members(ctx, sessionID)
	session.Participants = len(members)

	ev := events.SessionUpdatedEvent{
		Session: session,
		Status:  session.StatusAt(uc.now()),
		Roster:  members,
	}

	if rt, ok := uc.rooms.Get(sessionID); ok {
		ev.VideoURL = rt.Video().URL
		ev.RemainingSeconds = rt.Remaining()
	}

	payload, err := events.NewMessage(events.TypeSessionUpdated, ev)
	if err != nil {
		return err
	}

	uc.broadcast(ctx, sessionID, payload)

	return nil
}

// onRoomClosed runs once per runtime, after it reached Closed: notify the
// remaining members, clear the roster and drop the session from the store.
func (uc *realtimeUsecase) onRoomClosed(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := events.NewMessage(events.TypeSessionClosed, events.SessionClosedEvent{SessionID: sessionID.String()})
	if err == nil {
		uc.broadcast(ctx, sessionID, payload)
	}

	uc.roster.RemoveAll(ctx, sessionID)
	metric.SetOpenRooms(uc.rooms.Count())

	if err := uc.sessionUsecase.DropSession(ctx, sessionID); err != nil {
		slog.Error(
			"drop session after room close",
			slog.Any(constant.Error, err),
			slog.Any(constant.SessionID, sessionID),
		)
	}
}

func (uc *realtimeUsecase) broadcastTasks(ctx context.Context, sessionID uuid.UUID, rt *room.Runtime) error {
	payload, err := events.NewMessage(events.TypeTaskUpdated, events.TaskUpdatedEvent{Tasks: rt.Tasks()})
	if err != nil {
		return err
	}

	uc.broadcast(ctx, sessionID, payload)

	return nil
}

// broadcast delivers a payload to the session's subscribers only; members
// of other sessions never observe it.
func (uc *realtimeUsecase) broadcast(ctx context.Context, sessionID uuid.UUID, payload events.Message) {
	for _, member := range uc.roster.Members(ctx, sessionID) {
		uc.wsRepo.Write(member.ID, payload)
	}
}

func (uc *realtimeUsecase) sendError(userID uuid.UUID, reason string) {
	payload, err := events.NewMessage(events.TypeError, events.ErrorEvent{Message: reason})
	if err != nil {
		return
	}

	uc.wsRepo.Write(userID, payload)
}

func (uc *realtimeUsecase) memberOf(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, bool) {
	current, ok := uc.roster.SessionOf(ctx, userID)
	return current, ok && current == sessionID
}

// roomOf resolves the caller's current session and its open runtime.
func (uc *realtimeUsecase) roomOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, *room.Runtime, bool) {
	sessionID, ok := uc.roster.SessionOf(ctx, userID)
	if !ok {
		uc.sendError(userID, "join a session first")
		return uuid.Nil, nil, false
	}

	rt, ok := uc.rooms.Get(sessionID)
	if !ok {
		return uuid.Nil, nil, false
	}

	return sessionID, rt, true
}
