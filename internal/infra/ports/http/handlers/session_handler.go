package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/domain/input"
	"github.com/flowdesk/flowdesk/internal/domain/models"
	"github.com/flowdesk/flowdesk/internal/infra/appctx"
	"github.com/flowdesk/flowdesk/internal/infra/ports/http/dto"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres/repository"
	"github.com/flowdesk/flowdesk/internal/usecase"
)

type SessionHandler struct {
	sessionUsecase usecase.SessionUsecase
	userUsecase    usecase.UserUsecase

	messageRepo repository.MessageRepository
	taskRepo    repository.TaskRepository
}

func NewSessionHandler(
	sessionUsecase usecase.SessionUsecase,
	userUsecase usecase.UserUsecase,
	messageRepo repository.MessageRepository,
	taskRepo repository.TaskRepository,
) *SessionHandler {
	return &SessionHandler{
		sessionUsecase: sessionUsecase,
		userUsecase:    userUsecase,
		messageRepo:    messageRepo,
		taskRepo:       taskRepo,
	}
}

func (h *SessionHandler) ListSessions(c echo.Context) error {
	status := models.Status(c.QueryParam("status"))

	if c.QueryParam("grouped") == "true" {
		groups, err := h.sessionUsecase.GroupSessionsByDate(c.Request().Context(), status)
		if err != nil {
			slog.Error("group sessions", slog.Any(constant.Error, err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
		}

		return c.JSON(http.StatusOK, dto.GroupedSessionsResponse{Groups: groups})
	}

	sessions, err := h.sessionUsecase.ListSessions(c.Request().Context(), status)
	if err != nil {
		slog.Error("list sessions", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}

	return c.JSON(http.StatusOK, dto.ListSessionsResponse{Sessions: sessions})
}

func (h *SessionHandler) CreateSession(c echo.Context) error {
	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	host, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user"})
	}

	in := &input.CreateSessionInput{
		HostID:          host.ID,
		HostName:        host.Name,
		HostAvatar:      host.Avatar,
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
	}

	session, err := h.sessionUsecase.CreateSession(c.Request().Context(), in)
	if err != nil {
		var vErr *input.ValidationError
		if errors.As(err, &vErr) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": vErr.Reason})
		}

		slog.Error("create session", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid session id"})
	}

	session, err := h.sessionUsecase.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	return c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ListMessages(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid session id"})
	}

	messages, err := h.messageRepo.ListBySession(c.Request().Context(), sessionID)
	if err != nil {
		slog.Error("list messages", slog.Any(constant.Error, err), slog.Any(constant.SessionID, sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list messages"})
	}

	return c.JSON(http.StatusOK, messages)
}

func (h *SessionHandler) ListTasks(c echo.Context) error {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid session id"})
	}

	tasks, err := h.taskRepo.ListBySession(c.Request().Context(), sessionID)
	if err != nil {
		slog.Error("list tasks", slog.Any(constant.Error, err), slog.Any(constant.SessionID, sessionID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
	}

	return c.JSON(http.StatusOK, tasks)
}
