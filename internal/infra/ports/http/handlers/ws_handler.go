package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/flowdesk/flowdesk/internal/application/config"
	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/domain/events"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/memory"
	"github.com/flowdesk/flowdesk/internal/infra/appctx"
	"github.com/flowdesk/flowdesk/internal/usecase"
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	realtimeUsecase usecase.RealtimeUsecase

	wsConnRepo memory.WebsocketConnectionRepository
}

func NewWebSocketHandler(cfg *config.Config, realtimeUsecase usecase.RealtimeUsecase, wsConnRepo memory.WebsocketConnectionRepository) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		realtimeUsecase: realtimeUsecase,
		wsConnRepo:      wsConnRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return fmt.Errorf("get user id from context")
	}

	h.wsConnRepo.Add(userID, ws)
	defer h.wsConnRepo.Remove(userID)

	err = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	if err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					slog.Error("ping failed", slog.Any(constant.Error, err))
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		default:
			_, msg, err := ws.ReadMessage()
			if err != nil {
				h.handleWebsocketError(c.Request().Context(), err)

				// A dropped connection is an implicit leave for this user.
				if err = h.realtimeUsecase.HandleLeave(c.Request().Context(), userID); err != nil {
					slog.Error(
						"handle leave while reading websocket message",
						slog.Any(constant.Error, err),
						slog.Any(constant.UserID, userID),
					)
				}

				return nil
			}

			event := new(events.Message)

			if err = json.Unmarshal(msg, &event); err != nil {
				slog.Error("unmarshal websocket message", slog.Any(constant.Error, err))

				return nil
			}

			if err = h.handleMessage(c.Request().Context(), userID, event); err != nil {
				slog.Error("handle message", slog.Any(constant.Error, err))
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	userID uuid.UUID,
	msg *events.Message,
) error {
	switch msg.Type {
	case events.TypeJoinSession:
		var joinEvent events.JoinSessionEvent

		if err := json.Unmarshal(msg.Data, &joinEvent); err != nil {
			return fmt.Errorf("unmarshal join event: %w", err)
		}

		if err := h.realtimeUsecase.HandleJoin(ctx, userID, joinEvent); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeLeaveSession:
		if err := h.realtimeUsecase.HandleLeave(ctx, userID); err != nil {
			return fmt.Errorf("handle leave: %w", err)
		}

	case events.TypeSendMessage:
		var messageEvent events.SendMessageEvent

		if err := json.Unmarshal(msg.Data, &messageEvent); err != nil {
			return fmt.Errorf("unmarshal send message event: %w", err)
		}

		if err := h.realtimeUsecase.HandleMessage(ctx, userID, messageEvent); err != nil {
			return fmt.Errorf("handle message: %w", err)
		}

	case events.TypeAddTask:
		var taskEvent events.AddTaskEvent

		if err := json.Unmarshal(msg.Data, &taskEvent); err != nil {
			return fmt.Errorf("unmarshal add task event: %w", err)
		}

		if err := h.realtimeUsecase.HandleAddTask(ctx, userID, taskEvent); err != nil {
			return fmt.Errorf("handle add task: %w", err)
		}

	case events.TypeToggleTask:
		var taskEvent events.TaskRefEvent

		if err := json.Unmarshal(msg.Data, &taskEvent); err != nil {
			return fmt.Errorf("unmarshal toggle task event: %w", err)
		}

		if err := h.realtimeUsecase.HandleToggleTask(ctx, userID, taskEvent); err != nil {
			return fmt.Errorf("handle toggle task: %w", err)
		}

	case events.TypeDeleteTask:
		var taskEvent events.TaskRefEvent

		if err := json.Unmarshal(msg.Data, &taskEvent); err != nil {
			return fmt.Errorf("unmarshal delete task event: %w", err)
		}

		if err := h.realtimeUsecase.HandleDeleteTask(ctx, userID, taskEvent); err != nil {
			return fmt.Errorf("handle delete task: %w", err)
		}

	default:
		return errors.New("unknown message type")
	}

	return nil
}

func (h *WebSocketHandler) handleWebsocketError(ctx context.Context, err error) {
	userID, ok := appctx.UserID(ctx)
	if !ok {
		userID = uuid.Nil
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("user disconnected from websocket", slog.Any(constant.UserID, userID))
		default:
			slog.Error("websocket close error")
		}
	} else {
		slog.Error(
			"websocket read",
			slog.Any(constant.Error, err),
		)
	}
}
