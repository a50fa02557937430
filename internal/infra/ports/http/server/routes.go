package server

import (
	"github.com/labstack/echo/v4"

	"github.com/flowdesk/flowdesk/internal/application/config"
	"github.com/flowdesk/flowdesk/internal/infra/ports/http/handlers"
	"github.com/flowdesk/flowdesk/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			v1.GET("/me", authHandler.GetMe)

			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/sessions", sessionHandler.ListSessions)
			v1.POST("/sessions", sessionHandler.CreateSession)
			v1.GET("/sessions/:id", sessionHandler.GetSession)
			v1.GET("/sessions/:id/messages", sessionHandler.ListMessages)
			v1.GET("/sessions/:id/tasks", sessionHandler.ListTasks)
		}
	}

	e.Static("/", "web")

	return e
}
