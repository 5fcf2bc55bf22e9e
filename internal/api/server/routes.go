package server

import (
	"github.com/labstack/echo/v4"

	"github.com/bz888/chatrelay/internal/api/server/handlers"
)

func registerRoutes(e *echo.Echo, handler *handlers.Handler) {
	handler.Register(e)
}
