package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bz888/chatrelay/internal/api/server/handlers"
	"github.com/bz888/chatrelay/internal/config"
	"github.com/bz888/chatrelay/internal/logger"
)

type Server struct {
	echo *echo.Echo
	addr string
	log  *logger.Logger
}

func NewServer(cfg config.ServerConfig, handler *handlers.Handler) *Server {
	localLogger := logger.NewLogger("Server")

	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			localLogger.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))

	registerRoutes(e, handler)

	return &Server{
		echo: e,
		addr: addr,
		log:  localLogger,
	}
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("Server started", slog.String("addr", s.addr))
	err := s.echo.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
