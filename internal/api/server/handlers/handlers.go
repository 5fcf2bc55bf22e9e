package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/relay"
)

const statusProbeTimeout = 2 * time.Second

type Handler struct {
	relay    *relay.Relay
	upstream client.UpstreamClient
}

func NewHandler(upstream client.UpstreamClient, policy relay.DecodePolicy) *Handler {
	return &Handler{
		relay:    relay.New(upstream, policy),
		upstream: upstream,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/chat", h.ProcessTextHandler)
	e.GET("/models", h.ModelHandler)
	e.GET("/status", h.StatusHandler)
}

// ModelHandler lists the models the upstream can serve.
func (h *Handler) ModelHandler(c echo.Context) error {
	models, err := h.upstream.ListModels(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(upstreamStatus(err), "failed to fetch models: "+err.Error())
	}
	if models == nil {
		models = []string{}
	}
	return c.JSON(http.StatusOK, models)
}

type statusResponse struct {
	PortWorking       bool `json:"port_working"`
	ServerWorking     bool `json:"server_working"`
	UpstreamReachable bool `json:"upstream_reachable"`
}

func (h *Handler) StatusHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), statusProbeTimeout)
	defer cancel()

	_, err := h.upstream.ListModels(ctx)
	return c.JSON(http.StatusOK, statusResponse{
		PortWorking:       true,
		ServerWorking:     true,
		UpstreamReachable: err == nil,
	})
}

// upstreamStatus maps a failure that happened before streaming started.
func upstreamStatus(err error) int {
	if errors.Is(err, client.ErrUpstreamUnavailable) {
		return http.StatusServiceUnavailable
	}
	var upstreamErr *client.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode != 0 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
