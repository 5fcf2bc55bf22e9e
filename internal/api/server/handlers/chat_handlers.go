package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/logger"
	"github.com/bz888/chatrelay/internal/relay"
)

// ProcessTextHandler relays one chat turn. The reply is streamed as plain
// text; once the first byte is out there is no way to report an error, so a
// failing upstream just ends the body early.
func (h *Handler) ProcessTextHandler(c echo.Context) error {
	localLogger := logger.NewLogger("chat handler")

	var clientReq client.ChatRequest
	if err := c.Bind(&clientReq); err != nil {
		return err
	}
	if err := c.Validate(&clientReq); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	session, stream, err := h.relay.Open(ctx, clientReq)
	if err != nil {
		localLogger.Error("upstream chat failed",
			slog.String("session", session.ID),
			slog.String("model", clientReq.Model),
			slog.Any("error", err),
		)
		return c.NoContent(upstreamStatus(err))
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderXRequestID, session.ID)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	err = h.relay.Pump(ctx, session, stream, resp)

	attrs := []any{
		slog.String("session", session.ID),
		slog.String("model", session.Model),
		slog.Int("tokens", session.Tokens),
		slog.Int64("bytes", session.Bytes),
		slog.Int("skipped", session.Skipped),
	}
	switch {
	case err == nil:
		localLogger.Info("completed response", attrs...)
	case errors.Is(err, relay.ErrClientDisconnected):
		localLogger.Info("client went away", attrs...)
	default:
		localLogger.Warn("stream ended early", append(attrs, slog.Any("error", err))...)
	}
	return nil
}
