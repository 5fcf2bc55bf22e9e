package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/logger"
)

// ErrClientDisconnected is returned by Pump when the caller went away.
var ErrClientDisconnected = errors.New("client disconnected")

// DecodePolicy decides what happens to a malformed upstream line.
type DecodePolicy int

const (
	SkipMalformed DecodePolicy = iota
	AbortOnMalformed
)

func ParsePolicy(s string) (DecodePolicy, error) {
	switch s {
	case "", "skip":
		return SkipMalformed, nil
	case "abort":
		return AbortOnMalformed, nil
	default:
		return SkipMalformed, fmt.Errorf("unknown decode policy %q", s)
	}
}

// TokenWriter is the outgoing side of the relay. Flush pushes buffered bytes
// to the caller.
type TokenWriter interface {
	io.Writer
	Flush()
}

type Relay struct {
	upstream client.UpstreamClient
	policy   DecodePolicy
	log      *logger.Logger
}

func New(upstream client.UpstreamClient, policy DecodePolicy) *Relay {
	return &Relay{
		upstream: upstream,
		policy:   policy,
		log:      logger.NewLogger("relay"),
	}
}

// BuildUpstreamRequest reshapes a validated chat request into the upstream
// payload, keeping message order.
func BuildUpstreamRequest(req client.ChatRequest) *client.ServerChatRequest {
	messages := make([]client.ServerChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, client.ServerChatMessage{
			Role:    m.Role,
			Content: m.Text(),
		})
	}
	return &client.ServerChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}
}

// Open connects to the upstream. On success the caller owns the stream and
// must pass it to Pump or close it.
func (r *Relay) Open(ctx context.Context, req client.ChatRequest) (*Session, client.RecordStream, error) {
	session := NewSession(req.Model)
	session.State = AwaitingUpstream

	stream, err := r.upstream.Chat(ctx, BuildUpstreamRequest(req))
	if err != nil {
		session.State = Closed
		return session, nil, err
	}
	return session, stream, nil
}

// Pump forwards every non-empty record of stream to w, flushing after each
// write. It returns nil when the upstream finished, ErrClientDisconnected
// when the caller went away, and the upstream error otherwise. The stream is
// always closed on return.
func (r *Relay) Pump(ctx context.Context, session *Session, stream client.RecordStream, w TokenWriter) error {
	session.State = Streaming
	defer func() {
		if err := stream.Close(); err != nil {
			r.log.Debug("close upstream stream", slog.String("session", session.ID), slog.Any("error", err))
		}
		session.State = Closed
	}()

	for {
		record, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			var decodeErr *client.DecodeError
			if errors.As(err, &decodeErr) && r.policy == SkipMalformed {
				session.Skipped++
				r.log.Warn("skipping malformed upstream line",
					slog.String("session", session.ID),
					slog.Any("error", err),
				)
				continue
			}

			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrClientDisconnected, ctx.Err())
			}
			return err
		}

		if record.Content != "" {
			n, err := io.WriteString(w, record.Content)
			session.Bytes += int64(n)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
			}
			w.Flush()
			session.Tokens++
		}

		if record.Done {
			return nil
		}
	}
}
