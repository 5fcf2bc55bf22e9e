package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"

	serverClient "github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/config"
	"github.com/bz888/chatrelay/internal/logger"
)

var (
	ErrBackendDown  = errors.New("backend not running, start it with `chatrelay serve`")
	ErrTimeout      = errors.New("request timed out")
	ErrUpstreamDown = errors.New("inference backend unavailable")
)

// StatusError is returned for any non-200 reply other than 503.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relay returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Body)
}

const chunkSize = 4 * 1024

type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(cfg config.ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.ServerURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultServerURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.Timeout()},
		log:     logger.NewLogger("api client"),
	}
}

// Conversation is the history replayed to the relay on every turn.
type Conversation struct {
	mu       sync.Mutex
	messages []serverClient.ChatMessage
}

func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, serverClient.NewChatMessage(role, content))
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []serverClient.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]serverClient.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Truncate drops every message after the first n.
func (c *Conversation) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fallbackModels(), err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Failed to perform models request", slog.Any("error", err))
		return fallbackModels(), mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := responseError(resp)
		c.log.Error("Failed to get models", slog.Any("error", err))
		return fallbackModels(), err
	}

	var models []string
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		c.log.Error("Failed to decode models response", slog.Any("error", err))
		return fallbackModels(), err
	}
	if len(models) == 0 {
		return fallbackModels(), nil
	}
	return models, nil
}

func fallbackModels() []string {
	return []string{config.DefaultModel}
}

// Chat posts the whole conversation and streams the reply to onChunk.
// The accumulated text is returned even when the stream breaks off; the
// caller decides whether to keep it.
func (c *Client) Chat(ctx context.Context, model string, conv *Conversation, onChunk func(string)) (string, error) {
	payload := serverClient.ChatRequest{Model: model, Messages: conv.Messages()}

	c.log.Info("Sending chat", slog.String("model", model), slog.Int("messages", len(payload.Messages)))

	requestData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(requestData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Failed to send request", slog.Any("error", err))
		return "", mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	var accumulated strings.Builder
	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			accumulated.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.log.Error("Failed to read stream", slog.Any("error", err))
			return accumulated.String(), mapTransportError(err)
		}
	}

	c.log.Info("Chat completed", slog.Int("bytes", accumulated.Len()))
	return accumulated.String(), nil
}

func responseError(resp *http.Response) error {
	if resp.StatusCode == http.StatusServiceUnavailable {
		return ErrUpstreamDown
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func mapTransportError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %w", ErrBackendDown, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

