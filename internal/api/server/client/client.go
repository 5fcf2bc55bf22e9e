package client

import (
	"context"
	"net/http"
	"net/url"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// UpstreamClient is an inference backend the relay can forward chats to.
type UpstreamClient interface {
	// Chat opens a streaming chat. The returned stream must be closed by the caller.
	Chat(ctx context.Context, req *ServerChatRequest) (RecordStream, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Client represents a client for the API
type Client struct {
	base      *url.URL
	http      *http.Client
	modelsUrl *url.URL
	chatUrl   *url.URL
}

// ClientConfig holds the configuration for the client
type ClientConfig struct {
	Scheme     string
	Host       string
	ModelsPath string
	ChatPath   string
	// HTTPClient defaults to a client without timeout; streams may run for minutes.
	HTTPClient *http.Client
}

// NewClient creates a new API client with configurable base URL and endpoints
func NewClient(config ClientConfig) *Client {
	baseURL := &url.URL{Scheme: config.Scheme, Host: config.Host}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:      baseURL,
		http:      httpClient,
		modelsUrl: baseURL.ResolveReference(&url.URL{Path: config.ModelsPath}),
		chatUrl:   baseURL.ResolveReference(&url.URL{Path: config.ChatPath}),
	}
}

func (c *Client) GetModelsURL() string {
	return c.modelsUrl.String()
}

func (c *Client) GetChatURL() string {
	return c.chatUrl.String()
}

// BaseURL is used by availability probes.
func (c *Client) BaseURL() string {
	return c.base.String()
}
