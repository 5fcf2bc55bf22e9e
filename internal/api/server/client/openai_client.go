package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient streams chats from any OpenAI-compatible endpoint, such as
// Ollama's /v1 API, llama.cpp server or vLLM.
type OpenAIClient struct {
	api *openai.Client
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewOpenAIClient creates a new OpenAI API client
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(config)}
}

func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, openAIError("list models", err)
	}
	names := make([]string, 0, len(models.Models))
	for _, model := range models.Models {
		if model.ID != "" {
			names = append(names, model.ID)
		}
	}
	return names, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, req *ServerChatRequest) (RecordStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, openAIError("chat", err)
	}
	return &openAIStream{stream: stream}, nil
}

func openAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Op: op, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{Op: op, StatusCode: reqErr.HTTPStatusCode, Message: string(reqErr.Body), Err: err}
	}
	return unavailable(op, err)
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	done   bool
}

func (s *openAIStream) Recv() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}

	resp, err := s.stream.Recv()
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return Record{}, &DecodeError{Err: err}
		}
		if errors.Is(err, io.EOF) {
			s.done = true
		}
		return Record{}, err
	}

	if len(resp.Choices) == 0 {
		return Record{}, nil
	}

	choice := resp.Choices[0]
	record := Record{Content: choice.Delta.Content, Done: choice.FinishReason != ""}
	if record.Done {
		s.done = true
	}
	return record, nil
}

func (s *openAIStream) Close() error {
	s.done = true
	return s.stream.Close()
}
