package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient represents a client for the Ollama API
type OllamaClient struct {
	Client
}

var DefaultOllamaConfig = ClientConfig{
	Scheme:     "http",
	Host:       "localhost:11434",
	ModelsPath: "/api/tags",
	ChatPath:   "/api/chat",
}

// NewOllamaClient creates a new Ollama API client
func NewOllamaClient(config ClientConfig) *OllamaClient {
	return &OllamaClient{
		Client: *NewClient(config),
	}
}

// OllamaAPIResponse is one line of the /api/chat stream. Only the fields the
// relay reads are decoded.
type OllamaAPIResponse struct {
	Message OllamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ModelsResponse struct {
	Models []OllamaModel `json:"models"`
}

type OllamaModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

type Families []string

// ModelDetails Details represents the details of a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          Families `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

type ollamaError struct {
	Error string `json:"error"`
}

func (c *OllamaClient) GetModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable("list models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list models", resp)
	}

	var response ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}

	return response.Models, nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.GetModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, model := range models {
		names[i] = model.Name
	}
	return names, nil
}

// Chat opens the /api/chat stream. The request is bound to ctx, so cancelling
// ctx aborts any pending read on the returned stream.
func (c *OllamaClient) Chat(ctx context.Context, data *ServerChatRequest) (RecordStream, error) {
	bts, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GetChatURL(), bytes.NewReader(bts))
	if err != nil {
		return nil, err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")
	response, err := c.http.Do(request)
	if err != nil {
		return nil, unavailable("chat", err)
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		return nil, statusError("chat", response)
	}

	return newLineStream(response.Body, DecodeRecord), nil
}

// DecodeRecord parses one NDJSON line of the Ollama chat stream.
func DecodeRecord(line []byte) (Record, error) {
	var apiResp OllamaAPIResponse
	if err := json.Unmarshal(line, &apiResp); err != nil {
		return Record{}, err
	}
	return Record{Content: apiResp.Message.Content, Done: apiResp.Done}, nil
}

func statusError(op string, resp *http.Response) error {
	upstreamErr := &UpstreamError{Op: op, StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp ollamaError
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		upstreamErr.Message = errResp.Error
	} else {
		upstreamErr.Message = string(bytes.TrimSpace(body))
	}
	return upstreamErr
}

// UnmarshalJSON handles the custom unmarshalling for Families.
func (f *Families) UnmarshalJSON(data []byte) error {
	// If the JSON data is "null", return an empty Families slice.
	if string(data) == "null" {
		*f = Families{}
		return nil
	}

	var families []string
	if err := json.Unmarshal(data, &families); err != nil {
		return err
	}
	*f = Families(families)
	return nil
}
