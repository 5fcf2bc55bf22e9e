package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/config"
	"github.com/bz888/chatrelay/internal/logger"
)

const probeTimeout = 3 * time.Second

// NewUpstream builds the inference client selected by cfg.Provider.
func NewUpstream(cfg config.UpstreamConfig) (client.UpstreamClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return client.NewOllamaClient(client.ClientConfig{
			Scheme:     cfg.Scheme,
			Host:       cfg.Host,
			ModelsPath: cfg.ModelsPath,
			ChatPath:   cfg.ChatPath,
		}), nil
	case config.ProviderOpenAI:
		return client.NewOpenAIClient(client.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}

// CheckUpstreamAvailability reports whether the upstream answers a model
// listing. The relay still starts when it does not; requests fail with 503
// until the backend comes up.
func CheckUpstreamAvailability(ctx context.Context, upstream client.UpstreamClient) bool {
	localLogger := logger.NewLogger("Server")

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	models, err := upstream.ListModels(ctx)
	if err != nil {
		localLogger.Warn("upstream not available", slog.Any("error", err))
		return false
	}
	localLogger.Info("upstream available", slog.Int("models", len(models)))
	return true
}
