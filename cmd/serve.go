package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bz888/chatrelay/internal/api/server"
	"github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/api/server/handlers"
	"github.com/bz888/chatrelay/internal/config"
	"github.com/bz888/chatrelay/internal/logger"
	"github.com/bz888/chatrelay/internal/relay"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat relay HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Overrides{Addr: serveAddr})
		if err != nil {
			return err
		}
		app := fx.New(serveOptions(cfg))
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8000)")
}

func serveOptions(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideUpstream,
			provideHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func provideLogger(lc fx.Lifecycle, cfg config.Config) (*slog.Logger, error) {
	err := logger.InitLogger(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Path:    cfg.Log.Path,
		Dev:     cfg.Log.Dev,
		Console: os.Stderr,
		Always:  true,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return logger.Close() }})
	return logger.L(), nil
}

// the logger parameter orders construction after InitLogger
func provideUpstream(_ *slog.Logger, cfg config.Config) (client.UpstreamClient, error) {
	return server.NewUpstream(cfg.Upstream)
}

func provideHandler(upstream client.UpstreamClient, cfg config.Config) (*handlers.Handler, error) {
	policy, err := relay.ParsePolicy(cfg.Upstream.DecodePolicy)
	if err != nil {
		return nil, err
	}
	return handlers.NewHandler(upstream, policy), nil
}

func provideServer(_ *slog.Logger, cfg config.Config, handler *handlers.Handler) *server.Server {
	return server.NewServer(cfg.Server, handler)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, upstream client.UpstreamClient, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			server.CheckUpstreamAvailability(ctx, upstream)
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
