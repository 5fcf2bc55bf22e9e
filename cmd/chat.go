package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bz888/chatrelay/internal/api"
	"github.com/bz888/chatrelay/internal/config"
	"github.com/bz888/chatrelay/internal/logger"
	"github.com/bz888/chatrelay/internal/ui"
)

var (
	chatServerURL string
	chatModel     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the terminal chat client",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Overrides{ServerURL: chatServerURL, Model: chatModel})
		if err != nil {
			return err
		}

		view := ui.New(cfg.Client.DefaultModel, cfg.Log.Dev)

		// stderr belongs to the terminal UI, so the console sink is the debug view
		if err := logger.InitLogger(logger.Options{
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			Path:    cfg.Log.Path,
			Dev:     cfg.Log.Dev,
			Console: view.DebugConsole(),
		}); err != nil {
			return err
		}
		defer logger.Close()

		return view.Run(api.NewClient(cfg.Client))
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "", "relay base URL (default http://localhost:8000)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model to chat with (default llama3.2:latest)")
}
