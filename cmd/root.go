package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bz888/chatrelay/internal/config"
)

var (
	configPath string
	dev        bool
	logPath    string
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Stream chat completions from a local LLM backend",
	Long: "chatrelay runs a small HTTP relay in front of an Ollama (or OpenAI compatible)\n" +
		"backend and a terminal client that talks to it.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the TOML config file (default chatrelay.toml)")
	rootCmd.PersistentFlags().BoolVar(&dev, "dev", false, "development mode, mirror logs to the console")
	rootCmd.PersistentFlags().StringVar(&logPath, "logPath", "", "directory for log files")

	rootCmd.AddCommand(serveCmd, chatCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(o config.Overrides) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	o.Dev = o.Dev || dev
	o.LogPath = logPath
	cfg.Apply(o)
	return cfg, nil
}
