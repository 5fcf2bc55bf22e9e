package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/bz888/chatrelay/internal/config"
)

func TestServeOptionsResolve(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, fx.ValidateApp(serveOptions(cfg)))
}

func TestServeOptionsRejectBadPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Upstream.DecodePolicy = "ignore"

	app := fx.New(serveOptions(cfg), fx.NopLogger)
	assert.Error(t, app.Err())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["chat"])
	assert.NotNil(t, serveCmd.Flags().Lookup("addr"))
	assert.NotNil(t, chatCmd.Flags().Lookup("model"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("logPath"))
}
