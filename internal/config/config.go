package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath     = "chatrelay.toml"
	DefaultEnvPath        = ".env"
	DefaultHTTPAddr       = ":8000"
	DefaultUpstreamScheme = "http"
	DefaultUpstreamHost   = "localhost:11434"
	DefaultChatPath       = "/api/chat"
	DefaultModelsPath     = "/api/tags"
	DefaultServerURL      = "http://localhost:8000"
	DefaultModel          = "llama3.2:latest"
	DefaultClientTimeout  = 30

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DecodeSkip  = "skip"
	DecodeAbort = "abort"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Client   ClientConfig   `toml:"client"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Path   string `toml:"path"`
	Dev    bool   `toml:"dev"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// UpstreamConfig describes the inference backend the relay forwards to.
// Scheme, Host and the paths are used by the ollama provider, BaseURL and
// APIKey by the openai provider.
type UpstreamConfig struct {
	Provider     string `toml:"provider"`
	Scheme       string `toml:"scheme"`
	Host         string `toml:"host"`
	ChatPath     string `toml:"chat_path"`
	ModelsPath   string `toml:"models_path"`
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	DecodePolicy string `toml:"decode_policy"`
}

// ClientConfig is read by the terminal front-end only.
type ClientConfig struct {
	ServerURL      string `toml:"server_url"`
	DefaultModel   string `toml:"default_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultClientTimeout * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Upstream: UpstreamConfig{
			Provider:     ProviderOllama,
			Scheme:       DefaultUpstreamScheme,
			Host:         DefaultUpstreamHost,
			ChatPath:     DefaultChatPath,
			ModelsPath:   DefaultModelsPath,
			DecodePolicy: DecodeSkip,
		},
		Client: ClientConfig{
			ServerURL:      DefaultServerURL,
			DefaultModel:   DefaultModel,
			TimeoutSeconds: DefaultClientTimeout,
		},
	}
}

// Load builds the configuration from defaults, the .env file, the TOML file
// at path and the environment, in that order of precedence (last wins).
func Load(path string) (Config, error) {
	cfg := Default()

	// a missing .env is the common case
	_ = godotenv.Load(DefaultEnvPath)

	if path == "" {
		path = os.Getenv("CHATRELAY_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CHATRELAY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CHATRELAY_SERVER_URL"); v != "" {
		c.Client.ServerURL = v
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHATRELAY_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHATRELAY_DEV: %w", err)
		}
		c.Log.Dev = dev
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		scheme, host, err := parseHost(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_HOST: %w", err)
		}
		c.Upstream.Scheme = scheme
		c.Upstream.Host = host
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	return nil
}

// parseHost accepts both "host:port" and "scheme://host:port" forms.
func parseHost(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return DefaultUpstreamScheme, raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", errors.New("missing host in " + raw)
	}
	return u.Scheme, u.Host, nil
}

func (c Config) Validate() error {
	switch c.Upstream.Provider {
	case ProviderOllama:
		if c.Upstream.Host == "" {
			return errors.New("upstream.host is required for the ollama provider")
		}
	case ProviderOpenAI:
		if c.Upstream.BaseURL == "" {
			return errors.New("upstream.base_url is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown upstream.provider %q", c.Upstream.Provider)
	}

	switch c.Upstream.DecodePolicy {
	case DecodeSkip, DecodeAbort:
	default:
		return fmt.Errorf("unknown upstream.decode_policy %q", c.Upstream.DecodePolicy)
	}
	return nil
}
