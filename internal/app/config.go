package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// ServerConfig defines how the HTTP/WebSocket backend should run. Values
// come from the environment (see the env tags); main layers flags on top.
type ServerConfig struct {
	Addr       string `env:"ROOMCHAT_ADDR" envDefault:":8080"`
	Path       string `env:"ROOMCHAT_PATH" envDefault:"/join"`
	DBPath     string `env:"ROOMCHAT_DB_PATH"`
	AttachPath string `env:"ROOMCHAT_ATTACH_PATH"`

	LogLevel   string `env:"ROOMCHAT_LOG_LEVEL" envDefault:"info"`
	LogConsole bool   `env:"ROOMCHAT_LOG_CONSOLE" envDefault:"false"`
	LogFile    string `env:"ROOMCHAT_LOG_FILE"`
}

// ClientConfig defines the parameters the terminal client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
	RoomKey   string
}

// LoadServerConfig parses the environment and fills in data paths.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(DefaultDataDir(), "roomchat.db")
	}
	if cfg.AttachPath == "" {
		cfg.AttachPath = filepath.Join(DefaultDataDir(), "attachments.db")
	}
	cfg.Path = NormalizeJoinPath(cfg.Path)
	return cfg, nil
}

// DefaultDataDir returns a per-user data directory for the bundled databases.
func DefaultDataDir() string {
	if dir := os.Getenv("ROOMCHAT_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "roomchat")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Roomchat")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Roomchat")
		}
		return filepath.Join(home, ".local", "share", "roomchat")
	}
	return filepath.Join(".", ".roomchat")
}

// NormalizeJoinPath guarantees the websocket join path starts with '/' and
// falls back to /join when empty.
func NormalizeJoinPath(path string) string {
	if path == "" {
		return "/join"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
