package app

import (
	"errors"

	intrnl "roomchat/internal"
)

// RunClient launches the Bubble Tea client with the provided configuration.
func RunClient(cfg ClientConfig) error {
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	if cfg.RoomKey == "" {
		return errors.New("room key is required")
	}
	return intrnl.RunClient(cfg.ServerURL, cfg.RoomKey, cfg.Username)
}
