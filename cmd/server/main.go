package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"roomchat/internal/app"
	"roomchat/internal/logger"
)

func main() {
	// local .env is a dev convenience only
	_ = godotenv.Load()

	cfg, err := app.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.Addr, "server listen address")
	path := flag.String("path", cfg.Path, "websocket join path")
	dbPath := flag.String("db", cfg.DBPath, "history database path")
	flag.Parse()
	cfg.Addr = *addr
	cfg.Path = *path
	cfg.DBPath = *dbPath

	log := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Console:    cfg.LogConsole,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handle, err := app.RunServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("start server")
	}
	log.Info().Str("addr", handle.Addr()).Str("path", cfg.Path).Msg("roomchat server listening")

	if err := handle.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
