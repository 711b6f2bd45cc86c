package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	intrnl "roomchat/internal"
	"roomchat/internal/storage"
)

// ServerHandle represents a running HTTP/WebSocket server instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	store  *storage.Store
	attach *storage.AttachStore
	hub    *intrnl.Hub
	log    zerolog.Logger
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer opens the history and attachment stores, runs migrations, wires
// the handlers, and starts serving in the background. Call Stop/Wait to
// manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig, log zerolog.Logger) (*ServerHandle, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	cfg.Path = NormalizeJoinPath(cfg.Path)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.AttachPath), 0o700); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	attach, err := storage.OpenAttachStore(cfg.AttachPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open attachment store: %w", err)
	}

	server := intrnl.NewServer(ctx, store, attach, log)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, server.ServeWS)
	mux.HandleFunc("/rooms", server.HandleCreateRoom)
	mux.HandleFunc("/exists", server.HandleRoomExists)
	mux.HandleFunc("/healthz", server.HandleHealthz)
	mux.Handle("/metrics", server.MetricsHandler())

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = attach.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		store:  store,
		attach: attach,
		hub:    server.Hub(),
		log:    log,
		done:   make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	h.hub.StopAll()
	if closeErr := h.attach.Close(); closeErr != nil {
		h.log.Error().Err(closeErr).Msg("attachment store close")
	}
	if closeErr := h.store.Close(); closeErr != nil {
		h.log.Error().Err(closeErr).Msg("store close")
	}
	h.err = err
}
