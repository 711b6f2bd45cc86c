package internal

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// all origins allowed in development; tighten before exposing publicly
		return true
	},
}

// Server owns the hub and the shared storage handles, and carries the HTTP
// surface that hands connections to rooms.
type Server struct {
	hub         *Hub
	metrics     *Metrics
	joinLimiter *RateLimiter
	log         zerolog.Logger

	nextConnID atomic.Uint64
}

// NewServer wires the front door around shared collaborators.
func NewServer(ctx context.Context, history HistoryLog, attachments AttachmentStore, log zerolog.Logger) *Server {
	metrics := NewMetrics()
	return &Server{
		hub:         NewHub(ctx, history, attachments, metrics, log),
		metrics:     metrics,
		joinLimiter: NewRateLimiter(30, time.Minute),
		log:         log,
	}
}

// Hub exposes the room registry, mainly for shutdown.
func (s *Server) Hub() *Hub {
	return s.hub
}

// MetricsHandler returns the Prometheus scrape handler.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// ServeWS upgrades the request and admits the connection into the room
// named by the "room" query parameter. An optional "token" parameter lets a
// reconnecting client keep its durable attachment key.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomKey := r.URL.Query().Get("room")
	if roomKey == "" {
		http.Error(w, "missing room query param", http.StatusBadRequest)
		return
	}
	if !s.joinLimiter.Allow(clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	room := s.hub.getOrCreateRoom(roomKey)
	client := NewClient(s.nextConnID.Add(1), token, room, conn)
	room.Admit(client)

	go client.WritePump()
	go client.ReadPump(s.hub)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
