package internal

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the front door's room registry: it resolves a room key to its live
// coordinator, creating one on first use and garbage-collecting rooms that
// emptied out. Room history outlives the in-memory room; a recreated room
// picks its log back up from storage.
type Hub struct {
	ctx         context.Context
	log         zerolog.Logger
	history     HistoryLog
	attachments AttachmentStore
	metrics     *Metrics

	mutex sync.RWMutex
	rooms map[string]*Room
}

func NewHub(ctx context.Context, history HistoryLog, attachments AttachmentStore, metrics *Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		ctx:         ctx,
		log:         log,
		history:     history,
		attachments: attachments,
		metrics:     metrics,
		rooms:       make(map[string]*Room),
	}
}

// Exists reports whether a room is currently live, without creating it.
func (hub *Hub) Exists(key string) bool {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	_, ok := hub.rooms[key]
	return ok
}

// getOrCreateRoom ensures there is a running Room for the given key.
func (hub *Hub) getOrCreateRoom(key string) *Room {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if room, exists := hub.rooms[key]; exists {
		return room
	}
	room := NewRoom(hub.ctx, key, hub.history, hub.attachments, hub.metrics, hub.log)
	hub.rooms[key] = room
	go room.Run()
	if hub.metrics != nil {
		hub.metrics.RoomOpened()
	}
	return room
}

// deleteRoomIfEmpty stops and forgets a room with no connections left.
func (hub *Hub) deleteRoomIfEmpty(key string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	room, exists := hub.rooms[key]
	if !exists || room.Size() != 0 {
		return
	}
	room.Stop()
	delete(hub.rooms, key)
	if hub.metrics != nil {
		hub.metrics.RoomClosed()
	}
}

// StopAll stops every live room; used during server shutdown.
func (hub *Hub) StopAll() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for key, room := range hub.rooms {
		room.Stop()
		delete(hub.rooms, key)
	}
}
