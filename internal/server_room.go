package internal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"roomchat/internal/storage"
)

// historyReplayLimit bounds how many persisted broadcasts a new joiner
// receives during admission.
const historyReplayLimit = 100

// HistoryLog is the append-only persistent store of past broadcasts.
type HistoryLog interface {
	AppendBroadcast(ctx context.Context, roomKey, tsKey string, payload []byte) error
	LastBroadcasts(ctx context.Context, roomKey string, n int) ([]storage.HistoryEntry, error)
}

// AttachmentStore persists per-connection identity snapshots keyed by
// connection token, surviving the room process itself.
type AttachmentStore interface {
	Save(token string, attachment storage.Attachment) error
	Load(token string) (storage.Attachment, bool, error)
	Delete(token string) error
}

type inboundFrame struct {
	conn    Conn
	payload []byte
}

// Room coordinates all participants of one chat channel. It owns the session
// table and the history log handle, and processes one event at a time on its
// own goroutine: admission, a single inbound frame, or a connection close
// always run to completion before the next event starts. Rooms run
// concurrently with each other, never with themselves.
type Room struct {
	key         string
	ctx         context.Context
	log         zerolog.Logger
	history     HistoryLog
	attachments AttachmentStore
	table       *SessionTable
	metrics     *Metrics

	clock     func() time.Time
	lastStamp uint64
	seq       uint64
	size      atomic.Int64

	admit  chan Conn
	frames chan inboundFrame
	closed chan Conn
	quit   chan struct{}
}

// NewRoom builds a room around its collaborators. Call Run on a dedicated
// goroutine to start processing events.
func NewRoom(ctx context.Context, key string, history HistoryLog, attachments AttachmentStore, metrics *Metrics, log zerolog.Logger) *Room {
	return &Room{
		key:         key,
		ctx:         ctx,
		log:         log.With().Str("room", key).Logger(),
		history:     history,
		attachments: attachments,
		table:       NewSessionTable(),
		metrics:     metrics,
		clock:       time.Now,
		admit:       make(chan Conn),
		frames:      make(chan inboundFrame, 64),
		closed:      make(chan Conn),
		quit:        make(chan struct{}),
	}
}

// Key returns the room's channel key.
func (room *Room) Key() string {
	return room.key
}

// Run processes room events until Stop is called.
func (room *Room) Run() {
	for {
		select {
		case conn := <-room.admit:
			room.admitConn(conn)
		case frame := <-room.frames:
			room.handleFrame(frame.conn, frame.payload)
		case conn := <-room.closed:
			room.handleClosed(conn)
		case <-room.quit:
			return
		}
	}
}

// Stop terminates the event loop. The caller must guarantee no further
// events will be enqueued.
func (room *Room) Stop() {
	close(room.quit)
}

// Admit hands a freshly accepted connection to the room. If the room has
// already stopped the connection is closed instead.
func (room *Room) Admit(conn Conn) {
	select {
	case room.admit <- conn:
	case <-room.quit:
		conn.Close()
	}
}

// Deliver routes one inbound text frame from a connection.
func (room *Room) Deliver(conn Conn, payload []byte) {
	select {
	case room.frames <- inboundFrame{conn: conn, payload: payload}:
	case <-room.quit:
	}
}

// ConnClosed tells the room a connection's transport has gone away.
func (room *Room) ConnClosed(conn Conn) {
	select {
	case room.closed <- conn:
	case <-room.quit:
	}
}

// Size returns the number of registered connections. The hub reads it from
// outside the event loop to garbage-collect empty rooms, so it is tracked
// atomically instead of consulting the table.
func (room *Room) Size() int {
	return int(room.size.Load())
}

// Restore rebuilds the session table from durable attachments after the
// room's process was interrupted and resumed with its connections
// reattached. Connections without an attachment never committed an identity
// and are dropped silently.
func (room *Room) Restore(conns []Conn) {
	for _, conn := range conns {
		attachment, found, err := room.attachments.Load(conn.Token())
		if err != nil {
			room.log.Error().Err(err).Str("token", conn.Token()).Msg("load attachment")
			conn.Close()
			continue
		}
		if !found {
			conn.Close()
			continue
		}
		if err := room.table.Insert(conn, RestoredSession(attachment.Username)); err != nil {
			room.log.Error().Err(err).Uint64("conn", conn.ID()).Msg("restore session")
			conn.Close()
			continue
		}
		room.size.Add(1)
		if room.metrics != nil {
			room.metrics.ConnOpened()
		}
	}
}

// admitConn registers a new connection: a preparing session is created and
// seeded with the current roster's join notices followed by the last
// persisted broadcasts in chronological order, then inserted into the table.
func (room *Room) admitConn(conn Conn) {
	session := NewSession()

	for _, name := range room.table.ActiveNames() {
		_ = session.Enqueue(MemberJoined{Joined: name})
	}

	entries, err := room.history.LastBroadcasts(room.ctx, room.key, historyReplayLimit)
	if err != nil {
		room.log.Error().Err(err).Msg("load history")
		conn.Close()
		return
	}
	// the log hands back newest first; replay wants oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		message, err := ParseMessage(entries[i].Payload)
		if err != nil {
			room.log.Warn().Str("ts_key", entries[i].Key).Msg("skipping undecodable history entry")
			continue
		}
		_ = session.Enqueue(message)
	}

	if err := room.table.Insert(conn, session); err != nil {
		room.log.Error().Err(err).Uint64("conn", conn.ID()).Msg("register session")
		conn.Close()
		return
	}
	room.size.Add(1)
	if room.metrics != nil {
		room.metrics.ConnOpened()
		room.metrics.HistoryReplayed(len(entries))
	}
}

// handleFrame parses and routes one inbound frame through the owning
// session's state.
func (room *Room) handleFrame(conn Conn, payload []byte) {
	message, err := ParseMessage(payload)
	if err != nil {
		room.sendError(conn, "unexpected format of message")
		return
	}

	entry := room.table.Get(conn.ID())
	if entry == nil {
		// every registered connection must have a session
		room.log.Error().Uint64("conn", conn.ID()).Msg("frame from connection with no session")
		conn.Close()
		return
	}

	if entry.Session.Active() {
		room.handleText(entry, message)
		return
	}
	room.handleJoin(entry, message)
}

// handleJoin drives the preparing half of the protocol: only a JoinRequest
// with an unused name activates the session.
func (room *Room) handleJoin(entry *SessionEntry, message Message) {
	join, ok := message.(JoinRequest)
	if !ok {
		room.sendError(entry.Conn, "expected JoinRequest message")
		return
	}
	if room.table.ActiveNameInUse(join.Name) {
		room.sendError(entry.Conn, "username already used")
		return
	}

	// flush the replay queue oldest first before the session turns active
	for _, queued := range entry.Session.Queue() {
		payload, err := EncodeMessage(queued)
		if err != nil {
			room.log.Error().Err(err).Msg("encode queued message")
			continue
		}
		if err := entry.Conn.Send(payload); err != nil {
			// never activated, so there is no identity to announce
			room.table.Remove(entry.Conn.ID())
			room.noteConnClosed()
			return
		}
	}

	if err := entry.Session.Activate(join.Name); err != nil {
		room.log.Error().Err(err).Uint64("conn", entry.Conn.ID()).Msg("activate session")
		return
	}
	if err := room.attachments.Save(entry.Conn.Token(), storage.Attachment{Username: join.Name}); err != nil {
		// identity stays in memory; a later restore will drop this connection
		room.log.Error().Err(err).Msg("save attachment")
	}

	room.broadcastExcept(MemberJoined{Joined: join.Name}, entry.Conn.ID())
	room.sendOrDrop(entry, Ready{Ready: true})
}

// handleText persists the chat record and fans it out to every session,
// including the author. Persistence comes first: a failed append aborts the
// event with no partial broadcast.
func (room *Room) handleText(entry *SessionEntry, message Message) {
	text, ok := message.(Text)
	if !ok {
		room.sendError(entry.Conn, "expected Text message")
		return
	}

	tsKey, timestamp := room.nextTimestampKey()
	record := Broadcast{
		Name:      entry.Session.Username(),
		Message:   text.Message,
		Timestamp: timestamp,
	}
	payload, err := EncodeMessage(record)
	if err != nil {
		room.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	if err := room.history.AppendBroadcast(room.ctx, room.key, tsKey, payload); err != nil {
		room.log.Error().Err(err).Str("ts_key", tsKey).Msg("persist broadcast")
		return
	}
	if room.metrics != nil {
		room.metrics.BroadcastPersisted()
	}

	room.broadcast(record)
}

// handleClosed removes a closed connection and, if it held an identity,
// announces the departure.
func (room *Room) handleClosed(conn Conn) {
	entry := room.table.Remove(conn.ID())
	if entry == nil {
		return
	}
	room.noteConnClosed()
	if !entry.Session.Active() {
		return
	}
	room.deleteAttachment(entry.Conn.Token())
	room.broadcast(MemberQuitted{Quit: entry.Session.Username()})
}

// broadcast delivers a message to every session: preparing sessions queue
// it, active ones get a direct send.
func (room *Room) broadcast(first Message) {
	room.fanOut(first, 0)
}

// broadcastExcept skips one connection on the first message only; cascading
// departure notices still reach everyone. Used for join notices, which go
// to all sessions except the joiner itself.
func (room *Room) broadcastExcept(first Message, exclude uint64) {
	room.fanOut(first, exclude)
}

// fanOut runs the broadcast work queue. Failed receivers are collected
// during the pass over a stable snapshot and removed afterwards, each
// removal feeding a MemberQuitted notice back into the queue. The queue
// drains because the table strictly shrinks on every failure.
func (room *Room) fanOut(first Message, exclude uint64) {
	pending := []Message{first}
	firstPass := true
	for len(pending) > 0 {
		message := pending[0]
		pending = pending[1:]

		payload, err := EncodeMessage(message)
		if err != nil {
			room.log.Error().Err(err).Msg("encode broadcast message")
			continue
		}

		var failed []*SessionEntry
		for _, entry := range room.table.Entries() {
			if firstPass && exclude != 0 && entry.Conn.ID() == exclude {
				continue
			}
			if !entry.Session.Active() {
				_ = entry.Session.Enqueue(message)
				continue
			}
			if err := entry.Conn.Send(payload); err != nil {
				failed = append(failed, entry)
			}
		}
		firstPass = false

		for _, entry := range failed {
			room.table.Remove(entry.Conn.ID())
			room.deleteAttachment(entry.Conn.Token())
			room.noteConnClosed()
			if room.metrics != nil {
				room.metrics.DeliveryFailed()
			}
			pending = append(pending, MemberQuitted{Quit: entry.Session.Username()})
		}
	}
}

// sendOrDrop sends directly to an active session; a failure is a delivery
// failure like any other and removes the session with a departure notice.
func (room *Room) sendOrDrop(entry *SessionEntry, message Message) {
	payload, err := EncodeMessage(message)
	if err != nil {
		room.log.Error().Err(err).Msg("encode message")
		return
	}
	if err := entry.Conn.Send(payload); err == nil {
		return
	}
	name := entry.Session.Username()
	if room.table.Remove(entry.Conn.ID()) == nil {
		return
	}
	room.deleteAttachment(entry.Conn.Token())
	room.noteConnClosed()
	if room.metrics != nil {
		room.metrics.DeliveryFailed()
	}
	room.broadcast(MemberQuitted{Quit: name})
}

// sendError notifies only the offending connection; other participants are
// never told about someone else's malformed input.
func (room *Room) sendError(conn Conn, reason string) {
	payload, err := EncodeMessage(ErrorResponse{Error: reason})
	if err != nil {
		return
	}
	if err := conn.Send(payload); err != nil {
		room.log.Debug().Uint64("conn", conn.ID()).Msg("error notice undeliverable")
	}
}

// nextTimestampKey returns a log key that is strictly increasing within the
// room: zero-padded unix seconds plus a sequence suffix that disambiguates
// messages landing in the same second.
func (room *Room) nextTimestampKey() (string, uint64) {
	now := uint64(room.clock().Unix())
	if now < room.lastStamp {
		now = room.lastStamp
	}
	if now == room.lastStamp {
		room.seq++
	} else {
		room.lastStamp = now
		room.seq = 0
	}
	return fmt.Sprintf("%011d-%06d", now, room.seq), now
}

func (room *Room) deleteAttachment(token string) {
	if err := room.attachments.Delete(token); err != nil {
		room.log.Warn().Err(err).Str("token", token).Msg("delete attachment")
	}
}

func (room *Room) noteConnClosed() {
	room.size.Add(-1)
	if room.metrics != nil {
		room.metrics.ConnClosed()
	}
}
