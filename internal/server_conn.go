package internal

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192
)

// ErrConnClosed is returned by Send after the connection shut down.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when a connection cannot keep up with its
// outbound queue. The room treats it as a delivery failure and drops the
// session rather than letting one slow reader stall the fan-out.
var ErrSendBufferFull = errors.New("send buffer full")

// Client wraps a single websocket connection with a buffered send queue.
// Send and Close are only invoked from the owning room's event loop;
// readPump runs on its own goroutine and hands every frame to that loop.
type Client struct {
	id    uint64
	token string
	room  *Room
	conn  *websocket.Conn
	send  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wires a websocket connection to its room. The id is the room's
// session-table key; the token keys the durable attachment.
func NewClient(id uint64, token string, room *Room, conn *websocket.Conn) *Client {
	return &Client{
		id:    id,
		token: token,
		room:  room,
		conn:  conn,
		send:  make(chan []byte, 256),
		done:  make(chan struct{}),
	}
}

// ID returns the connection identity assigned at admission.
func (client *Client) ID() uint64 {
	return client.id
}

// Token returns the durable attachment key for this connection.
func (client *Client) Token() string {
	return client.token
}

// Send queues a payload for the write pump without blocking. A full queue
// or a closed connection reports a delivery failure to the caller.
func (client *Client) Send(payload []byte) error {
	select {
	case <-client.done:
		return ErrConnClosed
	default:
	}
	select {
	case client.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close signals the write pump to send a close frame and tear down the
// underlying connection. Safe to call more than once.
func (client *Client) Close() {
	client.closeOnce.Do(func() {
		close(client.done)
	})
}

// ReadPump relays inbound text frames into the room until the transport
// errors or closes, then notifies the room and lets the hub reap the room
// if this was its last connection.
func (client *Client) ReadPump(hub *Hub) {
	defer func() {
		client.room.ConnClosed(client)
		client.Close()
		if hub != nil {
			hub.deleteRoomIfEmpty(client.room.Key())
		}
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// normal close or read error; the deferred cleanup runs either way
			return
		}
		client.room.Deliver(client, payload)
	}
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings.
func (client *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case payload := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
