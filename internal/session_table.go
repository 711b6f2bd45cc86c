package internal

import "errors"

// Conn is the transport surface a room needs from a connection: an identity
// assigned at admission, a durable token, a non-blocking send, and a close.
// Connections are compared by ID, never by value.
type Conn interface {
	ID() uint64
	Token() string
	Send(payload []byte) error
	Close()
}

// ErrDuplicateSession is returned when inserting a connection twice.
var ErrDuplicateSession = errors.New("connection already has a session")

// SessionEntry pairs a connection with its session.
type SessionEntry struct {
	Conn    Conn
	Session *Session
}

// SessionTable is a room's live membership registry, keyed by connection ID.
// Iteration is in insertion order so fan-out is deterministic. The table is
// only ever touched from its room's event loop.
type SessionTable struct {
	entries map[uint64]*SessionEntry
	order   []uint64
}

func NewSessionTable() *SessionTable {
	return &SessionTable{entries: make(map[uint64]*SessionEntry)}
}

// Insert registers a connection with its session.
func (t *SessionTable) Insert(conn Conn, session *Session) error {
	if _, exists := t.entries[conn.ID()]; exists {
		return ErrDuplicateSession
	}
	t.entries[conn.ID()] = &SessionEntry{Conn: conn, Session: session}
	t.order = append(t.order, conn.ID())
	return nil
}

// Get returns the entry for a connection, or nil.
func (t *SessionTable) Get(id uint64) *SessionEntry {
	return t.entries[id]
}

// Remove drops the entry and closes its connection. It returns the removed
// entry, or nil if the connection was not registered.
func (t *SessionTable) Remove(id uint64) *SessionEntry {
	entry, exists := t.entries[id]
	if !exists {
		return nil
	}
	delete(t.entries, id)
	for i, ordered := range t.order {
		if ordered == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	entry.Conn.Close()
	return entry
}

// Entries returns a stable snapshot of the current membership in insertion
// order. Callers may remove entries while ranging over the snapshot.
func (t *SessionTable) Entries() []*SessionEntry {
	snapshot := make([]*SessionEntry, 0, len(t.order))
	for _, id := range t.order {
		snapshot = append(snapshot, t.entries[id])
	}
	return snapshot
}

// ActiveNameInUse reports whether any active session holds the given name.
func (t *SessionTable) ActiveNameInUse(name string) bool {
	for _, entry := range t.entries {
		if entry.Session.Active() && entry.Session.Username() == name {
			return true
		}
	}
	return false
}

// ActiveNames returns the usernames of all active sessions in insertion order.
func (t *SessionTable) ActiveNames() []string {
	var names []string
	for _, id := range t.order {
		if entry := t.entries[id]; entry.Session.Active() {
			names = append(names, entry.Session.Username())
		}
	}
	return names
}

// Len returns the number of registered connections.
func (t *SessionTable) Len() int {
	return len(t.entries)
}
