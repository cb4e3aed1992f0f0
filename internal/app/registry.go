package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/domain"
)

// Sender is the outbound half of a live connection. Owned by the adapter; the
// adapter must Close() it.
type Sender interface {
	TrySend([]byte) error
	Close()
}

type connEntry struct {
	Conn   Sender
	Room   domain.RoomID
	Cancel context.CancelFunc
}

// Registry tracks live connections and which room each belongs to. Pure
// bookkeeping: no fan-out and no room mutation happens here.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.SessionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.SessionID]*connEntry)}
}

func (r *Registry) Register(sid domain.SessionID, conn Sender, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("connection registered")
}

// Unregister drops the connection and reports which room, if any, it belonged
// to, so the caller can drive room cleanup exactly once.
func (r *Registry) Unregister(sid domain.SessionID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return "", false
	}
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(e.Room)).Msg("connection unregistered")
	return e.Room, e.Room != ""
}

func (r *Registry) Get(sid domain.SessionID) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

func (r *Registry) SetRoom(sid domain.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[sid]
	if !ok {
		return false
	}
	e.Room = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("room bound")
	return true
}

func (r *Registry) ClearRoom(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[sid]; ok {
		e.Room = ""
	}
}

type connSnap struct {
	SID  domain.SessionID
	Conn Sender
}

func (r *Registry) InRoom(room domain.RoomID) []connSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]connSnap, 0, len(r.conns))
	for sid, e := range r.conns {
		if e.Room == room {
			out = append(out, connSnap{SID: sid, Conn: e.Conn})
		}
	}
	return out
}

// Cancel tears the connection down through its context; the read pump then
// exits and the disconnect path runs the usual leave.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.conns[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("connection canceled")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
