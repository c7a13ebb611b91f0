// Package server implements the process-wide Room registry: looking
// up or creating the Room for a Code, and reaping rooms once they are
// empty. A room's lifetime is guarded two independent ways: the room's
// own empty notification removes it the moment its last member
// disconnects, and a per-room idle timer independently removes it if
// no one ever finishes connecting in the first place. Either path can
// fire first; both are idempotent.
package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/concerto-app/theatre/internal/catalog"
	"github.com/concerto-app/theatre/internal/logging"
	"github.com/concerto-app/theatre/internal/metrics"
	"github.com/concerto-app/theatre/internal/model"
	"github.com/concerto-app/theatre/internal/room"
	"github.com/concerto-app/theatre/internal/timer"
)

// Server is the registry of live rooms, keyed by their canonical code.
type Server struct {
	catalog    *catalog.Catalog
	idleTimeout time.Duration

	mu      sync.Mutex
	rooms   map[model.CanonicalCode]*room.Room
	pending map[model.CanonicalCode]*timer.Timer
}

// New creates an empty registry. idleTimeout is how long a room may
// sit with no member having ever connected before it is reaped; 0
// arms no idle timer, so a room is then removed only by its empty
// notification.
func New(cat *catalog.Catalog, idleTimeout time.Duration) *Server {
	return &Server{
		catalog:    cat,
		idleTimeout: idleTimeout,
		rooms:      make(map[model.CanonicalCode]*room.Room),
		pending:    make(map[model.CanonicalCode]*timer.Timer),
	}
}

// GetOrCreateRoom returns the live Room for code, creating it (and
// arming its idle timer) if it doesn't yet exist.
func (s *Server) GetOrCreateRoom(code model.Code) *room.Room {
	key := code.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[key]; ok {
		return r
	}

	r := room.New(code, s.catalog, func() { s.onRoomEmpty(key) })
	s.rooms[key] = r
	metrics.ActiveRooms.Inc()

	// Catches a room that never receives a single successful connect,
	// which would never trigger the empty notification below.
	if s.idleTimeout > 0 {
		s.pending[key] = timer.New(s.idleTimeout, func() { s.reap(key) })
	}

	logging.Info(context.Background(), "room created", zap.String("room_code", string(key)))
	return r
}

// Room returns the live Room for code, if one currently exists.
func (s *Server) Room(code model.Code) (*room.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code.Canonical()]
	return r, ok
}

// onRoomEmpty is the Room's empty notification: its last member has
// just disconnected, so the idle timer is now moot and the room is
// closed and removed immediately.
func (s *Server) onRoomEmpty(key model.CanonicalCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingReapLocked(key)
	s.reapLocked(key)
}

// reap removes the room for key if it is still empty. Re-checks
// emptiness because a connect may have raced in a new member between
// the idle timer firing and this acquiring the lock.
func (s *Server) reap(key model.CanonicalCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[key]; ok && !r.IsEmpty() {
		return
	}
	s.reapLocked(key)
}

func (s *Server) reapLocked(key model.CanonicalCode) {
	r, ok := s.rooms[key]
	if !ok {
		return
	}
	delete(s.pending, key)
	delete(s.rooms, key)
	r.Close()
	metrics.ActiveRooms.Dec()
	logging.Info(context.Background(), "room reaped", zap.String("room_code", string(key)))
}

func (s *Server) cancelPendingReapLocked(key model.CanonicalCode) {
	if t, ok := s.pending[key]; ok {
		t.Cancel()
		delete(s.pending, key)
	}
}

// Shutdown closes every live room, releasing every pending Fetch.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.pending {
		t.Cancel()
		delete(s.pending, key)
	}
	for key, r := range s.rooms {
		r.Close()
		delete(s.rooms, key)
		metrics.ActiveRooms.Dec()
	}
}

// RoomCount returns the number of currently registered rooms. Intended
// for tests and diagnostics.
func (s *Server) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
