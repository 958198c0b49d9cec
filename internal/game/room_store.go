// internal/game/room_store.go
package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6

	DefaultEmptyRoomTTL  = 5 * time.Minute
	DefaultMaxRoomAge    = time.Hour
	DefaultSweepInterval = 10 * time.Minute

	maxCodeAttempts = 100
)

// RoomStore is the registry of live rooms keyed by code.
//
// mu only guards the map. It is never held while a room's Mu is acquired.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room

	EmptyRoomTTL time.Duration
	MaxRoomAge   time.Duration

	// OnCreate is called for every new room before it is published, so callers
	// can wire its SendFn and ActionSink.
	OnCreate func(r *Room)
	// OnReap is called with the room's Mu held, after the room is marked closed
	// and before it is removed from the registry.
	OnReap func(r *Room)

	logger *logrus.Logger
	random Random
	now    func() time.Time
}

// StoreOption customizes a RoomStore.
type StoreOption func(*RoomStore)

func WithRandom(random Random) StoreOption {
	return func(s *RoomStore) { s.random = random }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *RoomStore) { s.now = now }
}

func WithLogger(logger *logrus.Logger) StoreOption {
	return func(s *RoomStore) { s.logger = logger }
}

// NewRoomStore returns an empty registry.
func NewRoomStore(opts ...StoreOption) *RoomStore {
	s := &RoomStore{
		rooms:        make(map[string]*Room),
		EmptyRoomTTL: DefaultEmptyRoomTTL,
		MaxRoomAge:   DefaultMaxRoomAge,
		logger:       logrus.StandardLogger(),
		random:       CryptoRandom{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeCode upper-cases and trims a room code typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(CodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Create registers a new room under a freshly generated code.
func (s *RoomStore) Create() (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.random.String(CodeLength, CodeAlphabet)
		if _, exists := s.rooms[code]; exists || !validCode(code) {
			continue
		}
		r := NewRoom(code, s.now, s.random)
		r.Logger = s.logger
		if s.OnCreate != nil {
			s.OnCreate(r)
		}
		s.rooms[code] = r
		s.logger.WithField("room", code).Info("Room created")
		return r, nil
	}
	return nil, fmt.Errorf("%w: could not generate a unique room code after %d attempts", ErrInternal, maxCodeAttempts)
}

// Open resolves the room a join request refers to. An empty code creates a
// new room; any other code must name an existing one.
func (s *RoomStore) Open(code string) (room *Room, created bool, err error) {
	code = NormalizeCode(code)
	if code == "" {
		room, err = s.Create()
		return room, err == nil, err
	}
	if !validCode(code) {
		return nil, false, ErrRoomNotFound
	}
	room, ok := s.Get(code)
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	return room, false, nil
}

// Get looks up a room by code, case-insensitively.
func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[NormalizeCode(code)]
	return r, ok
}

// Delete removes a room. Deleting an unknown code is a no-op.
func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, NormalizeCode(code))
}

// Len is the number of live rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *RoomStore) snapshot() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Sweep deletes rooms that are empty and idle, or too old and not mid-game.
// A room that is playing with someone still seated is never deleted. It
// returns the number of rooms removed.
func (s *RoomStore) Sweep(now time.Time) int {
	removed := 0
	for _, r := range s.snapshot() {
		if s.sweepRoom(r, now) {
			removed++
		}
	}
	return removed
}

func (s *RoomStore) sweepRoom(r *Room, now time.Time) (reaped bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WithField("room", r.Code).Errorf("Recovered from panic while sweeping room: %v", rec)
			reaped = false
		}
	}()

	closed, players, state := s.closeIfExpired(r, now)
	if !closed {
		return false
	}

	s.mu.Lock()
	if s.rooms[r.Code] == r {
		delete(s.rooms, r.Code)
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"room":    r.Code,
		"players": players,
		"state":   state,
	}).Info("Reaped idle room")
	return true
}

// closeIfExpired marks r closed under its lock when it is due for removal.
func (s *RoomStore) closeIfExpired(r *Room, now time.Time) (bool, int, RoomState) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.closed || !s.expired(r, now) {
		return false, 0, r.State
	}
	r.closed = true
	players, state := len(r.Players), r.State
	s.runReapHook(r)
	return true, players, state
}

func (s *RoomStore) runReapHook(r *Room) {
	if s.OnReap == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WithField("room", r.Code).Errorf("Reap hook panicked: %v", rec)
		}
	}()
	s.OnReap(r)
}

// expired assumes r.Mu is held.
func (s *RoomStore) expired(r *Room, now time.Time) bool {
	if r.State == StatePlaying && len(r.Players) > 0 {
		return false
	}
	if len(r.Players) == 0 && now.Sub(r.lastActivity) >= s.EmptyRoomTTL {
		return true
	}
	return now.Sub(r.CreatedAt) >= s.MaxRoomAge
}

// RunReaper sweeps the registry every interval until ctx is cancelled.
func (s *RoomStore) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infof("Room reaper started (interval %s)", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Room reaper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Infof("Room reaper removed %d room(s), %d remaining", n, s.Len())
			}
		}
	}
}
