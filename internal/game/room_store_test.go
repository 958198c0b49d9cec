package game

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RoomStoreSuite struct {
	suite.Suite
	clock  *fakeClock
	random *fixedRandom
	store  *RoomStore
}

func TestRoomStoreSuite(t *testing.T) {
	suite.Run(t, new(RoomStoreSuite))
}

func (s *RoomStoreSuite) SetupTest() {
	s.clock = &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s.random = &fixedRandom{}
	s.store = NewRoomStore(
		WithClock(s.clock.now),
		WithRandom(s.random),
		WithLogger(quietLogger()),
	)
}

func (s *RoomStoreSuite) TestCreateGeneratesUniqueCodes() {
	s.random.strings = []string{"ABC123", "ABC123", "bad!!!", "XYZ789"}

	first, err := s.store.Create()
	s.Require().NoError(err)
	s.Equal("ABC123", first.Code)

	second, err := s.store.Create()
	s.Require().NoError(err)
	s.Equal("XYZ789", second.Code, "collisions and malformed codes are retried")
	s.Equal(2, s.store.Len())
}

func (s *RoomStoreSuite) TestCreateGivesUpAfterTooManyCollisions() {
	s.random.strings = []string{"ABC123"}
	_, err := s.store.Create()
	s.Require().NoError(err)

	_, err = s.store.Create()
	s.ErrorIs(err, ErrInternal)
}

func (s *RoomStoreSuite) TestCreateRunsOnCreateHook() {
	s.random.strings = []string{"ABC123"}
	var hooked *Room
	s.store.OnCreate = func(r *Room) { hooked = r }

	r, err := s.store.Create()
	s.Require().NoError(err)
	s.Same(r, hooked)
}

func (s *RoomStoreSuite) TestOpen() {
	s.random.strings = []string{"ABC123"}

	r, created, err := s.store.Open("")
	s.Require().NoError(err)
	s.True(created)

	again, created, err := s.store.Open("  abc123 ")
	s.Require().NoError(err)
	s.False(created)
	s.Same(r, again)

	_, _, err = s.store.Open("ZZZ999")
	s.ErrorIs(err, ErrRoomNotFound)
	_, _, err = s.store.Open("nope")
	s.ErrorIs(err, ErrRoomNotFound)
	s.Equal(1, s.store.Len(), "unknown codes never create rooms")
}

func (s *RoomStoreSuite) TestGetAndDelete() {
	s.random.strings = []string{"ABC123"}
	_, err := s.store.Create()
	s.Require().NoError(err)

	_, ok := s.store.Get("abc123")
	s.True(ok)

	s.store.Delete("abc123")
	_, ok = s.store.Get("ABC123")
	s.False(ok)

	s.store.Delete("ABC123")
	s.Equal(0, s.store.Len())
}

func (s *RoomStoreSuite) TestSweepRemovesIdleEmptyRoom() {
	s.random.strings = []string{"ABC123"}
	r, err := s.store.Create()
	s.Require().NoError(err)

	s.clock.advance(4 * time.Minute)
	s.Equal(0, s.store.Sweep(s.clock.now()))

	s.clock.advance(2 * time.Minute)
	s.Equal(1, s.store.Sweep(s.clock.now()))
	s.True(r.Closed())
	_, ok := s.store.Get("ABC123")
	s.False(ok)
}

func (s *RoomStoreSuite) TestSweepKeepsRecentlyEmptiedRoom() {
	s.random.strings = []string{"ABC123"}
	r, err := s.store.Create()
	s.Require().NoError(err)
	alice := uuid.New()

	s.clock.advance(10 * time.Minute)
	r.Mu.Lock()
	_, err = r.AddPlayer(alice, "Alice")
	s.Require().NoError(err)
	r.RemovePlayer(alice)
	r.Mu.Unlock()

	s.clock.advance(time.Minute)
	s.Equal(0, s.store.Sweep(s.clock.now()), "idle time counts from the last departure")
}

func (s *RoomStoreSuite) TestSweepNeverRemovesActiveGame() {
	s.random.strings = []string{"ABC123"}
	r, err := s.store.Create()
	s.Require().NoError(err)

	alice, bob := uuid.New(), uuid.New()
	r.Mu.Lock()
	_, _ = r.AddPlayer(alice, "Alice")
	_, _ = r.AddPlayer(bob, "Bob")
	s.Require().NoError(r.SubmitWords(alice, aliceWords))
	s.Require().NoError(r.SubmitWords(bob, bobWords))
	r.Mu.Unlock()

	s.clock.advance(3 * time.Hour)
	s.Equal(0, s.store.Sweep(s.clock.now()))
	s.Equal(1, s.store.Len())
}

func (s *RoomStoreSuite) TestSweepRemovesOldRoomNotPlaying() {
	s.random.strings = []string{"ABC123"}
	r, err := s.store.Create()
	s.Require().NoError(err)

	alice := uuid.New()
	r.Mu.Lock()
	_, _ = r.AddPlayer(alice, "Alice")
	r.Mu.Unlock()

	var reaped []uuid.UUID
	s.store.OnReap = func(room *Room) {
		for _, p := range room.Players {
			reaped = append(reaped, p.ConnID)
		}
	}

	s.clock.advance(59 * time.Minute)
	s.Equal(0, s.store.Sweep(s.clock.now()))
	s.clock.advance(time.Minute)
	s.Equal(1, s.store.Sweep(s.clock.now()))
	s.Equal([]uuid.UUID{alice}, reaped)
}

func (s *RoomStoreSuite) TestSweepSurvivesPanickingHook() {
	s.random.strings = []string{"AAAAAA", "BBBBBB"}
	_, err := s.store.Create()
	s.Require().NoError(err)
	_, err = s.store.Create()
	s.Require().NoError(err)

	calls := 0
	s.store.OnReap = func(r *Room) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	}

	s.clock.advance(10 * time.Minute)
	removed := s.store.Sweep(s.clock.now())
	s.Equal(2, removed, "a failure on one room does not stop the sweep")
	s.Equal(2, calls)
	s.Equal(0, s.store.Len())
}

func (s *RoomStoreSuite) TestClosedRoomIsSkipped() {
	s.random.strings = []string{"ABC123"}
	r, err := s.store.Create()
	s.Require().NoError(err)
	r.Mu.Lock()
	r.closed = true
	r.Mu.Unlock()

	s.clock.advance(2 * time.Hour)
	s.Equal(0, s.store.Sweep(s.clock.now()))
}

func TestRunReaperStopsOnCancel(t *testing.T) {
	store := NewRoomStore(WithLogger(quietLogger()))
	_, err := store.Create()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunReaper(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, store.Len(), "fresh rooms survive the reaper")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode(" abc123 "))
	assert.True(t, validCode("ABC123"))
	assert.False(t, validCode("abc123"))
	assert.False(t, validCode("ABC12"))
}
