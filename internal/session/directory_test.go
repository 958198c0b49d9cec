package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindLookupUnbind(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()

	_, ok := d.Lookup(id)
	assert.False(t, ok)

	require.NoError(t, d.Bind(id, "Alice", "ABC123"))
	s, ok := d.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", s.PlayerName)
	assert.Equal(t, "ABC123", s.RoomCode)
	assert.False(t, s.BoundAt.IsZero())

	assert.ErrorIs(t, d.Bind(id, "Alice", "XYZ789"), ErrAlreadyBound)

	s, ok = d.Unbind(id)
	assert.True(t, ok)
	assert.Equal(t, "ABC123", s.RoomCode)
	assert.Equal(t, 0, d.Len())

	_, ok = d.Unbind(id)
	assert.False(t, ok, "unbinding twice is harmless")
}

func TestConcurrentBinds(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			_ = d.Bind(id, "p", "ABC123")
			_, _ = d.Lookup(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, d.Len())
}
