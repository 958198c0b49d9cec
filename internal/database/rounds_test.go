// internal/database/rounds_test.go
package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRoundStore starts a throwaway PostgreSQL container and returns a store
// with the schema applied.
func setupRoundStore(t *testing.T) *RoundStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("palavras"),
		tcpostgres.WithUsername("palavras"),
		tcpostgres.WithPassword("palavras"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewRoundStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	// Applying the schema twice is harmless.
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func record(roundID uuid.UUID, idx int, actionType string, payload map[string]interface{}) cache.GameActionRecord {
	return cache.GameActionRecord{
		RoundID:       roundID,
		RoomCode:      "ABC123",
		ActionIndex:   idx,
		ActorName:     "Ana",
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Date(2024, 5, 1, 10, 0, idx, 0, time.UTC).UnixMilli(),
	}
}

func TestRoundStoreLifecycle(t *testing.T) {
	store := setupRoundStore(t)
	ctx := context.Background()

	completed, abandoned := uuid.New(), uuid.New()
	batch := []cache.GameActionRecord{
		record(completed, 1, "round_start", map[string]interface{}{"first_turn": "Ana"}),
		record(completed, 2, "guess_incorrect", map[string]interface{}{"guess": "mar"}),
		record(abandoned, 1, "round_start", nil),
		record(completed, 3, cache.ActionRoundEnd, map[string]interface{}{"winner": "Ana", "was_disconnection": true}),
	}
	require.NoError(t, store.InsertActions(ctx, batch))

	rd, err := store.GetRound(ctx, completed)
	require.NoError(t, err)
	assert.Equal(t, RoundCompleted, rd.Status)
	assert.Equal(t, "Ana", rd.WinnerName)
	assert.True(t, rd.WasDisconnection)
	assert.Equal(t, "ABC123", rd.RoomCode)
	assert.Equal(t, 3, rd.ActionCount)
	require.NotNil(t, rd.EndTime)

	// Replaying a batch does not duplicate actions or reopen the round.
	require.NoError(t, store.InsertActions(ctx, batch[:2]))
	rd, err = store.GetRound(ctx, completed)
	require.NoError(t, err)
	assert.Equal(t, 3, rd.ActionCount)
	assert.Equal(t, RoundCompleted, rd.Status)

	changed, err := store.MarkAbandoned(ctx, abandoned)
	require.NoError(t, err)
	assert.True(t, changed)
	rd, err = store.GetRound(ctx, abandoned)
	require.NoError(t, err)
	assert.Equal(t, RoundAbandoned, rd.Status)

	changed, err = store.MarkAbandoned(ctx, completed)
	require.NoError(t, err)
	assert.False(t, changed, "completed rounds stay completed")

	_, err = store.GetRound(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRoundNotFound)

	assert.NoError(t, store.InsertActions(ctx, nil))
}
