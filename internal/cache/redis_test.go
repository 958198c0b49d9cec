package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*ActionPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pub := NewActionPublisher(rdb, "test_actions", logrus.New())
	t.Cleanup(pub.Close)
	return pub, mr
}

func TestPublishGameActionPushesJSON(t *testing.T) {
	pub, mr := newTestPublisher(t)
	rec := GameActionRecord{
		RoundID:       uuid.New(),
		RoomCode:      "ABC123",
		ActionIndex:   1,
		ActorName:     "Alice",
		ActionType:    "guess_incorrect",
		ActionPayload: map[string]interface{}{"guess": "gato"},
		Timestamp:     time.Now().UnixMilli(),
	}

	require.NoError(t, pub.PublishGameAction(context.Background(), rec))

	items, err := mr.List("test_actions")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var got GameActionRecord
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, rec.RoundID, got.RoundID)
	assert.Equal(t, "ABC123", got.RoomCode)
	assert.Equal(t, "guess_incorrect", got.ActionType)
	assert.Equal(t, "gato", got.ActionPayload["guess"])
}

func TestPublishIsAsynchronous(t *testing.T) {
	pub, mr := newTestPublisher(t)

	for i := 1; i <= 3; i++ {
		pub.Publish(GameActionRecord{RoundID: uuid.New(), ActionIndex: i, ActionType: "round_start"})
	}

	require.Eventually(t, func() bool {
		items, err := mr.List("test_actions")
		return err == nil && len(items) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishKeepsActionOrder(t *testing.T) {
	pub, mr := newTestPublisher(t)
	round := uuid.New()

	const n = 100
	for i := 1; i <= n; i++ {
		actionType := "guess_incorrect"
		if i == n {
			actionType = ActionRoundEnd
		}
		pub.Publish(GameActionRecord{RoundID: round, ActionIndex: i, ActionType: actionType})
	}
	pub.Close()

	items, err := mr.List("test_actions")
	require.NoError(t, err)
	require.Len(t, items, n)
	for i, item := range items {
		var got GameActionRecord
		require.NoError(t, json.Unmarshal([]byte(item), &got))
		assert.Equal(t, i+1, got.ActionIndex)
	}
}

func TestPublishAfterCloseDrops(t *testing.T) {
	pub, mr := newTestPublisher(t)
	pub.Close()
	pub.Close()

	pub.Publish(GameActionRecord{RoundID: uuid.New(), ActionIndex: 1, ActionType: "round_start"})
	assert.False(t, mr.Exists("test_actions"))
}

func TestDefaultQueueName(t *testing.T) {
	pub := NewActionPublisher(nil, "", nil)
	defer pub.Close()
	assert.Equal(t, DefaultQueueName, pub.Queue())
}

func TestConnectFailsOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(context.Background()).Err())
}
