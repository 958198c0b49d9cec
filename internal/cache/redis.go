// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for round action logs.
const DefaultQueueName = "palavras_actions"

// ActionRoundEnd is the action type that closes a round.
const ActionRoundEnd = "round_end"

// GameActionRecord holds the minimal info needed by the historian.
type GameActionRecord struct {
	RoundID       uuid.UUID              `json:"round_id"`
	RoomCode      string                 `json:"room_code"`
	ActionIndex   int                    `json:"action_index"`
	ActorName     string                 `json:"actor_name"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionPublisher pushes action records onto the historian queue. Records
// handed to Publish are written by a single worker in the order they arrive.
type ActionPublisher struct {
	rdb     *redis.Client
	queue   string
	timeout time.Duration
	logger  *logrus.Logger

	pending   chan GameActionRecord
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

const publishBuffer = 256

// NewActionPublisher returns a publisher writing to queue and starts its
// worker. An empty queue name falls back to DefaultQueueName.
func NewActionPublisher(rdb *redis.Client, queue string, logger *logrus.Logger) *ActionPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &ActionPublisher{
		rdb:     rdb,
		queue:   queue,
		timeout: 2 * time.Second,
		logger:  logger,
		pending: make(chan GameActionRecord, publishBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func (p *ActionPublisher) PublishGameAction(ctx context.Context, record GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Publish queues the record for the worker so room logic never waits on
// Redis. A full buffer or a closed publisher drops the record with a warning.
func (p *ActionPublisher) Publish(record GameActionRecord) {
	select {
	case <-p.stop:
		p.logger.WithField("round", record.RoundID).Warn("Publisher closed, dropping round action")
		return
	default:
	}
	select {
	case p.pending <- record:
	default:
		p.logger.WithFields(logrus.Fields{
			"room":   record.RoomCode,
			"round":  record.RoundID,
			"action": record.ActionIndex,
		}).Warn("Action buffer full, dropping round action")
	}
}

// Close stops the worker after it has written whatever is already queued.
func (p *ActionPublisher) Close() {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *ActionPublisher) run() {
	defer close(p.done)
	for {
		select {
		case rec := <-p.pending:
			p.push(rec)
		case <-p.stop:
			for {
				select {
				case rec := <-p.pending:
					p.push(rec)
				default:
					return
				}
			}
		}
	}
}

func (p *ActionPublisher) push(rec GameActionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.PublishGameAction(ctx, rec); err != nil {
		p.logger.WithFields(logrus.Fields{
			"room":   rec.RoomCode,
			"round":  rec.RoundID,
			"action": rec.ActionIndex,
		}).Warnf("Error publishing round action: %v", err)
	}
}

// Queue is the list name records are pushed to.
func (p *ActionPublisher) Queue() string { return p.queue }
