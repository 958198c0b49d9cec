// internal/historian/historian.go

// Package historian drains round action records from the Redis queue and
// persists them in batches. Rounds that stop producing actions are marked
// abandoned.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store is where batches end up.
type Store interface {
	InsertActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, roundID uuid.UUID) (bool, error)
}

// Options tune batching and inactivity detection. Zero values use defaults.
type Options struct {
	Queue         string
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	CheckInterval time.Duration
	PopTimeout    time.Duration
}

const (
	defaultBatchSize     = 20
	defaultFlushDelay    = 500 * time.Millisecond
	defaultInactivity    = 10 * time.Minute
	defaultCheckInterval = time.Minute
	defaultPopTimeout    = 3 * time.Second

	// maxPending bounds how many records are kept for retry while the store
	// is failing.
	maxPending = 10000
)

// Service is the historian worker.
type Service struct {
	rdb    *redis.Client
	store  Store
	opts   Options
	logger *logrus.Logger
	now    func() time.Time

	batchMu sync.Mutex
	batch   []cache.GameActionRecord

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time
}

func NewService(rdb *redis.Client, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = defaultFlushDelay
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = defaultInactivity
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaultCheckInterval
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:          rdb,
		store:        store,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
		batch:        make([]cache.GameActionRecord, 0, opts.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run starts the queue reader, the periodic flusher and the inactivity check,
// and blocks until ctx is cancelled. Whatever is still batched is flushed
// before it returns.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.readLoop(ctx) }()
	go func() { defer wg.Done(); s.flushLoop(ctx) }()
	go func() { defer wg.Done(); s.inactivityLoop(ctx) }()

	s.logger.WithField("queue", s.opts.Queue).Info("Historian started")
	<-ctx.Done()
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(flushCtx); err != nil {
		s.logger.Errorf("Final flush failed: %v", err)
	}
	s.logger.Info("Historian stopped")
}

// readLoop pops records with a bounded BLPop so cancellation is noticed.
func (s *Service) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := s.rdb.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("BLPop: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		if err := s.handlePayload(ctx, res[1]); err != nil {
			s.logger.Warnf("Invalid action record: %v", err)
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil && ctx.Err() == nil {
				s.logger.Errorf("Flush: %v", err)
			}
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepInactive(ctx, s.now())
		}
	}
}

// handlePayload decodes one queued record, tracks round activity and adds it
// to the batch. A full batch is flushed right away.
func (s *Service) handlePayload(ctx context.Context, payload string) error {
	var rec cache.GameActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if rec.RoundID == uuid.Nil {
		return errors.New("record has no round_id")
	}

	s.activityMu.Lock()
	if rec.ActionType == cache.ActionRoundEnd {
		delete(s.lastActivity, rec.RoundID)
	} else {
		s.lastActivity[rec.RoundID] = s.now()
	}
	s.activityMu.Unlock()

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.logger.Errorf("Flush: %v", err)
		}
	}
	return nil
}

// Flush writes the current batch in one transaction. On failure the records
// are kept for the next attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return nil
	}
	pending := s.batch
	s.batch = make([]cache.GameActionRecord, 0, s.opts.BatchSize)
	s.batchMu.Unlock()

	if err := s.store.InsertActions(ctx, pending); err != nil {
		s.requeue(pending)
		return fmt.Errorf("insert %d actions: %w", len(pending), err)
	}
	s.logger.Debugf("Flushed %d actions to DB", len(pending))
	return nil
}

// requeue puts failed records back in front of anything batched since.
func (s *Service) requeue(records []cache.GameActionRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	merged := append(records, s.batch...)
	if over := len(merged) - maxPending; over > 0 {
		s.logger.Warnf("Dropping %d unsaved actions", over)
		merged = merged[over:]
	}
	s.batch = merged
}

// Pending is the number of records waiting to be written.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// sweepInactive marks rounds idle for longer than the inactivity window as
// abandoned. It returns how many rounds were marked; failed marks are retried
// on the next sweep.
func (s *Service) sweepInactive(ctx context.Context, now time.Time) int {
	var stale []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	if len(stale) == 0 {
		return 0
	}
	// Their last actions must land before the status changes.
	if err := s.Flush(ctx); err != nil {
		s.logger.Errorf("Flush before abandoning rounds: %v", err)
	}
	abandoned := 0
	for _, id := range stale {
		changed, err := s.store.MarkAbandoned(ctx, id)
		if err != nil {
			s.logger.Errorf("Failed to mark round %s abandoned: %v", id, err)
			s.retryAbandon(id)
			continue
		}
		abandoned++
		if changed {
			s.logger.WithField("round", id).Info("Marked round abandoned due to inactivity")
		}
	}
	return abandoned
}

// retryAbandon puts a round back under watch so the next sweep tries again.
// A round that produced new actions meanwhile keeps its newer timestamp.
func (s *Service) retryAbandon(id uuid.UUID) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	if _, ok := s.lastActivity[id]; !ok {
		s.lastActivity[id] = time.Time{}
	}
}
