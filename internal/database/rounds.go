// internal/database/rounds.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/palavras/internal/cache"
)

// Round statuses stored in rounds.status.
const (
	RoundInProgress = "in_progress"
	RoundCompleted  = "completed"
	RoundAbandoned  = "abandoned"
)

// ErrRoundNotFound is returned by GetRound for an unknown id.
var ErrRoundNotFound = errors.New("round not found")

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id                UUID PRIMARY KEY,
	room_code         TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'in_progress',
	winner_name       TEXT,
	was_disconnection BOOLEAN NOT NULL DEFAULT FALSE,
	start_time        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS round_actions (
	round_id       UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	action_index   INT NOT NULL,
	actor_name     TEXT NOT NULL,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (round_id, action_index)
);

CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(status);
`

// Round is one stored row of the rounds table.
type Round struct {
	ID               uuid.UUID
	RoomCode         string
	Status           string
	WinnerName       string
	WasDisconnection bool
	StartTime        time.Time
	EndTime          *time.Time
	ActionCount      int
}

// RoundStore reads and writes round history.
type RoundStore struct {
	pool *pgxpool.Pool
}

func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// EnsureSchema creates the history tables if they are missing.
func (s *RoundStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create round schema: %w", err)
	}
	return nil
}

// InsertActions writes a batch of records in one transaction. Rounds are
// created on their first action, and a round_end action completes them.
// Replayed actions are ignored.
func (s *RoundStore) InsertActions(ctx context.Context, records []cache.GameActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of round %s: %w", rec.ActionIndex, rec.RoundID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert actions: %w", err)
	}
	return nil
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	at := time.UnixMilli(rec.Timestamp).UTC()

	upsertRoundQ := `
		INSERT INTO rounds (id, room_code, status, start_time)
		VALUES ($1, $2, 'in_progress', $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertRoundQ, rec.RoundID, rec.RoomCode, at); err != nil {
		return err
	}

	payload := rec.ActionPayload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO round_actions (
			round_id, action_index, actor_name, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.RoundID, rec.ActionIndex, rec.ActorName, rec.ActionType, jsonPayload, at,
	); err != nil {
		return err
	}

	if rec.ActionType != cache.ActionRoundEnd {
		return nil
	}
	winner, _ := payload["winner"].(string)
	forfeit, _ := payload["was_disconnection"].(bool)
	finalizeQ := `
		UPDATE rounds
		SET status = 'completed', winner_name = $2, was_disconnection = $3, end_time = $4
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err = tx.Exec(ctx, finalizeQ, rec.RoundID, winner, forfeit, at)
	return err
}

// MarkAbandoned closes a round that is still in progress. It reports whether a
// row changed.
func (s *RoundStore) MarkAbandoned(ctx context.Context, roundID uuid.UUID) (bool, error) {
	var changed bool
	err := beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE rounds
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		tag, e := tx.Exec(ctx, q, roundID)
		if e != nil {
			return e
		}
		changed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark round %s abandoned: %w", roundID, err)
	}
	return changed, nil
}

// GetRound loads a round with its action count.
func (s *RoundStore) GetRound(ctx context.Context, roundID uuid.UUID) (Round, error) {
	q := `
		SELECT r.id, r.room_code, r.status, COALESCE(r.winner_name, ''), r.was_disconnection,
		       r.start_time, r.end_time,
		       (SELECT COUNT(*) FROM round_actions a WHERE a.round_id = r.id)
		FROM rounds r
		WHERE r.id = $1
	`
	var rd Round
	err := s.pool.QueryRow(ctx, q, roundID).Scan(
		&rd.ID, &rd.RoomCode, &rd.Status, &rd.WinnerName, &rd.WasDisconnection,
		&rd.StartTime, &rd.EndTime, &rd.ActionCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Round{}, ErrRoundNotFound
	}
	if err != nil {
		return Round{}, fmt.Errorf("get round %s: %w", roundID, err)
	}
	return rd, nil
}
