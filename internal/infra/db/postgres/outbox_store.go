package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// claimLease is how long a claimed record stays with a worker that stopped
// before marking it.
const claimLease = time.Minute

// OutboxStore writes records through a transaction when built by a Unit, and
// serves the relay when built on the pool.
type OutboxStore struct {
	db db
}

func NewOutboxStore(conn db) *OutboxStore {
	return &OutboxStore{db: conn}
}

var (
	_ appoutbox.Writer  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO app_outbox (id, name, payload, occurred_at, aggregate, headers, state)
		VALUES (@id, @name, @payload, @occurred_at, @aggregate, @headers, @state)`,
		pgx.NamedArgs{
			"id":          record.ID,
			"name":        record.Name,
			"payload":     record.Payload,
			"occurred_at": record.OccurredAt.UTC(),
			"aggregate":   record.Aggregate,
			"headers":     headers,
			"state":       stateNew,
		})
	return err
}

// Claim picks the oldest due record, skipping rows another relay holds.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE app_outbox SET state = @claimed, claimed_by = @worker, claimed_at = now()
		WHERE id = (
			SELECT id FROM app_outbox
			WHERE (state IN (@new, @failed) AND next_attempt_at <= now())
			   OR (state = @claimed AND claimed_at <= now() - @lease::interval)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		pgx.NamedArgs{
			"claimed": stateClaimed,
			"new":     stateNew,
			"failed":  stateFailed,
			"worker":  workerID,
			"lease":   claimLease.String(),
		})

	var (
		msg     infraoutbox.Message
		headers []byte
	)
	if err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers, &msg.Attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, err
		}
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE app_outbox SET state = $2, sent_at = now() WHERE id = $1`, id, stateSent)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE app_outbox
		SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1
		WHERE id = $1`, id, stateFailed, next.UTC(), errMsg)
	return err
}
