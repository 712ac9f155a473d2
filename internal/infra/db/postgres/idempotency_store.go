package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"staybook/internal/app/middleware"
)

type IdempotencyStore struct {
	db  db
	ttl time.Duration
}

// NewIdempotencyStore returns a store that treats records older than ttl as absent.
func NewIdempotencyStore(conn db, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = time.Hour * 24 * 7
	}
	return &IdempotencyStore{db: conn, ttl: ttl}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.db.QueryRow(ctx, `
		SELECT command, payload, occurred_at FROM app_idempotency
		WHERE key = $1 AND created_at > $2`, key, time.Now().UTC().Add(-s.ttl)).
		Scan(&rec.Command, &rec.Payload, &rec.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO app_idempotency (key, command, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (key) DO UPDATE
		SET command = EXCLUDED.command, payload = EXCLUDED.payload,
			occurred_at = EXCLUDED.occurred_at, created_at = EXCLUDED.created_at`,
		rec.Key, rec.Command, rec.Payload, rec.OccurredAt.UTC())
	return err
}

// Purge deletes expired records.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM app_idempotency WHERE created_at <= $1`, time.Now().UTC().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
