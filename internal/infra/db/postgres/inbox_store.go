package postgres

import (
	"context"

	"staybook/internal/app/policies"
)

type InboxStore struct {
	db       db
	consumer string
}

func NewInboxStore(conn db, consumer string) *InboxStore {
	return &InboxStore{db: conn, consumer: consumer}
}

var _ policies.Inbox = (*InboxStore)(nil)

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM app_inbox WHERE event_id = $1 AND consumer = $2)`, eventID, s.consumer).Scan(&seen)
	return seen, err
}

func (s *InboxStore) Record(ctx context.Context, eventID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO app_inbox (event_id, consumer) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, eventID, s.consumer)
	return err
}
