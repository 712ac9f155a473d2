package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/policies"
)

type InboxStore struct {
	col      *mongo.Collection
	consumer string
}

func NewInboxStore(db *mongo.Database, consumer string) *InboxStore {
	col := db.Collection("app_inbox")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)})
	return &InboxStore{col: col, consumer: consumer}
}

var _ policies.Inbox = (*InboxStore)(nil)

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"event_id": eventID, "consumer": s.consumer}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *InboxStore) Record(ctx context.Context, eventID string) error {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
