package policies

import "context"

// Inbox de-duplicates inbound events per consumer.
type Inbox interface {
	// Seen reports whether eventID has been recorded.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Record marks eventID as applied. Recording twice is not an error.
	Record(ctx context.Context, eventID string) error
}
