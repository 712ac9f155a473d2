package policies

import "context"

// AvailabilityInvalidator drops cached calendar reads for a property.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, propertyID string) error
}
