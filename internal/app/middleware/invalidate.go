package middleware

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
)

// PropertyAffecting results name the property whose calendar may have changed.
type PropertyAffecting interface {
	AffectedProperty() string
}

// InvalidateAvailability evicts cached calendar reads after a successful command.
func InvalidateAvailability(inv policies.AvailabilityInvalidator, logger *slog.Logger) CommandMiddleware {
	if inv == nil {
		panic("middleware: invalidator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if affected, ok := res.(PropertyAffecting); ok {
				if id := affected.AffectedProperty(); id != "" {
					if err := inv.Invalidate(context.WithoutCancel(ctx), id); err != nil {
						logger.Warn("availability cache invalidation failed", "property_id", id, "err", err)
					}
				}
			}
			return res, nil
		})
	}
}
