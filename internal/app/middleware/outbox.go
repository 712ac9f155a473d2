package middleware

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
)

// OutboxFlush nudges the relay once a command has committed. A failed flush is
// logged only: the records are durable and the relay picks them up on its next poll.
func OutboxFlush(box outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
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
			if err := box.Flush(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "err", err)
			}
			return res, nil
		})
	}
}
