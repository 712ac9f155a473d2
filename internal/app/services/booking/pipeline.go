package booking

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
)

// Pipeline lists the collaborators of the booking command bus. Invalidator,
// Tracer and Logger are optional.
type Pipeline struct {
	UoWFactory     uow.UoWFactory
	Locker         policies.Locker
	LockTimeout    time.Duration
	Validator      middleware.Validator
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Outbox         outbox.Flusher
	Invalidator    policies.AvailabilityInvalidator
	Tracer         trace.Tracer
	Logger         *slog.Logger
}

// NewCommandBus registers the booking handlers and wraps them, outermost first, in
// validation, tracing, cache invalidation, outbox flush, the property lock,
// idempotency and the transaction. The lock is taken before the unit of work
// begins, so every read inside the transaction sees all earlier commits.
func NewCommandBus(p Pipeline, env bookingapp.Env) commands.Bus {
	bus := commands.NewInMemoryBus()
	bookingapp.RegisterCommands(bus, env)

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mws := []middleware.CommandMiddleware{
		middleware.Validation(p.Validator),
		middleware.Tracing(p.Tracer),
	}
	if p.Invalidator != nil {
		mws = append(mws, middleware.InvalidateAvailability(p.Invalidator, logger))
	}
	mws = append(mws,
		middleware.OutboxFlush(p.Outbox, logger),
		middleware.PropertyLock(p.Locker, handlersupport.PropertyResolver{UoWFactory: p.UoWFactory}, p.LockTimeout, logger),
		middleware.Idempotency(p.Idempotency, middleware.JSONResultCodec{}, p.IdempotencyTTL),
		middleware.Transaction(p.UoWFactory, nil),
	)
	return middleware.ChainCommands(bus, mws...)
}
