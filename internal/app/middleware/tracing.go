package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
)

// Tracing opens a span per command and stamps outbox records with its trace context.
func Tracing(tracer trace.Tracer) CommandMiddleware {
	if tracer == nil {
		tracer = otel.Tracer("staybook/commands")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, span := tracer.Start(ctx, "command "+cmd.Key(), trace.WithAttributes(attribute.String("command.key", cmd.Key())))
			defer span.End()
			if scoped, ok := cmd.(PropertyScoped); ok {
				target := scoped.LockTarget()
				span.SetAttributes(
					attribute.String("booking.id", target.BookingID),
					attribute.String("property.id", target.PropertyID),
				)
			}
			ctx = outbox.WithHeaderSource(ctx, traceHeaders)
			res, err := nextFn(ctx, cmd)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			return res, nil
		})
	}
}

func QueryTracing(tracer trace.Tracer) QueryMiddleware {
	if tracer == nil {
		tracer = otel.Tracer("staybook/queries")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, span := tracer.Start(ctx, "query "+q.Key())
			defer span.End()
			res, err := nextFn(ctx, q)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		})
	}
}

func traceHeaders(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
