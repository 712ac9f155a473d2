package availability

import "staybook/internal/app/queries"

func RegisterQueries(bus *queries.InMemoryBus, h *Handlers) {
	queries.RegisterHandler(bus, getAvailabilityKey, h.Get())
	queries.RegisterHandler(bus, checkAvailabilityKey, h.Check())
	queries.RegisterHandler(bus, quoteKey, h.Quote())
}
