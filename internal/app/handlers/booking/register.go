package booking

import (
	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

// RegisterCommands attaches every booking command handler to bus.
func RegisterCommands(bus *commands.InMemoryBus, env Env) {
	commands.RegisterHandler(bus, createBookingKey, &CreateBookingHandler{Env: env})
	commands.RegisterHandler(bus, confirmBookingKey, &ConfirmBookingHandler{Env: env})
	commands.RegisterHandler(bus, modifyBookingKey, &ModifyBookingHandler{Env: env})
	commands.RegisterHandler(bus, cancelBookingKey, &CancelBookingHandler{Env: env})
	commands.RegisterHandler(bus, completeBookingKey, &CompleteBookingHandler{Env: env})
	commands.RegisterHandler(bus, applyPaymentKey, &ApplyPaymentHandler{Env: env})
}

func RegisterQueries(bus *queries.InMemoryBus, h *QueryHandlers) {
	queries.RegisterHandler(bus, getBookingKey, h.Get())
	queries.RegisterHandler(bus, listPropertyBookingsKey, h.ListByProperty())
	queries.RegisterHandler(bus, listGuestBookingsKey, h.ListByGuest())
}
