package handlers

// HandlerBundle aggregates the handler groups so route registration takes a
// single dependency.
type HandlerBundle struct {
	Sync    *SyncHandler
	Ledger  *LedgerHandler
	Booking *BookingHandler
}
