package models

import "time"

// TransitionRecord is one insert-only audit entry for a booking state change.
type TransitionRecord struct {
	ID           string    `json:"id" bson:"id"`
	BookingID    string    `json:"bookingId" bson:"booking_id"`
	HospitalID   string    `json:"hospitalId" bson:"hospital_id"`
	ResourceType string    `json:"resourceType" bson:"resource_type"`
	FromStatus   string    `json:"fromStatus" bson:"from_status"`
	ToStatus     string    `json:"toStatus" bson:"to_status"`
	Reason       string    `json:"reason,omitempty" bson:"reason,omitempty"`
	Actor        string    `json:"actor,omitempty" bson:"actor,omitempty"`
	LedgerDelta  int       `json:"ledgerDelta" bson:"ledger_delta"`
	RecordedAt   time.Time `json:"recordedAt" bson:"recorded_at"`
}
