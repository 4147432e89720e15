package audit

import (
	"context"

	"rapidcare/models"
)

// AuditRepository persists the insert-only booking transition trail.
type AuditRepository interface {
	RecordTransition(ctx context.Context, rec models.TransitionRecord) error
	ListByBooking(ctx context.Context, bookingID string) ([]models.TransitionRecord, error)
	ListByHospital(ctx context.Context, hospitalID string, limit int64) ([]models.TransitionRecord, error)
}
