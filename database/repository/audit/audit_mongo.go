package audit

import (
	"context"
	"fmt"
	"time"

	"rapidcare/database"
	"rapidcare/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditCollection = "booking_audit"

// MongoAuditRepo is the MongoDB-backed audit trail.
type MongoAuditRepo struct {
	coll *mongo.Collection
}

func NewMongoAuditRepo() *MongoAuditRepo {
	return &MongoAuditRepo{coll: database.Database().Collection(auditCollection)}
}

// RecordTransition inserts one audit record. Records are never updated.
func (r *MongoAuditRepo) RecordTransition(ctx context.Context, rec models.TransitionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert transition record for booking %s: %w", rec.BookingID, err)
	}
	return nil
}

// ListByBooking returns the booking's transitions, oldest first.
func (r *MongoAuditRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.TransitionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctx)

	var records []models.TransitionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}
	return records, nil
}

// ListByHospital returns the hospital's most recent transitions.
func (r *MongoAuditRepo) ListByHospital(ctx context.Context, hospitalID string, limit int64) ([]models.TransitionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{"hospital_id": hospitalID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail for hospital %s: %w", hospitalID, err)
	}
	defer cursor.Close(ctx)

	var records []models.TransitionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}
	return records, nil
}
