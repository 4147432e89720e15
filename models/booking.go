package models

import "time"

// Booking lifecycle states.
const (
	BookingPending   = "pending"
	BookingApproved  = "approved"
	BookingDeclined  = "declined"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Booking represents one resource booking request against a hospital.
type Booking struct {
	ID                 string    `json:"id" bson:"id"`
	HospitalID         string    `json:"hospitalId" bson:"hospital_id"`
	PatientID          string    `json:"patientId" bson:"patient_id"`
	PatientName        string    `json:"patientName,omitempty" bson:"patient_name,omitempty"`
	ResourceType       string    `json:"resourceType" bson:"resource_type"`
	ResourcesRequested int       `json:"resourcesRequested" bson:"resources_requested"`
	Status             string    `json:"status" bson:"status"`
	Urgency            string    `json:"urgency,omitempty" bson:"urgency,omitempty"`
	Notes              string    `json:"notes,omitempty" bson:"notes,omitempty"`
	DeclineReason      string    `json:"declineReason,omitempty" bson:"decline_reason,omitempty"`
	PaymentIntentID    string    `json:"paymentIntentId,omitempty" bson:"payment_intent_id,omitempty"`
	CreatedAt          time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updated_at"`
}

// IsTerminal reports whether the booking can no longer transition.
func (b Booking) IsTerminal() bool {
	switch b.Status {
	case BookingDeclined, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}
