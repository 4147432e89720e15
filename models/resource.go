package models

// Bookable resource types tracked per hospital.
const (
	ResourceBeds             = "beds"
	ResourceICU              = "icu"
	ResourceOperationTheatre = "operationTheatres"
)

// ResourceCounter holds the authoritative counts for one resource type at one
// hospital. Occupied is always Total-Available.
type ResourceCounter struct {
	Total     int `json:"total" bson:"total"`
	Available int `json:"available" bson:"available"`
	Occupied  int `json:"occupied" bson:"occupied"`
}

// HospitalResources is the polled upstream view of a hospital's counters,
// keyed by resource type.
type HospitalResources struct {
	HospitalID string                     `json:"hospitalId"`
	Counters   map[string]ResourceCounter `json:"resources"`
}

// LedgerChange describes one counter mutation, published to subscribers.
type LedgerChange struct {
	HospitalID   string          `json:"hospitalId"`
	ResourceType string          `json:"resourceType"`
	Counter      ResourceCounter `json:"counter"`
}
