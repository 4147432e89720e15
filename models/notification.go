package models

// DecisionPayload is the asynq task body queued after a booking decision.
type DecisionPayload struct {
	BookingID    string `json:"bookingId"`
	PatientID    string `json:"patientId"`
	HospitalID   string `json:"hospitalId"`
	ResourceType string `json:"resourceType"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// PaymentRequest asks the payment service for a booking deposit intent.
type PaymentRequest struct {
	BookingID string  `json:"bookingId"`
	PatientID string  `json:"patientId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// Invoice is the recorded outcome of a deposit intent.
type Invoice struct {
	InvoiceID       string  `json:"invoiceId"`
	BookingID       string  `json:"bookingId"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
}
