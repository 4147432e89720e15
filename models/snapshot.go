package models

import "time"

// ConnectionState values derived from the underlying sessions.
const (
	ConnectionLive         = "Live"
	ConnectionReconnecting = "Reconnecting"
	ConnectionDisconnected = "Disconnected"
)

// ConnectionStatus aggregates session health for one synced hospital.
type ConnectionStatus struct {
	State      string `json:"state"`
	RetryCount int    `json:"retryCount"`
}

// SyncSnapshot is the consistent view republished to consumers after each
// successful poll cycle. It is always replaced wholesale, never mutated in
// place, so readers observe an atomic view.
type SyncSnapshot struct {
	HospitalID      string                     `json:"hospitalId"`
	Resources       map[string]ResourceCounter `json:"resources"`
	PendingBookings []Booking                  `json:"pendingBookings"`
	Dashboard       *DashboardStats            `json:"dashboard,omitempty"`
	Connection      ConnectionStatus           `json:"connection"`
	GeneratedAt     time.Time                  `json:"generatedAt"`
	ServerTime      time.Time                  `json:"serverTime"`
}
