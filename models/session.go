package models

import "time"

// Endpoint kinds a polling session can watch.
const (
	EndpointResources = "resources"
	EndpointBookings  = "bookings"
	EndpointDashboard = "dashboard"
)

// SessionStatus is a point-in-time view of one polling session, exposed to
// the UI for connection display.
type SessionStatus struct {
	SessionID    string        `json:"sessionId"`
	EndpointKind string        `json:"endpointKind"`
	ScopeID      string        `json:"scopeId"`
	Interval     time.Duration `json:"intervalMs"`
	RetryCount   int           `json:"retryCount"`
	Connected    bool          `json:"isConnected"`
	LastUpdateAt time.Time     `json:"lastUpdateAt"`
	Cancelled    bool          `json:"cancelled"`
}

// FetchResult is the envelope every upstream poll returns.
type FetchResult struct {
	HasChanges       bool               `json:"hasChanges"`
	Resources        *HospitalResources `json:"resources,omitempty"`
	Bookings         []Booking          `json:"bookings,omitempty"`
	Dashboard        *DashboardStats    `json:"dashboard,omitempty"`
	CurrentTimestamp time.Time          `json:"currentTimestamp"`
}

// DashboardStats carries the aggregate numbers shown on admin dashboards.
type DashboardStats struct {
	TotalBookings     int     `json:"totalBookings"`
	PendingBookings   int     `json:"pendingBookings"`
	ApprovedBookings  int     `json:"approvedBookings"`
	CompletedBookings int     `json:"completedBookings"`
	TotalRevenue      float64 `json:"totalRevenue"`
}
