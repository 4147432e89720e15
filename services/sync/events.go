package sync

import (
	"time"

	"rapidcare/models"
)

// EventKind tags the entries of a session's event stream.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventUpdate
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventUpdate:
		return "update"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one entry in a session's ordered event stream. Update events carry
// Result; Error events carry Err and the retry count at the time of failure.
type Event struct {
	SessionID  string
	Kind       EventKind
	Result     *models.FetchResult
	Err        error
	RetryCount int
	At         time.Time
}
