package approval

import (
	"errors"
	"fmt"
)

// ErrBookingNotFound is returned when no booking exists for the given id.
var ErrBookingNotFound = errors.New("booking not found")

// TransitionError marks an attempted state change the booking lifecycle does
// not allow. It is a caller error and is never retried.
type TransitionError struct {
	BookingID string
	From      string
	To        string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: invalid transition %s -> %s", e.BookingID, e.From, e.To)
}

// ResourceUnavailableError is the expected business condition of an approval
// racing past the last free unit. The booking stays pending; the caller
// decides what to do next.
type ResourceUnavailableError struct {
	HospitalID   string
	ResourceType string
	Requested    int
	Available    int
}

func (e *ResourceUnavailableError) Error() string {
	return fmt.Sprintf("hospital %s has %d %s available, %d requested",
		e.HospitalID, e.Available, e.ResourceType, e.Requested)
}

// IsInvalidTransition reports whether err is a lifecycle violation.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// IsResourceUnavailable reports whether err means the hospital cannot cover
// the requested units right now.
func IsResourceUnavailable(err error) bool {
	var re *ResourceUnavailableError
	return errors.As(err, &re)
}
