package ledger

import (
	"errors"
	"fmt"
)

// InvalidResourceStateError marks an attempted counter mutation that would
// break the ledger invariant. It is always a defect in the caller's input and
// is never silently clamped away.
type InvalidResourceStateError struct {
	HospitalID   string
	ResourceType string
	Reason       string
}

func (e *InvalidResourceStateError) Error() string {
	return fmt.Sprintf("invalid resource state for %s/%s: %s", e.HospitalID, e.ResourceType, e.Reason)
}

// IsInvalidResourceState reports whether err is a ledger invariant violation.
func IsInvalidResourceState(err error) bool {
	var ie *InvalidResourceStateError
	return errors.As(err, &ie)
}
