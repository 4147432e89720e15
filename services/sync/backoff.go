package sync

import "time"

// Policy computes the delay before the next attempt after consecutive
// failures: base * 2^retryCount, capped at Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay maps a retry count to a wait duration. Delays are non-decreasing in
// retryCount and never exceed Max.
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		if p.Max > 0 && p.Base > p.Max {
			return p.Max
		}
		return p.Base
	}
	// Beyond 32 doublings any sane base has long hit the ceiling.
	if retryCount > 32 {
		return p.Max
	}
	d := p.Base << uint(retryCount)
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}
