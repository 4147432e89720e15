package ledger

import (
	"fmt"
	"sync"

	"rapidcare/models"
	"rapidcare/utils"

	"go.uber.org/zap"
)

// Ledger holds the authoritative in-memory counters for every hospital's
// bookable resources. All mutations preserve the invariant
// 0 <= available <= total, occupied = total - available.
//
// Callers that need a check-then-mutate pair on one counter to be atomic
// (the approval machine, poll reconciliation) run it inside WithKey, which
// serializes all writers of that counter.
type Ledger struct {
	logger *zap.Logger
	keys   *utils.KeyedMutex

	mu       sync.RWMutex
	counters map[string]map[string]models.ResourceCounter

	subMu   sync.Mutex
	subs    map[int]chan models.LedgerChange
	nextSub int
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		logger:   logger,
		keys:     utils.NewKeyedMutex(),
		counters: make(map[string]map[string]models.ResourceCounter),
		subs:     make(map[int]chan models.LedgerChange),
	}
}

// WithKey runs fn while holding the single-writer lock for one
// (hospital, resourceType) counter. A second writer for the same counter
// waits for the first to finish before re-reading availability.
func (l *Ledger) WithKey(hospitalID, resourceType string, fn func() error) error {
	unlock := l.keys.Lock(hospitalID + "/" + resourceType)
	defer unlock()
	return fn()
}

// SetTotals replaces a counter outright, as a manual edit or a polled server
// snapshot does. Occupied is recomputed.
func (l *Ledger) SetTotals(hospitalID, resourceType string, total, available int) error {
	if total < 0 || available < 0 {
		return &InvalidResourceStateError{
			HospitalID:   hospitalID,
			ResourceType: resourceType,
			Reason:       fmt.Sprintf("negative counts: total=%d available=%d", total, available),
		}
	}
	if available > total {
		return &InvalidResourceStateError{
			HospitalID:   hospitalID,
			ResourceType: resourceType,
			Reason:       fmt.Sprintf("available %d exceeds total %d", available, total),
		}
	}

	counter := models.ResourceCounter{
		Total:     total,
		Available: available,
		Occupied:  total - available,
	}

	l.mu.Lock()
	hosp, ok := l.counters[hospitalID]
	if !ok {
		hosp = make(map[string]models.ResourceCounter)
		l.counters[hospitalID] = hosp
	}
	hosp[resourceType] = counter
	l.mu.Unlock()

	l.publish(models.LedgerChange{HospitalID: hospitalID, ResourceType: resourceType, Counter: counter})
	return nil
}

// ApplyDelta shifts availability by availableDelta (negative for an
// allocation, positive for a release) and moves occupied the opposite way.
// A delta that would break the invariant fails without any mutation.
func (l *Ledger) ApplyDelta(hospitalID, resourceType string, availableDelta int) (models.ResourceCounter, error) {
	l.mu.Lock()
	hosp, ok := l.counters[hospitalID]
	if !ok {
		l.mu.Unlock()
		return models.ResourceCounter{}, &InvalidResourceStateError{
			HospitalID:   hospitalID,
			ResourceType: resourceType,
			Reason:       "unknown hospital",
		}
	}
	counter, ok := hosp[resourceType]
	if !ok {
		l.mu.Unlock()
		return models.ResourceCounter{}, &InvalidResourceStateError{
			HospitalID:   hospitalID,
			ResourceType: resourceType,
			Reason:       "unknown resource type",
		}
	}

	next := counter.Available + availableDelta
	if next < 0 || next > counter.Total {
		l.mu.Unlock()
		return models.ResourceCounter{}, &InvalidResourceStateError{
			HospitalID:   hospitalID,
			ResourceType: resourceType,
			Reason:       fmt.Sprintf("delta %d would move available from %d outside [0,%d]", availableDelta, counter.Available, counter.Total),
		}
	}

	counter.Available = next
	counter.Occupied = counter.Total - next
	hosp[resourceType] = counter
	l.mu.Unlock()

	l.publish(models.LedgerChange{HospitalID: hospitalID, ResourceType: resourceType, Counter: counter})
	return counter, nil
}

// Get returns one counter.
func (l *Ledger) Get(hospitalID, resourceType string) (models.ResourceCounter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	hosp, ok := l.counters[hospitalID]
	if !ok {
		return models.ResourceCounter{}, false
	}
	counter, ok := hosp[resourceType]
	return counter, ok
}

// Snapshot returns a copy of every counter for the hospital. Consumers can
// iterate it freely; it never aliases live ledger state.
func (l *Ledger) Snapshot(hospitalID string) map[string]models.ResourceCounter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]models.ResourceCounter)
	for resourceType, counter := range l.counters[hospitalID] {
		out[resourceType] = counter
	}
	return out
}

// Hospitals lists every hospital with at least one tracked counter.
func (l *Ledger) Hospitals() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.counters))
	for hospitalID := range l.counters {
		out = append(out, hospitalID)
	}
	return out
}

// Zero resets every counter of a hospital to empty. Counters survive for as
// long as the hospital does; they are zeroed, not removed.
func (l *Ledger) Zero(hospitalID string) {
	l.mu.Lock()
	hosp := l.counters[hospitalID]
	changes := make([]models.LedgerChange, 0, len(hosp))
	for resourceType := range hosp {
		hosp[resourceType] = models.ResourceCounter{}
		changes = append(changes, models.LedgerChange{HospitalID: hospitalID, ResourceType: resourceType})
	}
	l.mu.Unlock()

	for _, change := range changes {
		l.publish(change)
	}
}

// Subscribe returns a channel of counter changes and a cancel function.
// Slow subscribers miss changes rather than block writers.
func (l *Ledger) Subscribe(buffer int) (<-chan models.LedgerChange, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan models.LedgerChange, buffer)

	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()

	cancel := func() {
		l.subMu.Lock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
		l.subMu.Unlock()
	}
	return ch, cancel
}

func (l *Ledger) publish(change models.LedgerChange) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- change:
		default:
			l.logger.Debug("ledger subscriber lagging, change dropped",
				zap.String("hospitalId", change.HospitalID),
				zap.String("resourceType", change.ResourceType))
		}
	}
}
