package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rapidcare/models"
	"rapidcare/services/ledger"
	"rapidcare/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRecorder persists one record per booking transition.
type AuditRecorder interface {
	RecordTransition(ctx context.Context, rec models.TransitionRecord) error
}

// Notifier queues a decision notification for the affected patient.
type Notifier interface {
	QueueDecision(ctx context.Context, p models.DecisionPayload) error
}

// PaymentProcessor collects the optional booking deposit on approval.
type PaymentProcessor interface {
	ProcessDeposit(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error)
}

// ApproveOpts tunes one approval decision.
type ApproveOpts struct {
	Actor          string
	CollectPayment bool
	DepositAmount  float64
	Currency       string
}

// Machine drives each booking through
// pending -> {approved, declined, cancelled} and approved -> {completed,
// cancelled}, consulting and mutating the resource ledger atomically with
// respect to each decision. Transitions for one booking are serialized by a
// per-booking lock; the availability check and the counter debit of an
// approval run under the ledger's per-counter lock, so two approvals racing
// for the last unit resolve with exactly one winner.
type Machine struct {
	ledger   *ledger.Ledger
	audit    AuditRecorder
	notifier Notifier
	payments PaymentProcessor
	logger   *zap.Logger

	mu       sync.RWMutex
	bookings map[string]*models.Booking
	locks    *utils.KeyedMutex
}

func NewMachine(l *ledger.Ledger, audit AuditRecorder, notifier Notifier, payments PaymentProcessor, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		ledger:   l,
		audit:    audit,
		notifier: notifier,
		payments: payments,
		logger:   logger,
		bookings: make(map[string]*models.Booking),
		locks:    utils.NewKeyedMutex(),
	}
}

// Submit registers a new booking in pending state.
func (m *Machine) Submit(b models.Booking) (models.Booking, error) {
	if b.HospitalID == "" || b.ResourceType == "" {
		return models.Booking{}, fmt.Errorf("booking must name a hospital and resource type")
	}
	if b.ResourcesRequested < 1 {
		return models.Booking{}, fmt.Errorf("booking must request at least one resource unit")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = models.BookingPending
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookings[b.ID]; exists {
		return models.Booking{}, fmt.Errorf("booking %s already exists", b.ID)
	}
	stored := b
	m.bookings[b.ID] = &stored
	return b, nil
}

// Get returns a copy of one booking.
func (m *Machine) Get(bookingID string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return models.Booking{}, false
	}
	return *b, true
}

// Pending returns copies of the hospital's pending bookings.
func (m *Machine) Pending(hospitalID string) []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.HospitalID == hospitalID && b.Status == models.BookingPending {
			out = append(out, *b)
		}
	}
	return out
}

// Approve allocates the requested units and marks the booking approved.
// With fewer units available than requested it fails with
// ResourceUnavailableError and the booking stays pending.
func (m *Machine) Approve(ctx context.Context, bookingID string, opts ApproveOpts) (models.Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	b, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status != models.BookingPending {
		return models.Booking{}, &TransitionError{BookingID: bookingID, From: b.Status, To: models.BookingApproved}
	}

	// Check and debit as one unit under the counter's single-writer lock.
	err = m.ledger.WithKey(b.HospitalID, b.ResourceType, func() error {
		counter, ok := m.ledger.Get(b.HospitalID, b.ResourceType)
		if !ok || counter.Available < b.ResourcesRequested {
			return &ResourceUnavailableError{
				HospitalID:   b.HospitalID,
				ResourceType: b.ResourceType,
				Requested:    b.ResourcesRequested,
				Available:    counter.Available,
			}
		}
		_, err := m.ledger.ApplyDelta(b.HospitalID, b.ResourceType, -b.ResourcesRequested)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}

	if opts.CollectPayment && m.payments != nil {
		invoice, payErr := m.payments.ProcessDeposit(ctx, models.PaymentRequest{
			BookingID: b.ID,
			PatientID: b.PatientID,
			Amount:    opts.DepositAmount,
			Currency:  opts.Currency,
		})
		if payErr != nil {
			// Release the units; the decision did not happen.
			m.release(b)
			return models.Booking{}, fmt.Errorf("deposit failed for booking %s: %w", b.ID, payErr)
		}
		m.setPaymentIntent(bookingID, invoice.PaymentIntentID)
	}

	updated := m.setStatus(bookingID, models.BookingApproved, "")
	m.record(ctx, updated, models.BookingPending, "", opts.Actor, -b.ResourcesRequested)
	return updated, nil
}

// Decline rejects a pending booking. A non-empty reason is required; no
// resources were allocated, so the ledger is untouched.
func (m *Machine) Decline(ctx context.Context, bookingID, reason string) (models.Booking, error) {
	if reason == "" {
		return models.Booking{}, fmt.Errorf("decline requires a reason")
	}

	unlock := m.locks.Lock(bookingID)
	defer unlock()

	b, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status != models.BookingPending {
		return models.Booking{}, &TransitionError{BookingID: bookingID, From: b.Status, To: models.BookingDeclined}
	}

	updated := m.setStatus(bookingID, models.BookingDeclined, reason)
	m.record(ctx, updated, models.BookingPending, reason, "", 0)
	return updated, nil
}

// Cancel is allowed from pending (no ledger effect) or approved (releases the
// previously allocated units).
func (m *Machine) Cancel(ctx context.Context, bookingID string) (models.Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	b, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}

	var delta int
	switch b.Status {
	case models.BookingPending:
		delta = 0
	case models.BookingApproved:
		if err := m.release(b); err != nil {
			return models.Booking{}, err
		}
		delta = b.ResourcesRequested
	default:
		return models.Booking{}, &TransitionError{BookingID: bookingID, From: b.Status, To: models.BookingCancelled}
	}

	updated := m.setStatus(bookingID, models.BookingCancelled, "")
	m.record(ctx, updated, b.Status, "", "", delta)
	return updated, nil
}

// Complete closes out an approved booking. The ledger effect is identical to
// cancelling an approved booking; only the recorded terminal state differs.
func (m *Machine) Complete(ctx context.Context, bookingID string) (models.Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	b, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status != models.BookingApproved {
		return models.Booking{}, &TransitionError{BookingID: bookingID, From: b.Status, To: models.BookingCompleted}
	}

	if err := m.release(b); err != nil {
		return models.Booking{}, err
	}

	updated := m.setStatus(bookingID, models.BookingCompleted, "")
	m.record(ctx, updated, models.BookingApproved, "", "", b.ResourcesRequested)
	return updated, nil
}

// Reconcile replaces the hospital's pending set with the server's, preserving
// bookings whose local decision has not reached the server yet. Entering each
// booking's lock defers adoption until any in-flight local transition on that
// booking has resolved.
func (m *Machine) Reconcile(hospitalID string, serverBookings []models.Booking) {
	seen := make(map[string]bool, len(serverBookings))
	for _, sb := range serverBookings {
		if sb.HospitalID != hospitalID {
			continue
		}
		seen[sb.ID] = true

		unlock := m.locks.Lock(sb.ID)
		m.mu.Lock()
		local, ok := m.bookings[sb.ID]
		switch {
		case !ok:
			stored := sb
			m.bookings[sb.ID] = &stored
		case sb.Status == models.BookingPending && local.Status != models.BookingPending:
			// Local decision made, server just hasn't caught up. Keep ours;
			// adopting a stale pending here would revert an approval while
			// its ledger debit stands.
		default:
			local.Status = sb.Status
			local.UpdatedAt = time.Now()
		}
		m.mu.Unlock()
		unlock()
	}

	// Pending bookings the server no longer lists were decided elsewhere;
	// drop them from the local pending view. Each candidate is pruned under
	// its booking lock so an in-flight local decision on it finishes first,
	// then re-checked: a booking that got decided while we waited stays.
	m.mu.RLock()
	var candidates []string
	for id, b := range m.bookings {
		if b.HospitalID == hospitalID && b.Status == models.BookingPending && !seen[id] {
			candidates = append(candidates, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range candidates {
		unlock := m.locks.Lock(id)
		m.mu.Lock()
		if b, ok := m.bookings[id]; ok && b.Status == models.BookingPending {
			delete(m.bookings, id)
		}
		m.mu.Unlock()
		unlock()
	}
}

func (m *Machine) lookup(bookingID string) (models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return models.Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	return *b, nil
}

func (m *Machine) release(b models.Booking) error {
	return m.ledger.WithKey(b.HospitalID, b.ResourceType, func() error {
		_, err := m.ledger.ApplyDelta(b.HospitalID, b.ResourceType, b.ResourcesRequested)
		return err
	})
}

func (m *Machine) setStatus(bookingID, status, reason string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return models.Booking{}
	}
	b.Status = status
	if reason != "" {
		b.DeclineReason = reason
	}
	b.UpdatedAt = time.Now()
	return *b
}

func (m *Machine) setPaymentIntent(bookingID, intentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[bookingID]; ok {
		b.PaymentIntentID = intentID
	}
}

// record writes the audit entry and queues the patient notification. Both are
// best effort; a failed side channel never rolls back a decided transition.
func (m *Machine) record(ctx context.Context, b models.Booking, from, reason, actor string, ledgerDelta int) {
	if m.audit != nil {
		rec := models.TransitionRecord{
			ID:           uuid.New().String(),
			BookingID:    b.ID,
			HospitalID:   b.HospitalID,
			ResourceType: b.ResourceType,
			FromStatus:   from,
			ToStatus:     b.Status,
			Reason:       reason,
			Actor:        actor,
			LedgerDelta:  ledgerDelta,
			RecordedAt:   time.Now(),
		}
		if err := m.audit.RecordTransition(ctx, rec); err != nil {
			m.logger.Error("failed to record booking transition",
				zap.String("bookingId", b.ID), zap.Error(err))
		}
	}

	if m.notifier != nil {
		payload := models.DecisionPayload{
			BookingID:    b.ID,
			PatientID:    b.PatientID,
			HospitalID:   b.HospitalID,
			ResourceType: b.ResourceType,
			Status:       b.Status,
			Reason:       reason,
		}
		if err := m.notifier.QueueDecision(ctx, payload); err != nil {
			m.logger.Error("failed to queue decision notification",
				zap.String("bookingId", b.ID), zap.Error(err))
		}
	}
}
