package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rapidcare/models"
	"rapidcare/services/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAudit struct {
	mu      sync.Mutex
	records []models.TransitionRecord
}

func (a *memoryAudit) RecordTransition(ctx context.Context, rec models.TransitionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *memoryAudit) all() []models.TransitionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.TransitionRecord(nil), a.records...)
}

type memoryNotifier struct {
	mu       sync.Mutex
	payloads []models.DecisionPayload
}

func (n *memoryNotifier) QueueDecision(ctx context.Context, p models.DecisionPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
	return nil
}

type stubPayments struct {
	fail bool
}

func (p *stubPayments) ProcessDeposit(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error) {
	if p.fail {
		return nil, errors.New("card declined")
	}
	return &models.Invoice{
		InvoiceID:       "inv-1",
		BookingID:       req.BookingID,
		PaymentIntentID: "pi-1",
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          "requires_payment_method",
	}, nil
}

func newTestMachine(t *testing.T) (*Machine, *ledger.Ledger, *memoryAudit, *memoryNotifier) {
	t.Helper()
	l := ledger.NewLedger(nil)
	audit := &memoryAudit{}
	notifier := &memoryNotifier{}
	m := NewMachine(l, audit, notifier, &stubPayments{}, nil)
	return m, l, audit, notifier
}

func submitBooking(t *testing.T, m *Machine, hospitalID, resourceType string, units int) models.Booking {
	t.Helper()
	b, err := m.Submit(models.Booking{
		HospitalID:         hospitalID,
		PatientID:          "patient-1",
		ResourceType:       resourceType,
		ResourcesRequested: units,
	})
	require.NoError(t, err)
	require.Equal(t, models.BookingPending, b.Status)
	require.NotEmpty(t, b.ID)
	return b
}

func TestSubmitValidation(t *testing.T) {
	m, _, _, _ := newTestMachine(t)

	_, err := m.Submit(models.Booking{ResourceType: models.ResourceBeds, ResourcesRequested: 1})
	assert.Error(t, err, "hospital is required")

	_, err = m.Submit(models.Booking{HospitalID: "h1", ResourceType: models.ResourceBeds})
	assert.Error(t, err, "at least one unit is required")
}

func TestApproveDebitsLedger(t *testing.T) {
	m, l, audit, notifier := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 10, 5))
	b := submitBooking(t, m, "h1", models.ResourceBeds, 2)

	approved, err := m.Approve(context.Background(), b.ID, ApproveOpts{Actor: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingApproved, approved.Status)

	c, _ := l.Get("h1", models.ResourceBeds)
	assert.Equal(t, models.ResourceCounter{Total: 10, Available: 3, Occupied: 7}, c)

	records := audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.BookingPending, records[0].FromStatus)
	assert.Equal(t, models.BookingApproved, records[0].ToStatus)
	assert.Equal(t, "admin-1", records[0].Actor)
	assert.Equal(t, -2, records[0].LedgerDelta)

	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, models.BookingApproved, notifier.payloads[0].Status)
}

func TestApproveFailsWhenUnavailable(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceICU, 4, 0))
	b := submitBooking(t, m, "h1", models.ResourceICU, 1)

	_, err := m.Approve(context.Background(), b.ID, ApproveOpts{})
	assert.True(t, IsResourceUnavailable(err))

	// The booking stays pending and can be declined instead.
	stored, _ := m.Get(b.ID)
	assert.Equal(t, models.BookingPending, stored.Status)

	declined, err := m.Decline(context.Background(), b.ID, "no ICU capacity")
	require.NoError(t, err)
	assert.Equal(t, models.BookingDeclined, declined.Status)
	assert.Equal(t, "no ICU capacity", declined.DeclineReason)
}

func TestDeclineRequiresReason(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))
	b := submitBooking(t, m, "h1", models.ResourceBeds, 1)

	_, err := m.Decline(context.Background(), b.ID, "")
	assert.Error(t, err)

	stored, _ := m.Get(b.ID)
	assert.Equal(t, models.BookingPending, stored.Status)
}

func TestCompleteReleasesUnits(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceICU, 6, 4))
	b := submitBooking(t, m, "h1", models.ResourceICU, 2)

	_, err := m.Approve(context.Background(), b.ID, ApproveOpts{})
	require.NoError(t, err)
	c, _ := l.Get("h1", models.ResourceICU)
	assert.Equal(t, 2, c.Available)

	completed, err := m.Complete(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, completed.Status)

	c, _ = l.Get("h1", models.ResourceICU)
	assert.Equal(t, models.ResourceCounter{Total: 6, Available: 4, Occupied: 2}, c)
}

func TestCancelFromPendingAndApproved(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))

	pending := submitBooking(t, m, "h1", models.ResourceBeds, 1)
	cancelled, err := m.Cancel(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	c, _ := l.Get("h1", models.ResourceBeds)
	assert.Equal(t, 5, c.Available, "cancelling a pending booking touches no resources")

	approved := submitBooking(t, m, "h1", models.ResourceBeds, 3)
	_, err = m.Approve(context.Background(), approved.ID, ApproveOpts{})
	require.NoError(t, err)
	cancelled, err = m.Cancel(context.Background(), approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	c, _ = l.Get("h1", models.ResourceBeds)
	assert.Equal(t, 5, c.Available, "cancelling an approved booking releases its units")
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))
	b := submitBooking(t, m, "h1", models.ResourceBeds, 1)

	_, err := m.Decline(context.Background(), b.ID, "duplicate request")
	require.NoError(t, err)

	_, err = m.Approve(context.Background(), b.ID, ApproveOpts{})
	assert.True(t, IsInvalidTransition(err))
	_, err = m.Cancel(context.Background(), b.ID)
	assert.True(t, IsInvalidTransition(err))
	_, err = m.Complete(context.Background(), b.ID)
	assert.True(t, IsInvalidTransition(err))

	_, err = m.Approve(context.Background(), "missing", ApproveOpts{})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestConcurrentApprovalsNeverDoubleSpend(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceICU, 1, 1))

	first := submitBooking(t, m, "h1", models.ResourceICU, 1)
	second := submitBooking(t, m, "h1", models.ResourceICU, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = m.Approve(context.Background(), id, ApproveOpts{})
		}(i, id)
	}
	wg.Wait()

	var granted, refused int
	for _, err := range errs {
		if err == nil {
			granted++
		} else if IsResourceUnavailable(err) {
			refused++
		}
	}
	assert.Equal(t, 1, granted, "exactly one approval wins the last unit")
	assert.Equal(t, 1, refused)

	c, _ := l.Get("h1", models.ResourceICU)
	assert.Equal(t, 0, c.Available)
}

func TestApproveWithDepositRecordsPaymentIntent(t *testing.T) {
	l := ledger.NewLedger(nil)
	m := NewMachine(l, &memoryAudit{}, &memoryNotifier{}, &stubPayments{}, nil)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))
	b := submitBooking(t, m, "h1", models.ResourceBeds, 1)

	approved, err := m.Approve(context.Background(), b.ID, ApproveOpts{
		CollectPayment: true,
		DepositAmount:  150,
		Currency:       "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi-1", approved.PaymentIntentID)
}

func TestApproveRollsBackLedgerOnPaymentFailure(t *testing.T) {
	l := ledger.NewLedger(nil)
	m := NewMachine(l, &memoryAudit{}, &memoryNotifier{}, &stubPayments{fail: true}, nil)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))
	b := submitBooking(t, m, "h1", models.ResourceBeds, 2)

	_, err := m.Approve(context.Background(), b.ID, ApproveOpts{CollectPayment: true, DepositAmount: 100, Currency: "usd"})
	require.Error(t, err)

	stored, _ := m.Get(b.ID)
	assert.Equal(t, models.BookingPending, stored.Status)
	c, _ := l.Get("h1", models.ResourceBeds)
	assert.Equal(t, 5, c.Available, "failed deposit must release the units")
}

func TestReconcileAdoptsServerStateButKeepsLocalDecisions(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))

	decided := submitBooking(t, m, "h1", models.ResourceBeds, 1)
	_, err := m.Decline(context.Background(), decided.ID, "over capacity")
	require.NoError(t, err)

	stale := submitBooking(t, m, "h1", models.ResourceBeds, 1)

	m.Reconcile("h1", []models.Booking{
		// The server has not seen our decline yet.
		{ID: decided.ID, HospitalID: "h1", ResourceType: models.ResourceBeds, ResourcesRequested: 1, Status: models.BookingPending},
		// A booking decided on the server side.
		{ID: stale.ID, HospitalID: "h1", ResourceType: models.ResourceBeds, ResourcesRequested: 1, Status: models.BookingCancelled},
		// A booking we have never seen.
		{ID: "remote-1", HospitalID: "h1", ResourceType: models.ResourceICU, ResourcesRequested: 1, Status: models.BookingPending},
	})

	b, _ := m.Get(decided.ID)
	assert.Equal(t, models.BookingDeclined, b.Status, "a local terminal decision beats a stale server pending")

	b, _ = m.Get(stale.ID)
	assert.Equal(t, models.BookingCancelled, b.Status, "server decisions are adopted")

	b, ok := m.Get("remote-1")
	require.True(t, ok, "new server bookings are added")
	assert.Equal(t, models.BookingPending, b.Status)
}

func TestReconcileKeepsApprovedOverStaleServerPending(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))

	b := submitBooking(t, m, "h1", models.ResourceBeds, 2)
	_, err := m.Approve(context.Background(), b.ID, ApproveOpts{})
	require.NoError(t, err)
	c, _ := l.Get("h1", models.ResourceBeds)
	require.Equal(t, 3, c.Available)

	// The server still lists the booking as pending; its poll is stale.
	m.Reconcile("h1", []models.Booking{
		{ID: b.ID, HospitalID: "h1", ResourceType: models.ResourceBeds, ResourcesRequested: 2, Status: models.BookingPending},
	})

	stored, _ := m.Get(b.ID)
	assert.Equal(t, models.BookingApproved, stored.Status,
		"a stale pending must not revert a local approval")

	// Re-approving must fail; the units were already debited once.
	_, err = m.Approve(context.Background(), b.ID, ApproveOpts{})
	assert.True(t, IsInvalidTransition(err))
	c, _ = l.Get("h1", models.ResourceBeds)
	assert.Equal(t, 3, c.Available, "the booking's units are debited exactly once")
}

type blockingPayments struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPayments) ProcessDeposit(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error) {
	close(p.entered)
	<-p.release
	return &models.Invoice{BookingID: req.BookingID, PaymentIntentID: "pi-slow", Amount: req.Amount, Currency: req.Currency}, nil
}

func TestReconcilePruneWaitsForInFlightApproval(t *testing.T) {
	l := ledger.NewLedger(nil)
	payments := &blockingPayments{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMachine(l, &memoryAudit{}, &memoryNotifier{}, payments, nil)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))

	b := submitBooking(t, m, "h1", models.ResourceBeds, 2)

	approveDone := make(chan error, 1)
	go func() {
		_, err := m.Approve(context.Background(), b.ID, ApproveOpts{CollectPayment: true, DepositAmount: 100, Currency: "usd"})
		approveDone <- err
	}()

	select {
	case <-payments.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("approval never reached the payment call")
	}

	// The server no longer lists the booking; a prune lands while the
	// approval is suspended at the payment call. It must wait.
	reconcileDone := make(chan struct{})
	go func() {
		m.Reconcile("h1", nil)
		close(reconcileDone)
	}()

	close(payments.release)
	require.NoError(t, <-approveDone, "the in-flight approval must complete, not panic")
	select {
	case <-reconcileDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile did not finish")
	}

	stored, ok := m.Get(b.ID)
	require.True(t, ok, "a booking decided while the prune waited must survive")
	assert.Equal(t, models.BookingApproved, stored.Status)
	c, _ := l.Get("h1", models.ResourceBeds)
	assert.Equal(t, 3, c.Available)
}

func TestReconcilePrunesPendingAbsentFromServer(t *testing.T) {
	m, l, _, _ := newTestMachine(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 5, 5))

	orphan := submitBooking(t, m, "h1", models.ResourceBeds, 1)
	m.Reconcile("h1", nil)

	_, ok := m.Get(orphan.ID)
	assert.False(t, ok, "pending bookings the server no longer lists are dropped")
}
