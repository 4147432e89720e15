package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rapidcare/models"
	"rapidcare/services/approval"
	"rapidcare/services/ledger"
	"rapidcare/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Fetcher is the orchestrator's view of the upstream hospital API.
type Fetcher interface {
	FetchResources(ctx context.Context, hospitalID string, resourceType string) (*models.FetchResult, error)
	FetchBookings(ctx context.Context, hospitalID string, status string) (*models.FetchResult, error)
	FetchDashboard(ctx context.Context, hospitalID string) (*models.FetchResult, error)
}

// Intervals carries the per-endpoint-kind polling configuration.
type Intervals struct {
	Resources time.Duration
	Bookings  time.Duration
	Dashboard time.Duration
	Max       time.Duration
}

type hospitalSync struct {
	dashboard  *models.DashboardStats
	serverTime time.Time
}

// Orchestrator glues polling sessions to the ledger and the approval machine
// and republishes a consistent snapshot to consumers after each successful
// cycle. Polled counters are reconciled through the ledger's per-counter
// locks, so a concurrently in-flight local decision always finishes before
// the server snapshot is adopted as ground truth.
type Orchestrator struct {
	registry  *Registry
	ledger    *ledger.Ledger
	machine   *approval.Machine
	fetcher   Fetcher
	cache     *redis.Client
	intervals Intervals
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	hospitals map[string]*hospitalSync

	subMu   sync.Mutex
	subs    map[int]chan models.SyncSnapshot
	nextSub int
}

func NewOrchestrator(registry *Registry, l *ledger.Ledger, machine *approval.Machine, fetcher Fetcher, cache *redis.Client, intervals Intervals, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry:  registry,
		ledger:    l,
		machine:   machine,
		fetcher:   fetcher,
		cache:     cache,
		intervals: intervals,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		hospitals: make(map[string]*hospitalSync),
		subs:      make(map[int]chan models.SyncSnapshot),
	}
}

func resourceSessionID(hospitalID string) string {
	return models.EndpointResources + ":" + hospitalID
}

func bookingSessionID(hospitalID string) string {
	return models.EndpointBookings + ":" + hospitalID
}

func dashboardSessionID(hospitalID string) string {
	return models.EndpointDashboard + ":" + hospitalID
}

// StartHospitalSync opens the hospital's three polling sessions (resources,
// pending bookings, dashboard). Starting an already-synced hospital replaces
// its sessions.
func (o *Orchestrator) StartHospitalSync(hospitalID string) error {
	if hospitalID == "" {
		return fmt.Errorf("hospital id must not be empty")
	}

	o.mu.Lock()
	if _, ok := o.hospitals[hospitalID]; !ok {
		o.hospitals[hospitalID] = &hospitalSync{}
	}
	o.mu.Unlock()

	type spec struct {
		sessionID string
		kind      string
		interval  time.Duration
		fetch     FetchFunc
	}
	specs := []spec{
		{resourceSessionID(hospitalID), models.EndpointResources, o.intervals.Resources,
			func(ctx context.Context) (*models.FetchResult, error) {
				return o.fetcher.FetchResources(ctx, hospitalID, "")
			}},
		{bookingSessionID(hospitalID), models.EndpointBookings, o.intervals.Bookings,
			func(ctx context.Context) (*models.FetchResult, error) {
				return o.fetcher.FetchBookings(ctx, hospitalID, models.BookingPending)
			}},
		{dashboardSessionID(hospitalID), models.EndpointDashboard, o.intervals.Dashboard,
			func(ctx context.Context) (*models.FetchResult, error) {
				return o.fetcher.FetchDashboard(ctx, hospitalID)
			}},
	}

	for _, sp := range specs {
		session, err := o.registry.Start(o.ctx, sp.sessionID, sp.kind, hospitalID, SessionConfig{
			Interval: sp.interval,
			Backoff:  Policy{Base: sp.interval, Max: o.intervals.Max},
			Fetch:    sp.fetch,
		})
		if err != nil {
			return fmt.Errorf("failed to start %s session for hospital %s: %w", sp.kind, hospitalID, err)
		}

		o.wg.Add(1)
		go o.consume(hospitalID, sp.kind, session)
	}

	o.logger.Info("hospital sync started", zap.String("hospitalId", hospitalID))
	return nil
}

// StopHospitalSync stops the hospital's sessions. Ledger counters survive;
// calling StartHospitalSync again fully restores live operation.
func (o *Orchestrator) StopHospitalSync(hospitalID string) {
	o.registry.Stop(resourceSessionID(hospitalID))
	o.registry.Stop(bookingSessionID(hospitalID))
	o.registry.Stop(dashboardSessionID(hospitalID))
	o.logger.Info("hospital sync stopped", zap.String("hospitalId", hospitalID))
}

// Hospitals lists every hospital with sync state.
func (o *Orchestrator) Hospitals() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.hospitals))
	for id := range o.hospitals {
		out = append(out, id)
	}
	return out
}

// consume drains one session's event stream until the session stops.
func (o *Orchestrator) consume(hospitalID, kind string, session *Session) {
	defer o.wg.Done()
	for ev := range session.Events() {
		switch ev.Kind {
		case EventUpdate:
			o.handleUpdate(hospitalID, kind, ev.Result)
		case EventConnected:
			o.logger.Info("session connected", zap.String("sessionId", ev.SessionID))
			o.publish(hospitalID)
		case EventDisconnected:
			o.logger.Warn("session disconnected", zap.String("sessionId", ev.SessionID))
			o.publish(hospitalID)
		case EventError:
			o.logger.Warn("poll failed",
				zap.String("sessionId", ev.SessionID),
				zap.Int("retryCount", ev.RetryCount),
				zap.Error(ev.Err))
		}
	}
}

func (o *Orchestrator) handleUpdate(hospitalID, kind string, result *models.FetchResult) {
	if result == nil {
		return
	}

	o.mu.Lock()
	if hs, ok := o.hospitals[hospitalID]; ok && !result.CurrentTimestamp.IsZero() {
		hs.serverTime = result.CurrentTimestamp
	}
	o.mu.Unlock()

	switch kind {
	case models.EndpointResources:
		if result.HasChanges && result.Resources != nil {
			o.reconcileResources(hospitalID, result.Resources)
		}
	case models.EndpointBookings:
		// The poll is a change notification, not a complete delta; on any
		// change re-fetch the hospital's full pending list.
		if result.HasChanges {
			o.refetchPending(hospitalID)
		}
	case models.EndpointDashboard:
		if result.Dashboard != nil {
			o.mu.Lock()
			if hs, ok := o.hospitals[hospitalID]; ok {
				stats := *result.Dashboard
				hs.dashboard = &stats
			}
			o.mu.Unlock()
		}
	}

	o.publish(hospitalID)
}

// reconcileResources adopts the server's counters as ground truth. Each
// counter is written under its key lock, so an approval that was mid-flight
// when the poll landed completes before its counter is overwritten.
func (o *Orchestrator) reconcileResources(hospitalID string, resources *models.HospitalResources) {
	for resourceType, counter := range resources.Counters {
		rt, c := resourceType, counter
		err := o.ledger.WithKey(hospitalID, rt, func() error {
			return o.ledger.SetTotals(hospitalID, rt, c.Total, c.Available)
		})
		if err != nil {
			o.logger.Error("rejected polled counter",
				zap.String("hospitalId", hospitalID),
				zap.String("resourceType", rt),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) refetchPending(hospitalID string) {
	ctx, cancel := context.WithTimeout(o.ctx, 15*time.Second)
	defer cancel()

	result, err := o.fetcher.FetchBookings(ctx, hospitalID, models.BookingPending)
	if err != nil {
		o.logger.Warn("pending booking re-fetch failed",
			zap.String("hospitalId", hospitalID), zap.Error(err))
		return
	}
	o.machine.Reconcile(hospitalID, result.Bookings)
}

// ForceResync fetches resources and pending bookings for every synced
// hospital outside the regular poll cadence. Used by the periodic sweep.
func (o *Orchestrator) ForceResync(ctx context.Context) {
	if pruned := o.registry.PruneFinished(); len(pruned) > 0 {
		o.logger.Info("pruned finished sessions", zap.Strings("sessionIds", pruned))
	}

	for _, hospitalID := range o.Hospitals() {
		result, err := o.fetcher.FetchResources(ctx, hospitalID, "")
		if err != nil {
			o.logger.Warn("resync resource fetch failed",
				zap.String("hospitalId", hospitalID), zap.Error(err))
		} else if result.Resources != nil {
			o.reconcileResources(hospitalID, result.Resources)
		}

		o.refetchPending(hospitalID)
		o.publish(hospitalID)
	}
}

// ConnectionStatus aggregates the hospital's session health for UI display.
func (o *Orchestrator) ConnectionStatus(hospitalID string) models.ConnectionStatus {
	return o.registry.Connection(
		resourceSessionID(hospitalID),
		bookingSessionID(hospitalID),
		dashboardSessionID(hospitalID),
	)
}

// Snapshot assembles the current consistent view for one hospital. The value
// is built fresh on every call and shares no state with the ledger.
func (o *Orchestrator) Snapshot(hospitalID string) models.SyncSnapshot {
	o.mu.Lock()
	var dashboard *models.DashboardStats
	var serverTime time.Time
	if hs, ok := o.hospitals[hospitalID]; ok {
		if hs.dashboard != nil {
			stats := *hs.dashboard
			dashboard = &stats
		}
		serverTime = hs.serverTime
	}
	o.mu.Unlock()

	return models.SyncSnapshot{
		HospitalID:      hospitalID,
		Resources:       o.ledger.Snapshot(hospitalID),
		PendingBookings: o.machine.Pending(hospitalID),
		Dashboard:       dashboard,
		Connection:      o.ConnectionStatus(hospitalID),
		GeneratedAt:     time.Now(),
		ServerTime:      serverTime,
	}
}

// Subscribe returns a stream of wholesale-replaced snapshots and a cancel
// function. Slow subscribers miss snapshots rather than block the sync loop.
func (o *Orchestrator) Subscribe(buffer int) (<-chan models.SyncSnapshot, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan models.SyncSnapshot, buffer)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
		o.subMu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) publish(hospitalID string) {
	snap := o.Snapshot(hospitalID)

	o.subMu.Lock()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	o.subMu.Unlock()

	if o.cache != nil {
		data, err := json.Marshal(snap)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := o.cache.Set(ctx, utils.SnapshotCachePrefix+hospitalID, data, utils.SnapshotCacheTTL).Err(); err != nil {
				o.logger.Debug("snapshot cache write failed",
					zap.String("hospitalId", hospitalID), zap.Error(err))
			}
			cancel()
		}
	}
}

// Shutdown stops every session and waits for the event consumers to drain.
func (o *Orchestrator) Shutdown() {
	o.cancel()
	o.registry.StopAll()
	o.wg.Wait()
}
