// Package scheduler owns the recurring availability checks: one timer per
// subscription plus a housekeeping sweep, all sharing the durable store.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"terminbot/internal/booking"
	"terminbot/internal/catalog"
	"terminbot/internal/subscription"
	"terminbot/pkg/logx"
)

const housekeepingEntry = "housekeeping"

type timerEntry struct {
	id      cron.EntryID
	running *atomic.Bool
}

// Service arms and cancels per-subscription timers and routes check results
// to the notifier. All timer registry mutation goes through mu, so a
// subscribe can never leave two timers armed for the same user.
type Service struct {
	cfg     Config
	log     logx.Logger
	reg     *catalog.Registry
	store   subscription.Store
	probe   Prober
	notify  Notifier
	metrics MetricsSink
	health  HealthPinger

	now func() time.Time

	mu      sync.Mutex
	c       *cron.Cron
	entries map[string]timerEntry
	runCtx  context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, reg *catalog.Registry, store subscription.Store, probe Prober, metrics MetricsSink, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log,
		reg:     reg,
		store:   store,
		probe:   probe,
		metrics: metrics,
		now:     time.Now,
		entries: map[string]timerEntry{},
	}
}

// SetNotifier installs the delivery channel. Must be called before Start;
// the transport is constructed after the scheduler, so this is late-bound.
func (s *Service) SetNotifier(n Notifier) { s.notify = n }

// SetHealthPinger installs an optional liveness self-ping, invoked on every
// housekeeping run.
func (s *Service) SetHealthPinger(h HealthPinger) { s.health = h }

// Apply updates the tunable limits. Existing subscriptions keep their
// intervals; only new subscribe requests see the new minimum.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// MinInterval is the smallest interval Subscribe currently accepts.
func (s *Service) MinInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.MinInterval
}

// Start re-arms a timer for every stored subscription (crash recovery: a
// restart must neither lose a watch nor leave an orphaned record without a
// timer), then starts the housekeeping schedule. An immediate housekeeping
// pass catches records that expired while the process was down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.c = cron.New()

	subs, err := s.store.ListAll(ctx)
	if err != nil {
		s.c = nil
		s.cancel()
		s.mu.Unlock()
		return err
	}
	for _, sub := range subs {
		if err := s.armLocked(sub); err != nil {
			s.log.Error("timer restore failed", logx.String("user", sub.UserID), logx.Err(err))
		}
	}

	hk := s.cfg.Housekeeping
	if _, err := s.c.AddFunc("@every "+hk.String(), s.housekeepingJob); err != nil {
		s.c = nil
		s.cancel()
		s.mu.Unlock()
		return err
	}
	s.c.Start()
	s.mu.Unlock()

	s.log.Info("scheduler started",
		logx.Int("subscriptions", len(subs)),
		logx.Duration("housekeeping", hk))
	s.metrics.SetActiveSubscriptions(len(subs))

	go s.housekeepingJob()
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entries = map[string]timerEntry{}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("scheduler stopped")
}

// Subscribe validates and stores a new watch, replacing any prior one for
// the same user. The replacement notice is sent here because the store
// overwrite is what destroys the old record.
func (s *Service) Subscribe(ctx context.Context, userID, departmentID, appointmentType string, interval time.Duration) error {
	s.mu.Lock()
	minInterval := s.cfg.MinInterval
	s.mu.Unlock()
	if interval < minInterval {
		return ErrIntervalTooShort
	}

	s.mu.Lock()

	replaced := false
	switch _, err := s.store.Get(ctx, userID); {
	case err == nil:
		replaced = true
	case errors.Is(err, subscription.ErrNotFound):
	default:
		s.mu.Unlock()
		return err
	}

	// The old timer goes first so no firing can observe the half-replaced
	// state; Put then overwrites the record in one statement.
	s.cancelTimerLocked(userID)

	sub := subscription.Subscription{
		UserID:          userID,
		DepartmentID:    departmentID,
		AppointmentType: appointmentType,
		Interval:        interval,
		CreatedAt:       s.now(),
	}
	if err := s.store.Put(ctx, sub); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.c != nil {
		if err := s.armLocked(sub); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	// The replacement notice goes out after the unlock: a send is a network
	// call, and holding mu across it would stall every other user's firing.
	s.log.Info("subscription created",
		logx.String("user", userID),
		logx.String("department", departmentID),
		logx.String("type", appointmentType),
		logx.Duration("interval", interval))
	s.metrics.RecordSubscription(departmentID, appointmentType, interval)
	s.refreshActiveGauge(ctx)

	if replaced {
		s.send(ctx, userID, textReplaced)
	}
	return nil
}

// Unsubscribe cancels the timer and removes the record. It is idempotent:
// the goodbye message is only sent when a record was actually removed, so a
// second call is a silent no-op.
func (s *Service) Unsubscribe(ctx context.Context, userID string, automatic bool) (bool, error) {
	// Store removal first: if it fails, record and timer both stay intact.
	// An in-flight firing cannot notify past the removal, it re-checks the
	// store before sending.
	removed, err := s.store.Remove(ctx, userID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.cancelTimerLocked(userID)
	s.mu.Unlock()

	if !removed {
		return false, nil
	}

	if automatic {
		s.log.Info("subscription removed since it expired", logx.String("user", userID))
		s.send(ctx, userID, textExpired)
	} else {
		s.log.Info("subscription removed by request", logx.String("user", userID))
		s.send(ctx, userID, textUnsubscribed)
	}
	s.refreshActiveGauge(ctx)
	return true, nil
}

// armLocked registers the recurring check. Caller holds mu.
func (s *Service) armLocked(sub subscription.Subscription) error {
	if s.c == nil {
		return nil
	}
	running := &atomic.Bool{}
	id, err := s.c.AddFunc("@every "+sub.Interval.String(), func() {
		s.fire(sub, running)
	})
	if err != nil {
		return err
	}
	s.entries[sub.UserID] = timerEntry{id: id, running: running}
	return nil
}

func (s *Service) cancelTimerLocked(userID string) {
	if e, ok := s.entries[userID]; ok {
		if s.c != nil {
			s.c.Remove(e.id)
		}
		delete(s.entries, userID)
	}
}

// fire runs one scheduled check. Skips if the previous firing is still
// in-flight (a slow probe must not pile up re-entrant checks).
func (s *Service) fire(sub subscription.Subscription, running *atomic.Bool) {
	if !running.CompareAndSwap(false, true) {
		s.log.Debug("check still running, skipping firing", logx.String("user", sub.UserID))
		return
	}
	defer running.Store(false)

	ctx, cancel := context.WithTimeout(s.runCtx, s.checkTimeout(sub.Interval))
	defer cancel()
	s.runCheck(ctx, sub)
}

// checkTimeout keeps one lookup modestly shorter than the subscription's
// own interval.
func (s *Service) checkTimeout(interval time.Duration) time.Duration {
	s.mu.Lock()
	t := s.cfg.ProbeTimeout
	s.mu.Unlock()
	if t >= interval {
		t = interval * 9 / 10
	}
	return t
}

func (s *Service) runCheck(ctx context.Context, sub subscription.Subscription) {
	log := s.log.With(logx.String("user", sub.UserID), logx.String("department", sub.DepartmentID), logx.String("type", sub.AppointmentType))
	log.Debug("running availability check")
	s.metrics.RecordSearch(sub.DepartmentID, sub.AppointmentType)

	results, err := s.probe.Check(ctx, sub.DepartmentID, sub.AppointmentType)
	switch {
	case errors.Is(err, booking.ErrUnsupportedType):
		// The catalog may be fixed later, so the subscription stays active;
		// the user is told every firing until they cancel.
		if !s.stillSubscribed(ctx, sub.UserID) {
			return
		}
		log.Warn("appointment type no longer accepted")
		s.send(ctx, sub.UserID, textUnsupportedType(s.departmentName(sub.DepartmentID), sub.AppointmentType))

	case err != nil:
		// Transient (network, parse, unknown department): skip this firing
		// silently, the next interval retries. Notifying here would spam.
		log.Warn("availability check failed", logx.Err(err))

	case len(results) == 0:
		// Deliberate silence: "nothing free" every interval is noise.
		log.Debug("nothing found")
		s.metrics.RecordEmptyResult(sub.DepartmentID, sub.AppointmentType)

	default:
		// Expiry wins over an in-flight result: re-check existence
		// immediately before notifying.
		if !s.stillSubscribed(ctx, sub.UserID) {
			log.Debug("subscription gone before notification, dropping result")
			return
		}
		now := s.now()
		for _, r := range results {
			if days, ok := daysUntil(now, r.EarliestDate); ok {
				log.Info("appointments found",
					logx.String("place", r.LocationCaption),
					logx.Int("free_in_days", days),
					logx.Int("slots", len(r.TimeSlots)))
				s.metrics.RecordResult(sub.DepartmentID, r.LocationCaption, sub.AppointmentType, days, len(r.TimeSlots))
			}
			s.send(ctx, sub.UserID, textResult(r))
		}
		s.send(ctx, sub.UserID, textBookingReminder(s.frameURL(sub.DepartmentID)))
	}
}

func (s *Service) housekeepingJob() {
	ctx, cancel := context.WithTimeout(s.runCtx, time.Minute)
	defer cancel()
	if err := s.runHousekeeping(ctx); err != nil {
		s.log.Error("housekeeping failed", logx.Err(err))
	}
}

// runHousekeeping expires stale subscriptions and self-pings. Expiry lives
// here, decoupled from the per-subscription firing path.
func (s *Service) runHousekeeping(ctx context.Context) error {
	now := s.now()
	ids, err := s.store.Expire(ctx, now.Add(-subscription.Lifetime))
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.mu.Lock()
		s.cancelTimerLocked(id)
		s.mu.Unlock()
		s.log.Info("subscription removed since it expired", logx.String("user", id))
		s.send(ctx, id, textExpired)
	}
	s.refreshActiveGauge(ctx)

	if s.health != nil {
		s.health.Ping(ctx)
	}
	return nil
}

// RunHousekeepingNow is exported for operational use (and tests); the
// regular cadence is owned by Start.
func (s *Service) RunHousekeepingNow(ctx context.Context) error {
	return s.runHousekeeping(ctx)
}

func (s *Service) stillSubscribed(ctx context.Context, userID string) bool {
	_, err := s.store.Get(ctx, userID)
	return err == nil
}

func (s *Service) send(ctx context.Context, userID, text string) {
	if s.notify == nil {
		s.log.Warn("no notifier configured, dropping message", logx.String("user", userID))
		return
	}
	if err := s.notify.Send(ctx, userID, text); err != nil {
		s.log.Warn("notification send failed", logx.String("user", userID), logx.Err(err))
	}
}

func (s *Service) refreshActiveGauge(ctx context.Context) {
	subs, err := s.store.ListAll(ctx)
	if err != nil {
		return
	}
	s.metrics.SetActiveSubscriptions(len(subs))
}

func (s *Service) departmentName(id string) string {
	if dep, ok := s.reg.ByID(id); ok {
		return dep.Name
	}
	return id
}

func (s *Service) frameURL(id string) string {
	if dep, ok := s.reg.ByID(id); ok {
		return dep.FrameURL
	}
	return ""
}

// daysUntil counts calendar days from now's date to a YYYY-MM-DD date.
func daysUntil(now time.Time, date string) (int, bool) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today) / (24 * time.Hour)), true
}
