// services/reminder_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadreminder-backend/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type Options struct {
	// Workers bounds concurrent deliveries.
	Workers int
	// GatewayTimeout bounds one gateway call and, separately, the status update.
	GatewayTimeout time.Duration
	// SendRate caps gateway calls per second. Zero means unlimited.
	SendRate float64
	Now      func() time.Time
	Metrics  *Metrics
}

// ScheduleResult reports which reminders were armed and which were skipped
// because their trigger time had already passed.
type ScheduleResult struct {
	Armed   []models.Kind
	Skipped []models.Kind
}

// ReloadSummary describes one ReloadPending pass.
type ReloadSummary struct {
	Leads    int
	Meetings int
	Visits   int
	Skipped  int
	Failed   int
}

// ReminderService schedules R1/R2 reminders for lead appointments and delivers
// them when their timers fire.
type ReminderService struct {
	store    RecordStore
	notifier Notifier
	calc     *TimeCalculator
	registry *JobRegistry
	log      *zap.Logger
	metrics  *Metrics
	now      func() time.Time
	timeout  time.Duration

	mu      sync.Mutex
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

func NewReminderService(store RecordStore, notifier Notifier, calc *TimeCalculator, registry *JobRegistry, log *zap.Logger, opts Options) *ReminderService {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	return &ReminderService{
		store:    store,
		notifier: notifier,
		calc:     calc,
		registry: registry,
		log:      log,
		metrics:  opts.Metrics,
		now:      opts.Now,
		timeout:  opts.GatewayTimeout,
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Schedule replaces any pending reminders of (LeadID, Category) with new ones
// derived from the request's appointment time.
func (s *ReminderService) Schedule(req models.ReminderRequest) (ScheduleResult, error) {
	return s.schedule(req, nil)
}

func (s *ReminderService) schedule(req models.ReminderRequest, alreadySent map[models.Kind]bool) (ScheduleResult, error) {
	var res ScheduleResult

	if err := validateRequest(&req); err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.syncPending()

	log := s.log.With(zap.String("lead_id", req.LeadID), zap.String("category", string(req.Category)))

	if cancelled := s.registry.CancelAll(req.LeadID, req.Category); len(cancelled) > 0 {
		log.Info("cancelled existing reminders", zap.Any("kinds", cancelled))
	}

	triggers, err := s.calc.Calculate(req.MeetingDate, req.MeetingTime)
	if err != nil {
		return res, err
	}

	now := s.now()
	for _, kind := range models.Kinds {
		kind := kind
		if alreadySent[kind] {
			continue
		}
		at := triggers.At(kind)
		key := models.TriggerKey{LeadID: req.LeadID, Category: req.Category, Kind: kind}
		labels := prometheus.Labels{"category": string(req.Category), "kind": string(kind)}

		if s.registry.Arm(key, at, func() { s.dispatch(req, kind) }) {
			res.Armed = append(res.Armed, kind)
			s.metrics.Scheduled.With(labels).Inc()
			log.Info("reminder scheduled", zap.String("kind", string(kind)), zap.Time("fire_at", at))
			continue
		}
		res.Skipped = append(res.Skipped, kind)
		s.metrics.Skipped.With(labels).Inc()
		log.Info("reminder time already passed",
			zap.String("kind", string(kind)), zap.Time("fire_at", at), zap.Time("now", now))
	}
	return res, nil
}

func validateRequest(req *models.ReminderRequest) error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	switch {
	case req.LeadID == "":
		return missing("leadId")
	case req.Phone == "":
		return missing("phone")
	case req.ParentsName == "":
		return missing("parentsName")
	case req.MeetingDate == "":
		return missing("meetingDate")
	case req.MeetingTime == "":
		return missing("meetingTime")
	}
	c, ok := models.ParseCategory(string(req.Category))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}
	req.Category = c
	return nil
}

// Cancel revokes pending reminders of (leadID, category). It never fails.
func (s *ReminderService) Cancel(leadID string, category models.Category) []models.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.syncPending()

	cancelled := s.registry.CancelAll(leadID, category)
	s.log.Info("reminders cancelled",
		zap.String("lead_id", leadID),
		zap.String("category", string(category)),
		zap.Any("kinds", cancelled))
	return cancelled
}

func (s *ReminderService) PendingCount() int {
	return s.registry.Len()
}

func (s *ReminderService) Pending() []PendingJob {
	return s.registry.Pending()
}

func (s *ReminderService) syncPending() {
	s.metrics.Pending.Set(float64(s.registry.Len()))
}

// dispatch runs a fired reminder on the bounded worker pool. A panic is
// contained to this delivery.
func (s *ReminderService) dispatch(req models.ReminderRequest, kind models.Kind) {
	s.wg.Add(1)
	defer s.wg.Done()
	s.syncPending()

	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reminder delivery panicked",
				zap.String("lead_id", req.LeadID),
				zap.String("kind", string(kind)),
				zap.Any("panic", r))
		}
	}()

	s.deliver(req, kind)
}

func (s *ReminderService) deliver(req models.ReminderRequest, kind models.Kind) {
	field := models.StatusField(req.Category, kind)
	log := s.log.With(
		zap.String("lead_id", req.LeadID),
		zap.String("category", string(req.Category)),
		zap.String("kind", string(kind)),
	)
	log.Info("sending reminder")

	entry := &models.ReminderLog{
		LeadID:   req.LeadID,
		Category: string(req.Category),
		Kind:     string(kind),
		Channel:  s.notifier.Channel(req.Phone),
		SentAt:   s.now().UTC(),
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	if err := s.limiter.Wait(sendCtx); err != nil {
		cancel()
		log.Error("send rate limit wait aborted", zap.Error(err))
		s.metrics.Failed.WithLabelValues(string(req.Category), string(kind), "rate").Inc()
		entry.Status = models.LogStatusFailed
		entry.ErrorMessage = err.Error()
		s.logDelivery(log, entry)
		return
	}
	msgID, err := s.notifier.Send(sendCtx, models.Notification{
		LeadID:      req.LeadID,
		Phone:       req.Phone,
		ParentsName: req.ParentsName,
		Date:        req.MeetingDate,
		Time:        req.MeetingTime,
		Kind:        kind,
		Category:    req.Category,
	})
	cancel()
	if err != nil {
		if !errors.Is(err, ErrGatewayFailure) {
			err = fmt.Errorf("%w: %w", ErrGatewayFailure, err)
		}
		log.Error("failed to send reminder", zap.Error(err))
		s.metrics.Failed.WithLabelValues(string(req.Category), string(kind), "send").Inc()
		entry.Status = models.LogStatusFailed
		entry.ErrorMessage = err.Error()
		s.logDelivery(log, entry)
		return
	}

	s.metrics.Sent.WithLabelValues(string(req.Category), string(kind)).Inc()
	entry.Status = models.LogStatusSent
	entry.MessageID = msgID
	s.logDelivery(log, entry)

	storeCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.UpdateStatus(storeCtx, req.LeadID, field, models.StatusSent); err != nil {
		log.Error("reminder sent but status update failed", zap.String("field", field), zap.Error(err))
		s.metrics.Failed.WithLabelValues(string(req.Category), string(kind), "status").Inc()
		return
	}
	log.Info("reminder sent", zap.String("field", field), zap.String("message_id", msgID))
}

func (s *ReminderService) logDelivery(log *zap.Logger, entry *models.ReminderLog) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.LogDelivery(ctx, entry); err != nil {
		log.Warn("failed to record delivery attempt", zap.Error(err))
	}
}

// ReloadPending rebuilds timers from the store. Reminders already SENT are not
// re-armed; a lead with a malformed timestamp is skipped. A failed query
// leaves the service running with no timers.
func (s *ReminderService) ReloadPending(ctx context.Context) ReloadSummary {
	var sum ReloadSummary

	s.log.Info("loading pending reminders")
	leads, err := s.store.QueryPending(ctx)
	if err != nil {
		if !errors.Is(err, ErrStoreQuery) {
			err = fmt.Errorf("%w: %w", ErrStoreQuery, err)
		}
		s.log.Error("failed to load pending reminders", zap.Error(err))
		return sum
	}
	sum.Leads = len(leads)

	for i := range leads {
		lead := &leads[i]
		for _, c := range []models.Category{models.CategoryMeeting, models.CategoryVisit} {
			ts := lead.Appointment(c)
			if ts == nil {
				continue
			}
			if lead.FullySent(c) {
				sum.Skipped++
				continue
			}

			// Stored values are wall clocks written with a UTC marker. Read
			// them in UTC whatever location the driver attached.
			wall := ts.UTC()
			req := models.ReminderRequest{
				LeadID:      lead.ID,
				Phone:       lead.Phone,
				ParentsName: lead.ParentsName,
				MeetingDate: wall.Format(DateLayout),
				MeetingTime: wall.Format(TimeLayout),
				Category:    c,
			}
			sent := map[models.Kind]bool{
				models.KindR1: lead.Sent(c, models.KindR1),
				models.KindR2: lead.Sent(c, models.KindR2),
			}
			if _, err := s.schedule(req, sent); err != nil {
				sum.Failed++
				s.log.Warn("skipping lead during reload",
					zap.String("lead_id", lead.ID),
					zap.String("category", string(c)),
					zap.Error(err))
				continue
			}
			if c == models.CategoryMeeting {
				sum.Meetings++
			} else {
				sum.Visits++
			}
		}
	}

	s.log.Info("loaded pending reminders",
		zap.Int("leads", sum.Leads),
		zap.Int("meetings", sum.Meetings),
		zap.Int("visits", sum.Visits),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("pending", s.PendingCount()))
	return sum
}

// StartResync reruns ReloadPending on the given cron spec. The leads table is
// authoritative: a reminder cancelled through Cancel is armed again on the
// next resync while its lead still carries the appointment timestamp.
func (s *ReminderService) StartResync(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.ReloadPending(ctx)
	})
}

// Wait blocks until in-flight deliveries finish.
func (s *ReminderService) Wait() {
	s.wg.Wait()
}
