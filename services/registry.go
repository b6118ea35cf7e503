package services

import (
	"sort"
	"sync"
	"time"

	"leadreminder-backend/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Timers arms deferred callbacks. The returned func revokes the callback if
// it has not started yet.
type Timers interface {
	AfterFunc(at time.Time, fn func()) (stop func())
}

// CronTimers runs one-shot callbacks on a robfig/cron scheduler.
type CronTimers struct {
	c *cron.Cron
}

func NewCronTimers(log *zap.Logger) *CronTimers {
	cl := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	return &CronTimers{
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
	}
}

// Cron exposes the underlying scheduler so recurring jobs can share it.
func (t *CronTimers) Cron() *cron.Cron {
	return t.c
}

func (t *CronTimers) Start() {
	t.c.Start()
}

// Stop halts the scheduler. Callbacks already running are not interrupted.
func (t *CronTimers) Stop() {
	<-t.c.Stop().Done()
}

func (t *CronTimers) AfterFunc(at time.Time, fn func()) func() {
	ready := make(chan struct{})
	var id cron.EntryID
	id = t.c.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() {
		<-ready
		t.c.Remove(id)
		fn()
	}))
	close(ready)
	return func() { t.c.Remove(id) }
}

// onceSchedule fires a single time at a fixed instant. If the instant has
// already passed when cron first asks, it fires immediately. Next is only
// called from the cron run loop.
type onceSchedule struct {
	at   time.Time
	used bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if s.used {
		return time.Time{}
	}
	s.used = true
	if t.Before(s.at) {
		return s.at
	}
	return t
}

// PendingJob is an armed, not yet fired reminder.
type PendingJob struct {
	Key    models.TriggerKey
	FireAt time.Time
	stop   func()
}

// JobRegistry tracks at most one pending job per trigger key.
type JobRegistry struct {
	mu     sync.Mutex
	jobs   map[models.TriggerKey]*PendingJob
	timers Timers
	now    func() time.Time
}

func NewJobRegistry(timers Timers, now func() time.Time) *JobRegistry {
	if now == nil {
		now = time.Now
	}
	return &JobRegistry{
		jobs:   make(map[models.TriggerKey]*PendingJob),
		timers: timers,
		now:    now,
	}
}

// Arm schedules onFire at fireAt. It returns false without arming anything
// when fireAt is not strictly in the future. An existing job for key is
// replaced.
func (r *JobRegistry) Arm(key models.TriggerKey, fireAt time.Time, onFire func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !fireAt.After(r.now()) {
		return false
	}
	if old, ok := r.jobs[key]; ok {
		old.stop()
	}

	job := &PendingJob{Key: key, FireAt: fireAt}
	job.stop = r.timers.AfterFunc(fireAt, func() {
		if !r.take(key, job) {
			return
		}
		onFire()
	})
	r.jobs[key] = job
	return true
}

// take removes job if it is still the registered one for key. A callback of a
// cancelled or superseded job loses here and must not run.
func (r *JobRegistry) take(key models.TriggerKey, job *PendingJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[key] != job {
		return false
	}
	delete(r.jobs, key)
	return true
}

// Cancel revokes the job for key. Absent keys are ignored.
func (r *JobRegistry) Cancel(key models.TriggerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelLocked(key)
}

func (r *JobRegistry) cancelLocked(key models.TriggerKey) bool {
	job, ok := r.jobs[key]
	if !ok {
		return false
	}
	job.stop()
	delete(r.jobs, key)
	return true
}

// CancelAll revokes both reminders of (leadID, category) and returns the kinds
// that were actually pending.
func (r *JobRegistry) CancelAll(leadID string, category models.Category) []models.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cancelled []models.Kind
	for _, k := range models.Kinds {
		if r.cancelLocked(models.TriggerKey{LeadID: leadID, Category: category, Kind: k}) {
			cancelled = append(cancelled, k)
		}
	}
	return cancelled
}

// Get returns a copy of the pending job for key.
func (r *JobRegistry) Get(key models.TriggerKey) (PendingJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	if !ok {
		return PendingJob{}, false
	}
	return PendingJob{Key: job.Key, FireAt: job.FireAt}, true
}

func (r *JobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Pending returns a snapshot ordered by fire time.
func (r *JobRegistry) Pending() []PendingJob {
	r.mu.Lock()
	out := make([]PendingJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, PendingJob{Key: job.Key, FireAt: job.FireAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].Key.String() < out[j].Key.String()
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}
