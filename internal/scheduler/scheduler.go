package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// Default pool sizing.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
)

// initEntry is the crontab keyword for "run once at start-up".
const initEntry = "init"

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives queue observations.
type Metrics interface {
	QueueDepth(n int)
	JobDropped(name string)
	JobPanicked(name string)
}

type noopMetrics struct{}

func (noopMetrics) QueueDepth(int)     {}
func (noopMetrics) JobDropped(string)  {}
func (noopMetrics) JobPanicked(string) {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the number of queue workers.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLocation sets the time zone crontab entries are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

type task struct {
	name    string
	job     item.Job
	payload item.Payload
}

type oneShot struct {
	timer *time.Timer
}

// Scheduler implements item.Scheduler.
//
// Thread Safety: all methods are safe for concurrent use.
type Scheduler struct {
	workers   int
	queueSize int
	loc       *time.Location
	logger    Logger
	metrics   Metrics

	queue chan task
	cron  *cron.Cron

	mu       sync.Mutex
	oneShots map[string]*oneShot
	entries  map[string][]cron.EntryID
	inits    []task
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	group    *errgroup.Group

	dropped atomic.Uint64
}

var _ item.Scheduler = (*Scheduler)(nil)

// New creates a Scheduler. Jobs may be dispatched before Start; they wait
// in the queue until the workers run.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		loc:       time.Local,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		oneShots:  make(map[string]*oneShot),
		entries:   make(map[string][]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = make(chan task, s.queueSize)
	s.cron = cron.New(cron.WithLocation(s.loc))
	return s
}

// Dispatch enqueues job. When the queue is full the job is dropped and
// logged. Priority is accepted for interface compatibility; the queue is FIFO.
func (s *Scheduler) Dispatch(name string, job item.Job, payload item.Payload, priority int) {
	select {
	case s.queue <- task{name: name, job: job, payload: payload}:
		s.metrics.QueueDepth(len(s.queue))
	default:
		s.dropped.Add(1)
		s.metrics.JobDropped(name)
		s.logger.Warn("dispatch queue full, job dropped",
			"job", name,
			"priority", priority,
			"queue_size", s.queueSize,
		)
	}
}

// AddOneShot dispatches job once at when. A pending job with the same id
// is replaced. A time in the past fires immediately.
func (s *Scheduler) AddOneShot(id string, job item.Job, payload item.Payload, when time.Time) {
	entry := &oneShot{}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.oneShots[id]; ok {
		prev.timer.Stop()
	}
	s.oneShots[id] = entry
	entry.timer = time.AfterFunc(time.Until(when), func() {
		s.fire(id, entry, task{name: id, job: job, payload: payload})
	})
}

func (s *Scheduler) fire(id string, entry *oneShot, t task) {
	s.mu.Lock()
	if s.oneShots[id] != entry {
		// Replaced or removed after the timer already fired.
		s.mu.Unlock()
		return
	}
	delete(s.oneShots, id)
	s.mu.Unlock()

	s.Dispatch(t.name, t.job, t.payload, 0)
}

// Pending reports whether a one-shot job with id is waiting to fire.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.oneShots[id]
	return ok
}

// AddSchedule registers recurring runs of job.
//
// cycle is "N" or "N = value": every N seconds, with value forwarded as the
// payload. crontab is one or more '|'-separated entries, each a standard
// five-field expression or the keyword "init", optionally followed by
// "= value". Init entries run once when the scheduler starts (or right away
// if it is already running). Either argument may be empty.
func (s *Scheduler) AddSchedule(id string, job item.Job, crontab, cycle string) error {
	type planned struct {
		schedule cron.Schedule
		value    any
	}
	var (
		plans []planned
		inits []task
	)

	if strings.TrimSpace(cycle) != "" {
		spec, value := splitValue(cycle)
		secs, err := strconv.Atoi(spec)
		if err != nil || secs <= 0 {
			return fmt.Errorf("%w: %q for %s", ErrInvalidCycle, cycle, id)
		}
		plans = append(plans, planned{
			schedule: cron.Every(time.Duration(secs) * time.Second),
			value:    value,
		})
	}

	for _, raw := range strings.Split(crontab, "|") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		spec, value := splitValue(raw)
		if strings.EqualFold(spec, initEntry) {
			inits = append(inits, s.scheduledTask(id, job, value))
			continue
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return fmt.Errorf("%w: %q for %s: %w", ErrInvalidCron, raw, id, err)
		}
		plans = append(plans, planned{schedule: sched, value: value})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range plans {
		t := s.scheduledTask(id, job, p.value)
		entryID := s.cron.Schedule(p.schedule, cron.FuncJob(func() {
			s.Dispatch(t.name, t.job, t.payload, 0)
		}))
		s.entries[id] = append(s.entries[id], entryID)
	}

	if s.started {
		for _, t := range inits {
			s.Dispatch(t.name, t.job, t.payload, 0)
		}
	} else {
		s.inits = append(s.inits, inits...)
	}

	s.logger.Debug("schedule added",
		"id", id,
		"crontab", crontab,
		"cycle", cycle,
		"entries", len(plans),
		"init", len(inits),
	)
	return nil
}

func (s *Scheduler) scheduledTask(id string, job item.Job, value any) task {
	return task{
		name:    id,
		job:     job,
		payload: item.Payload{Value: value, Caller: item.CallerScheduler},
	}
}

// splitValue splits "spec = value" into its parts. A missing value is nil.
func splitValue(raw string) (string, any) {
	spec, value, found := strings.Cut(raw, "=")
	spec = strings.TrimSpace(spec)
	if !found {
		return spec, nil
	}
	return spec, strings.TrimSpace(value)
}

// Remove cancels the pending one-shot and every recurring entry under id.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.oneShots[id]; ok {
		entry.timer.Stop()
		delete(s.oneShots, id)
	}
	for _, entryID := range s.entries[id] {
		s.cron.Remove(entryID)
	}
	delete(s.entries, id)
}

// Start launches the workers and the cron clock, then queues init entries.
// Workers exit when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		group.Go(func() error {
			s.work(ctx)
			return nil
		})
	}
	s.cancel = cancel
	s.group = group
	s.started = true
	s.cron.Start()

	for _, t := range s.inits {
		s.Dispatch(t.name, t.job, t.payload, 0)
	}
	s.inits = nil

	s.logger.Info("scheduler started", "workers", s.workers, "queue_size", s.queueSize)
	return nil
}

// Stop halts the cron clock, cancels pending one-shots and waits for the
// workers to finish their current job. Queued jobs are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, entry := range s.oneShots {
		entry.timer.Stop()
		delete(s.oneShots, id)
	}
	cancel, group, started := s.cancel, s.group, s.started
	s.mu.Unlock()

	if !started {
		return
	}
	<-s.cron.Stop().Done()
	cancel()
	_ = group.Wait() //nolint:errcheck // Workers never return errors

	s.logger.Info("scheduler stopped", "dropped", s.dropped.Load())
}

// QueueLength returns the number of jobs waiting for a worker.
func (s *Scheduler) QueueLength() int {
	return len(s.queue)
}

// Dropped returns how many jobs were dropped because the queue was full.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.metrics.QueueDepth(len(s.queue))
			s.run(t)
		}
	}
}

func (s *Scheduler) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.JobPanicked(t.name)
			s.logger.Error("job panicked", "job", t.name, "panic", r)
		}
	}()
	t.job(t.payload)
}
