package item

import (
	"context"
	"sync"
	"time"
)

type dispatched struct {
	name    string
	job     Job
	payload Payload
}

type oneShot struct {
	job     Job
	payload Payload
	when    time.Time
}

// queueScheduler records jobs and runs them only when drained.
type queueScheduler struct {
	mu        sync.Mutex
	queue     []dispatched
	oneShots  map[string]oneShot
	schedules map[string][2]string
}

func newQueueScheduler() *queueScheduler {
	return &queueScheduler{
		oneShots:  make(map[string]oneShot),
		schedules: make(map[string][2]string),
	}
}

func (s *queueScheduler) Dispatch(name string, job Job, p Payload, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, dispatched{name: name, job: job, payload: p})
}

func (s *queueScheduler) AddOneShot(id string, job Job, p Payload, when time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oneShots[id] = oneShot{job: job, payload: p, when: when}
}

func (s *queueScheduler) AddSchedule(id string, _ Job, cron, cycle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[id] = [2]string{cron, cycle}
	return nil
}

func (s *queueScheduler) pending() []dispatched {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatched(nil), s.queue...)
}

// drain runs queued jobs, including ones queued while draining.
func (s *queueScheduler) drain() int {
	n := 0
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return n
		}
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		d.job(d.payload)
		n++
	}
}

func (s *queueScheduler) takeOneShot(id string) (oneShot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.oneShots[id]
	delete(s.oneShots, id)
	return o, ok
}

type memStore struct {
	mu       sync.Mutex
	values   map[string]any
	modified map[string]time.Time
	writes   []any
	err      error
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]any), modified: make(map[string]time.Time)}
}

func (m *memStore) Read(_ context.Context, path string) (time.Time, any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[path]
	if !ok {
		return time.Time{}, nil, ErrCacheMiss
	}
	return m.modified[path], v, nil
}

func (m *memStore) Write(_ context.Context, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[path] = value
	m.writes = append(m.writes, value)
	return nil
}

func (m *memStore) written() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.writes...)
}

type commit struct {
	value  any
	caller CallerKind
	source string
}

type recorder struct {
	mu      sync.Mutex
	commits []commit
}

func (r *recorder) callback(it *Item, caller CallerKind, source, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, commit{value: it.Value(), caller: caller, source: source})
	return nil
}

func (r *recorder) all() []commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]commit(nil), r.commits...)
}

func (r *recorder) values() []any {
	var out []any
	for _, c := range r.all() {
		out = append(out, c.value)
	}
	return out
}

type fadeMetrics struct {
	noopMetrics
	finished chan string
}

func newFadeMetrics() *fadeMetrics {
	return &fadeMetrics{finished: make(chan string, 16)}
}

func (m *fadeMetrics) FadeFinished(_ string, outcome string) {
	m.finished <- outcome
}

type evalFunc func(expr string, env EvalEnv) (any, error)

func (f evalFunc) Evaluate(expr string, env EvalEnv) (any, error) { return f(expr, env) }

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
