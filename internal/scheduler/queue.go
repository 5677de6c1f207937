// Package scheduler holds commands waiting for a future execution time.
//
// The queue is drained once per tick. Draining swaps the whole queue out in
// one step, splits it into jobs that are due and jobs that are not, puts the
// latter back unchanged and hands the former to the caller. Tick period is
// the scheduling resolution; nothing finer is needed.
package scheduler

import (
	"sync"
	"time"

	"github.com/tbourn/go-chat-bot/internal/command"
)

// Job is a command with an absolute execution time.
type Job struct {
	Command  *command.Command
	Created  time.Time
	Execute  time.Time
	Requeued int
}

// CanExecute reports whether the job is due at now.
func (j *Job) CanExecute(now time.Time) bool { return !now.Before(j.Execute) }

// Queue is a mutex-guarded job list.
type Queue struct {
	mu   sync.Mutex
	jobs []*Job
	now  func() time.Time
}

// NewQueue returns an empty queue. A nil clock uses time.Now.
func NewQueue(now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{now: now}
}

// Schedule enqueues cmd to run after delay.
func (q *Queue) Schedule(cmd *command.Command, delay time.Duration) *Job {
	now := q.now()
	if delay < 0 {
		delay = 0
	}
	return q.push(&Job{Command: cmd, Created: now, Execute: now.Add(delay)})
}

// ScheduleAt enqueues cmd to run at the absolute time at.
func (q *Queue) ScheduleAt(cmd *command.Command, at time.Time) *Job {
	return q.push(&Job{Command: cmd, Created: q.now(), Execute: at})
}

func (q *Queue) push(j *Job) *Job {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()
	return j
}

// Drain removes and returns every due job in enqueue order. Jobs that are
// not yet due go back on the queue with their execute time untouched and
// their requeue counter incremented.
func (q *Queue) Drain() []*Job {
	q.mu.Lock()
	pending := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	now := q.now()
	var due, later []*Job
	for _, j := range pending {
		if j.CanExecute(now) {
			due = append(due, j)
			continue
		}
		j.Requeued++
		later = append(later, j)
	}

	if len(later) > 0 {
		q.mu.Lock()
		// Jobs scheduled while draining run after the held-back ones.
		q.jobs = append(later, q.jobs...)
		q.mu.Unlock()
	}
	return due
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns a copy of the queued jobs, for inspection.
func (q *Queue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	return out
}
