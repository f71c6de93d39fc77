// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

// Package refresh runs freshness probes off the presentation loop. At most
// one cycle is in flight; workers only compute results and the caller that
// owns presentation state commits them with Complete.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/l5-scheduler/l5/internal/freshness"
	"github.com/l5-scheduler/l5/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Trigger says why a cycle was requested.
type Trigger string

const (
	TriggerInitial     Trigger = "initial"
	TriggerInterval    Trigger = "interval"
	TriggerManual      Trigger = "manual"
	TriggerCredentials Trigger = "credentials"
)

// State is the coordinator's busy flag.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Job is one dispatched cycle, handed to the worker.
type Job struct {
	ID       string
	Trigger  Trigger
	Started  time.Time
	Trackers []*freshness.Tracker
}

// Done is the worker's completion message. It carries candidate results
// only; nothing has been written to the trackers yet.
type Done struct {
	ID       string
	Trigger  Trigger
	Started  time.Time
	Finished time.Time
	Results  []freshness.Result
}

// Succeeded counts results that obtained a timestamp.
func (d Done) Succeeded() int {
	n := 0
	for _, r := range d.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Worker computes the results of a job. It must not mutate tracker state.
type Worker func(ctx context.Context, job Job) Done

// ProbeAll is the default Worker: it probes every tracker of the job
// concurrently and waits for all of them.
func ProbeAll(ctx context.Context, job Job) Done {
	results := make([]freshness.Result, len(job.Trackers))
	var g errgroup.Group
	for i, t := range job.Trackers {
		g.Go(func() error {
			results[i] = t.Probe(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return Done{
		ID:       job.ID,
		Trigger:  job.Trigger,
		Started:  job.Started,
		Finished: time.Now(),
		Results:  results,
	}
}

// Options configures a Coordinator.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Worker  Worker
}

// Coordinator owns the Idle/Refreshing state machine.
type Coordinator struct {
	facade  *freshness.Facade
	worker  Worker
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	current string

	kicks chan Trigger
}

// New creates an idle Coordinator over facade.
func New(facade *freshness.Facade, opts Options) *Coordinator {
	c := &Coordinator{
		facade:  facade,
		worker:  opts.Worker,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		kicks:   make(chan Trigger, 1),
	}
	if c.worker == nil {
		c.worker = ProbeAll
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// State reports whether a cycle is in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy is State() == Refreshing.
func (c *Coordinator) Busy() bool {
	return c.State() == Refreshing
}

// Begin moves Idle to Refreshing and returns the job to run. While a cycle
// is in flight it returns false and nothing is dispatched.
func (c *Coordinator) Begin(trigger Trigger) (Job, bool) {
	c.mu.Lock()
	if c.state == Refreshing {
		current := c.current
		c.mu.Unlock()
		c.metrics.CycleSkipped(string(trigger))
		c.logger.Debug("refresh already in flight", "trigger", string(trigger), "cycle", current)
		return Job{}, false
	}
	job := Job{
		ID:       uuid.NewString(),
		Trigger:  trigger,
		Started:  time.Now(),
		Trackers: c.facade.Trackers(),
	}
	c.state = Refreshing
	c.current = job.ID
	c.mu.Unlock()

	c.metrics.CycleStarted(string(trigger))
	c.logger.Debug("refresh started", "trigger", string(trigger), "cycle", job.ID)
	return job, true
}

// Execute runs the worker for job. It is the only code that runs off the
// presentation loop.
func (c *Coordinator) Execute(ctx context.Context, job Job) Done {
	return c.worker(ctx, job)
}

// Complete commits a finished cycle and returns to Idle. It must be called
// from the presentation loop. A Done for a cycle other than the current one
// is ignored.
func (c *Coordinator) Complete(done Done) int {
	c.mu.Lock()
	if c.state != Refreshing || done.ID != c.current {
		c.mu.Unlock()
		c.logger.Warn("ignoring completion for unknown refresh", "cycle", done.ID)
		return 0
	}
	applied := c.facade.Commit(done.Results)
	c.state = Idle
	c.current = ""
	c.mu.Unlock()

	elapsed := done.Finished.Sub(done.Started)
	c.metrics.CycleFinished(elapsed)
	c.logger.Info("refresh complete",
		"trigger", string(done.Trigger),
		"cycle", done.ID,
		"ok", applied,
		"failed", len(done.Results)-applied,
		"elapsed", elapsed.Round(time.Millisecond))
	return applied
}

// Kick asks a running Run loop for an out-of-band cycle. It never blocks;
// a kick already pending absorbs this one.
func (c *Coordinator) Kick(trigger Trigger) {
	select {
	case c.kicks <- trigger:
	default:
	}
}

// Run drives the coordinator without a terminal UI. The loop goroutine is
// the presentation context: it owns dispatch and Complete, while jobs run on
// their own goroutines. Run returns when ctx is done.
func (c *Coordinator) Run(ctx context.Context, initialDelay, interval time.Duration) error {
	done := make(chan Done, 1)
	dispatch := func(trigger Trigger) {
		job, ok := c.Begin(trigger)
		if !ok {
			return
		}
		go func() { done <- c.Execute(ctx, job) }()
	}

	initial := time.NewTimer(initialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-initial.C:
			dispatch(TriggerInitial)
		case <-ticker.C:
			dispatch(TriggerInterval)
		case trigger := <-c.kicks:
			dispatch(trigger)
		case d := <-done:
			c.Complete(d)
		}
	}
}
