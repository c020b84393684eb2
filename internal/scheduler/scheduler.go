// Package scheduler implements the lab lifecycle engine: a single queue of
// pending labs drained by a recurring step function that advances each lab
// Scheduled → Deploying → Running|Failed with randomized dwell times and a
// randomized deployment outcome. The clock and random source are injected so
// tests can drive the state machine deterministically.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/insrapperswil/antimony/internal/model"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Source supplies randomness for dwell times and the deployment coin flip.
type Source interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// SystemSource is the default random source.
type SystemSource struct{}

// IntN returns a uniform value in [0, n).
func (SystemSource) IntN(n int) int { return rand.IntN(n) }

// Transition describes one lifecycle state change.
type Transition struct {
	LabID string
	From  model.LabState
	To    model.LabState
	At    time.Time
}

// Sink receives every transition the engine produces. It runs on the step
// goroutine, outside the queue lock.
type Sink func(Transition)

// entry is one queued lab awaiting its next transition.
type entry struct {
	labID      string
	state      model.LabState
	enqueuedAt time.Time
	cooldown   time.Duration
}

// Scheduler owns the lab queue. It is constructed once at process start and
// passed by reference to request handlers; the queue is guarded by a mutex
// since handlers enqueue while the run loop steps.
type Scheduler struct {
	sink   Sink
	clock  Clock
	src    Source
	logger *slog.Logger

	minDwell time.Duration
	maxDwell time.Duration
	tickMin  time.Duration
	tickMax  time.Duration

	mu    sync.Mutex
	queue []entry
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSource injects the random source.
func WithSource(src Source) Option {
	return func(s *Scheduler) { s.src = src }
}

// WithDwell sets the randomized dwell-time bounds for a state.
func WithDwell(min, max time.Duration) Option {
	return func(s *Scheduler) { s.minDwell, s.maxDwell = min, max }
}

// WithTick sets the randomized poll-interval bounds of the run loop.
func WithTick(min, max time.Duration) Option {
	return func(s *Scheduler) { s.tickMin, s.tickMax = min, max }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates an engine delivering transitions to sink.
func New(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:     sink,
		clock:    SystemClock{},
		src:      SystemSource{},
		logger:   slog.Default(),
		minDwell: 5 * time.Second,
		maxDwell: 10 * time.Second,
		tickMin:  6 * time.Second,
		tickMax:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue puts a lab into the queue at state Scheduled with a randomized
// dwell. Re-enqueueing a lab already queued (a reschedule) restarts it.
func (s *Scheduler) Enqueue(labID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(labID)
	s.queue = append(s.queue, entry{
		labID:      labID,
		state:      model.LabStateScheduled,
		enqueuedAt: s.clock.Now(),
		cooldown:   s.dwell(),
	})
	s.logger.Debug("Lab enqueued.", "labId", labID, "queueLength", len(s.queue))
}

// Cancel removes a lab from the queue, if present.
func (s *Scheduler) Cancel(labID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(labID)
}

// Queued returns the queued state of a lab.
func (s *Scheduler) Queued(labID string) (model.LabState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.queue {
		if e.labID == labID {
			return e.state, true
		}
	}
	return "", false
}

// Len returns the queue length.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Step advances every lab whose dwell has elapsed and returns the number of
// transitions produced. Labs reaching Deploying are re-enqueued with a fresh
// cooldown; Running and Failed are terminal for the engine. Earlier-queued
// labs transition first.
func (s *Scheduler) Step() int {
	now := s.clock.Now()

	s.mu.Lock()
	var transitions []Transition
	kept := s.queue[:0]
	for _, e := range s.queue {
		if now.Sub(e.enqueuedAt) < e.cooldown {
			kept = append(kept, e)
			continue
		}
		switch e.state {
		case model.LabStateScheduled:
			transitions = append(transitions, Transition{
				LabID: e.labID, From: e.state, To: model.LabStateDeploying, At: now,
			})
			kept = append(kept, entry{
				labID:      e.labID,
				state:      model.LabStateDeploying,
				enqueuedAt: now,
				cooldown:   s.dwell(),
			})
		case model.LabStateDeploying:
			to := model.LabStateRunning
			if s.src.IntN(2) == 1 {
				to = model.LabStateFailed
			}
			transitions = append(transitions, Transition{
				LabID: e.labID, From: e.state, To: to, At: now,
			})
		default:
			// Terminal states never stay queued; drop defensively.
		}
	}
	s.queue = kept
	s.mu.Unlock()

	for _, t := range transitions {
		s.logger.Info("Lab state transition.", "labId", t.LabID, "from", t.From, "to", t.To)
		if s.sink != nil {
			s.sink(t)
		}
	}
	return len(transitions)
}

// Run steps the engine on a randomized interval until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Lab lifecycle engine started.", "tickMin", s.tickMin, "tickMax", s.tickMax)
	for {
		timer := time.NewTimer(s.tick())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Lab lifecycle engine stopped.")
			return
		case <-timer.C:
			s.Step()
		}
	}
}

func (s *Scheduler) removeLocked(labID string) {
	kept := s.queue[:0]
	for _, e := range s.queue {
		if e.labID != labID {
			kept = append(kept, e)
		}
	}
	s.queue = kept
}

func (s *Scheduler) dwell() time.Duration {
	return s.between(s.minDwell, s.maxDwell)
}

func (s *Scheduler) tick() time.Duration {
	return s.between(s.tickMin, s.tickMax)
}

func (s *Scheduler) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int((max - min) / time.Millisecond)
	return min + time.Duration(s.src.IntN(span+1))*time.Millisecond
}
