package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/insrapperswil/antimony/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fixedSource replays a scripted sequence of values.
type fixedSource struct {
	values []int
	i      int
}

func (s *fixedSource) IntN(n int) int {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.i%len(s.values)] % n
	s.i++
	return v
}

func collectSink(got *[]Transition) Sink {
	return func(t Transition) { *got = append(*got, t) }
}

func TestLabReachesTerminalStateWithoutSkippingDeploying(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var got []Transition
	s := New(collectSink(&got),
		WithClock(clock),
		WithSource(&fixedSource{values: []int{0}}), // minimal dwell, outcome Running
		WithDwell(5*time.Second, 10*time.Second),
	)

	s.Enqueue("lab-1")
	assert.Equal(t, 1, s.Len())

	// Before the dwell elapses nothing moves.
	assert.Zero(t, s.Step())
	state, ok := s.Queued("lab-1")
	require.True(t, ok)
	assert.Equal(t, model.LabStateScheduled, state)

	// One maximal dwell is always enough to come due.
	clock.advance(10 * time.Second)
	assert.Equal(t, 1, s.Step())
	state, ok = s.Queued("lab-1")
	require.True(t, ok)
	assert.Equal(t, model.LabStateDeploying, state)

	clock.advance(10 * time.Second)
	assert.Equal(t, 1, s.Step())

	// Terminal: nothing left in the queue, and one more step is quiet.
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Step())

	require.Len(t, got, 2)
	assert.Equal(t, model.LabStateScheduled, got[0].From)
	assert.Equal(t, model.LabStateDeploying, got[0].To)
	assert.Equal(t, model.LabStateDeploying, got[1].From)
	assert.Equal(t, model.LabStateRunning, got[1].To)
}

func TestDeployingOutcomeFollowsSource(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var got []Transition
	// Sequence: dwell for enqueue, dwell for re-enqueue, then coin flips.
	s := New(collectSink(&got),
		WithClock(clock),
		WithSource(&fixedSource{values: []int{1}}), // coin flip 1 => Failed
		WithDwell(time.Second, time.Second),        // fixed dwell, no draw needed
	)

	s.Enqueue("lab-1")
	clock.advance(time.Second)
	s.Step()
	clock.advance(time.Second)
	s.Step()

	require.Len(t, got, 2)
	assert.Equal(t, model.LabStateFailed, got[1].To)
}

func TestStepOrderFollowsEnqueueOrder(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var got []Transition
	s := New(collectSink(&got),
		WithClock(clock),
		WithSource(&fixedSource{}),
		WithDwell(time.Second, time.Second),
	)

	s.Enqueue("lab-a")
	s.Enqueue("lab-b")
	s.Enqueue("lab-c")

	clock.advance(time.Second)
	assert.Equal(t, 3, s.Step())

	require.Len(t, got, 3)
	assert.Equal(t, "lab-a", got[0].LabID)
	assert.Equal(t, "lab-b", got[1].LabID)
	assert.Equal(t, "lab-c", got[2].LabID)
}

func TestReEnqueueRestartsLab(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := New(nil,
		WithClock(clock),
		WithSource(&fixedSource{}),
		WithDwell(time.Second, time.Second),
	)

	s.Enqueue("lab-1")
	clock.advance(time.Second)
	s.Step()
	state, ok := s.Queued("lab-1")
	require.True(t, ok)
	assert.Equal(t, model.LabStateDeploying, state)

	// A reschedule re-enqueues at Scheduled without duplicating the entry.
	s.Enqueue("lab-1")
	assert.Equal(t, 1, s.Len())
	state, _ = s.Queued("lab-1")
	assert.Equal(t, model.LabStateScheduled, state)
}

func TestCancelRemovesLab(t *testing.T) {
	s := New(nil, WithSource(&fixedSource{}))
	s.Enqueue("lab-1")
	s.Enqueue("lab-2")
	s.Cancel("lab-1")

	assert.Equal(t, 1, s.Len())
	_, ok := s.Queued("lab-1")
	assert.False(t, ok)
}

func TestOutcomeSplitIsRoughlyEven(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var got []Transition
	// A fixed alternating source stands in for the platform RNG; the point
	// is that the outcome policy maps the draw straight onto the split.
	s := New(collectSink(&got),
		WithClock(clock),
		WithSource(&fixedSource{values: []int{0, 1}}),
		WithDwell(time.Second, time.Second),
	)

	const n = 1000
	for i := range n {
		s.Enqueue(fmt.Sprintf("lab-%d", i))
	}
	clock.advance(time.Second)
	s.Step() // all Scheduled -> Deploying
	clock.advance(time.Second)
	s.Step() // all Deploying -> terminal

	running, failed := 0, 0
	for _, tr := range got {
		switch tr.To {
		case model.LabStateRunning:
			running++
		case model.LabStateFailed:
			failed++
		}
	}
	assert.Equal(t, n, running+failed)
	assert.InDelta(t, n/2, running, float64(n)/10)
	assert.InDelta(t, n/2, failed, float64(n)/10)
}
