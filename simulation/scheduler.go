// Copyright 2023 The powsim Authors
// This file is part of the powsim library.
//
// The powsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powsim library. If not, see <http://www.gnu.org/licenses/>.

package simulation

import (
	"container/heap"
	"math/rand"
	"sync/atomic"

	"github.com/rcrowley/go-metrics"

	"github.com/powsim/powsim/log"
)

var logger = log.NewModuleLogger(log.Simulation)

var (
	scheduledCounter = metrics.GetOrRegisterCounter("sim/events/scheduled", nil)
	completedCounter = metrics.GetOrRegisterCounter("sim/events/completed", nil)
	droppedCounter   = metrics.GetOrRegisterCounter("sim/events/dropped", nil)
)

// HookFunc runs before each executed event, in registration order.
type HookFunc func(*Event)

// Simulation owns the virtual clock and the event queue. It is strictly
// single-threaded: actions run to completion and the clock only advances
// between them. ForceStop is the one member safe to touch from another
// goroutine (the interrupt handler).
type Simulation struct {
	clock     float64
	queue     eventQueue
	hooks     []HookFunc
	stopSim   bool
	forceStop int32

	nextSeq uint64
	rnd     *rand.Rand
}

func NewSimulation(seed int64) *Simulation {
	return &Simulation{
		queue: make(eventQueue, 0, 1024),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Clock returns the current virtual time in milliseconds.
func (s *Simulation) Clock() float64 {
	return s.clock
}

// Rand is the single random source of the run. All randomness must come from
// here so a seed reproduces the schedule exactly.
func (s *Simulation) Rand() *rand.Rand {
	return s.rnd
}

// Exponential draws from an exponential distribution with the given mean.
func (s *Simulation) Exponential(mean float64) float64 {
	return s.rnd.ExpFloat64() * mean
}

// QueueLen reports pending events, cancelled ones included.
func (s *Simulation) QueueLen() int {
	return s.queue.Len()
}

// Enqueue admits an event. After a soft stop only block deliveries are let
// through; everything else is dropped so in-flight gossip can drain.
func (s *Simulation) Enqueue(e *Event) {
	if s.stopSim && e.Type != BlockReceive {
		droppedCounter.Inc(1)
		logger.Debug("Dropped event after soft stop", "event", e)
		return
	}
	s.push(e)
}

func (s *Simulation) push(e *Event) {
	e.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, e)
	scheduledCounter.Inc(1)
}

// RegisterHook adds a pre-execution hook. Hooks fire in registration order.
func (s *Simulation) RegisterHook(fn HookFunc) {
	s.hooks = append(s.hooks, fn)
}

// SoftStop stops admitting new events except block deliveries.
func (s *Simulation) SoftStop() {
	s.stopSim = true
}

func (s *Simulation) SoftStopped() bool {
	return s.stopSim
}

// ForceStop aborts the run loop at the next event boundary.
func (s *Simulation) ForceStop() {
	atomic.StoreInt32(&s.forceStop, 1)
}

func (s *Simulation) forceStopped() bool {
	return atomic.LoadInt32(&s.forceStop) == 1
}

// Run executes events in (time, insertion) order until the queue is empty or
// a force stop. Action panics/errors are not caught here; a broken action
// aborts the run.
func (s *Simulation) Run() {
	for s.queue.Len() > 0 && !s.forceStopped() {
		e := heap.Pop(&s.queue).(*Event)
		if e.Cancelled() {
			continue
		}
		s.clock = e.ActionableAt()
		for _, hook := range s.hooks {
			hook(e)
		}
		if s.forceStopped() {
			return
		}
		logger.Debug("Running event", "event", e, "meta", e.Meta)
		e.Action(e.Payload)
		completedCounter.Inc(1)
	}
}

// eventQueue is a min-heap on (actionable time, insertion sequence). The
// sequence tiebreak keeps same-instant events FIFO for deterministic replay.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	ti, tj := q[i].ActionableAt(), q[j].ActionableAt()
	if ti != tj {
		return ti < tj
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) {
	*q = append(*q, x.(*Event))
}

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
