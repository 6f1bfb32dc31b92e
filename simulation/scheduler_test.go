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
	"testing"

	"github.com/stretchr/testify/assert"
)

func newEvent(t EventType, at float64, fn func()) *Event {
	return &Event{
		Type:      t,
		CreatedAt: at,
		Action: func(interface{}) {
			if fn != nil {
				fn()
			}
		},
	}
}

func TestRunOrdersByActionableTime(t *testing.T) {
	sim := NewSimulation(1)
	var order []int
	sim.Enqueue(newEvent(TxnCreate, 30, func() { order = append(order, 3) }))
	sim.Enqueue(newEvent(TxnCreate, 10, func() { order = append(order, 1) }))
	sim.Enqueue(newEvent(TxnCreate, 20, func() { order = append(order, 2) }))
	sim.Run()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 30.0, sim.Clock())
}

func TestRunTiesAreFIFO(t *testing.T) {
	sim := NewSimulation(1)
	var order []int
	for i := 0; i < 10; i++ {
		n := i
		sim.Enqueue(newEvent(TxnCreate, 5, func() { order = append(order, n) }))
	}
	sim.Run()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestClockMonotone(t *testing.T) {
	sim := NewSimulation(1)
	last := -1.0
	hookOK := true
	sim.RegisterHook(func(e *Event) {
		if e.ActionableAt() < last {
			hookOK = false
		}
		last = e.ActionableAt()
	})
	// events scheduling further events, interleaved times
	var schedule func(depth int)
	schedule = func(depth int) {
		if depth == 0 {
			return
		}
		sim.Enqueue(&Event{
			Type:      TxnCreate,
			CreatedAt: sim.Clock(),
			Delay:     sim.Exponential(10),
			Action:    func(interface{}) { schedule(depth - 1) },
		})
	}
	schedule(5)
	schedule(5)
	sim.Run()
	assert.True(t, hookOK, "clock went backwards")
}

func TestCancelledEventIsSkipped(t *testing.T) {
	sim := NewSimulation(1)
	ran := false
	e := newEvent(BlockMineFinish, 10, func() { ran = true })
	sim.Enqueue(e)
	e.Cancel()
	e.Cancel() // idempotent
	sim.Run()
	assert.False(t, ran)
	assert.True(t, e.Cancelled())
}

func TestHooksFireInRegistrationOrder(t *testing.T) {
	sim := NewSimulation(1)
	var order []string
	sim.RegisterHook(func(*Event) { order = append(order, "a") })
	sim.RegisterHook(func(*Event) { order = append(order, "b") })
	sim.Enqueue(newEvent(TxnCreate, 1, func() { order = append(order, "action") }))
	sim.Run()
	assert.Equal(t, []string{"a", "b", "action"}, order)
}

func TestSoftStopAdmitsOnlyBlockReceive(t *testing.T) {
	sim := NewSimulation(1)
	sim.SoftStop()
	received := false
	sim.Enqueue(newEvent(TxnCreate, 1, nil))
	sim.Enqueue(newEvent(BlockMineSuccess, 1, nil))
	sim.Enqueue(newEvent(BlockReceive, 1, func() { received = true }))
	assert.Equal(t, 1, sim.QueueLen())
	sim.Run()
	assert.True(t, received)
}

func TestForceStopAbortsRun(t *testing.T) {
	sim := NewSimulation(1)
	count := 0
	sim.Enqueue(newEvent(TxnCreate, 1, func() { count++; sim.ForceStop() }))
	sim.Enqueue(newEvent(TxnCreate, 2, func() { count++ }))
	sim.Run()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, sim.QueueLen())
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []float64 {
		sim := NewSimulation(7)
		var times []float64
		for i := 0; i < 20; i++ {
			sim.Enqueue(&Event{
				Type:      TxnCreate,
				CreatedAt: 0,
				Delay:     sim.Exponential(100),
				Action:    func(interface{}) { times = append(times, sim.Clock()) },
			})
		}
		sim.Run()
		return times
	}
	assert.Equal(t, run(), run())
}
