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

package networks

import (
	"fmt"

	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/simulation"
)

const (
	minPropagationDelay = 10.0  // ms
	maxPropagationDelay = 500.0 // ms
	fastBandwidth       = 100.0 // Mbit/s, both endpoints on fast links
	slowBandwidth       = 5.0   // Mbit/s
	queueingKbits       = 96.0  // mean queueing backlog in kbit
	txnSizeKB           = 1
)

type directedKey struct {
	from    string
	isBlock bool
}

// Link models one undirected neighbor relation with two directional delivery
// functions. Latency is propagation + transmission + exponential queueing;
// deliveries on the same directed edge stay FIFO per message kind.
type Link struct {
	sim  *simulation.Simulation
	a, b *Peer

	propagation float64 // ms, fixed per edge
	bandwidth   float64 // Mbit/s

	lastArrival map[directedKey]float64
}

func NewLink(sim *simulation.Simulation, a, b *Peer) *Link {
	bandwidth := fastBandwidth
	if a.isSlowNetwork || b.isSlowNetwork {
		bandwidth = slowBandwidth
	}
	return &Link{
		sim:         sim,
		a:           a,
		b:           b,
		propagation: minPropagationDelay + sim.Rand().Float64()*(maxPropagationDelay-minPropagationDelay),
		bandwidth:   bandwidth,
		lastArrival: make(map[directedKey]float64),
	}
}

// PropagationDelay is the fixed one-way delay of this edge in ms.
func (l *Link) PropagationDelay() float64 { return l.propagation }

// Bandwidth is the edge capacity in Mbit/s.
func (l *Link) Bandwidth() float64 { return l.bandwidth }

// latency computes the one-way delay for a message of the given size in kB.
func (l *Link) latency(sizeKB int) float64 {
	transmission := float64(sizeKB) * 8 / l.bandwidth // kbit over kbit/ms
	queueing := l.sim.Exponential(queueingKbits / l.bandwidth)
	return l.propagation + transmission + queueing
}

// Deliver schedules the receive event at the target peer.
func (l *Link) Deliver(from, to *Peer, msg Message) {
	var (
		eventType simulation.EventType
		sizeKB    int
		key       directedKey
	)
	switch m := msg.(type) {
	case *types.Transaction:
		eventType = simulation.TxnReceive
		sizeKB = txnSizeKB
		key = directedKey{from: from.id, isBlock: false}
	case *types.Block:
		eventType = simulation.BlockReceive
		sizeKB = m.Size()
		key = directedKey{from: from.id, isBlock: true}
	default:
		logger.Error("Unknown message type on link", "from", from.id, "to", to.id)
		return
	}
	now := l.sim.Clock()
	arrival := now + l.latency(sizeKB)
	if last := l.lastArrival[key]; arrival < last {
		arrival = last
	}
	l.lastArrival[key] = arrival
	l.sim.Enqueue(&simulation.Event{
		Type:      eventType,
		CreatedAt: now,
		Delay:     arrival - now,
		Action: func(payload interface{}) {
			to.ReceiveMsg(payload.(Message), from)
		},
		Payload: msg,
		Owner:   fmt.Sprintf("%s->%s", from.id, to.id),
	})
}
