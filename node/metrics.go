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

package node

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/powsim/powsim/simulation"
)

var (
	clockGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "powsim_virtual_clock_ms",
		Help: "Current virtual clock of the simulation in milliseconds.",
	})
	queueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "powsim_event_queue_depth",
		Help: "Pending events in the scheduler queue.",
	})
	minedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "powsim_blocks_mined_total",
		Help: "Successful mine events so far.",
	})
)

func init() {
	prometheus.MustRegister(clockGauge, queueGauge, minedGauge)
}

func updateMetrics(sim *simulation.Simulation, minedBlocks int) {
	clockGauge.Set(sim.Clock())
	queueGauge.Set(float64(sim.QueueLen()))
	minedGauge.Set(float64(minedBlocks))
}
