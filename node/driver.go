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
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/datasync/exporter"
	"github.com/powsim/powsim/log"
	"github.com/powsim/powsim/networks"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

var logger = log.NewModuleLogger(log.NodeMain)

const statusLogInterval = 5000 // events between status lines

// Driver owns one full simulation run: the scheduler, the overlay, the
// workload and the end-of-run accounting.
type Driver struct {
	cfg   *params.SimConfig
	sim   *simulation.Simulation
	peers []*networks.Peer

	publisher exporter.Publisher
	runID     string

	eventsRun        int
	txnsCreated      int
	successfulBlocks int
}

func New(cfg *params.SimConfig) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	runID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}
	sim := simulation.NewSimulation(cfg.RandomSeed)
	d := &Driver{
		cfg:   cfg,
		sim:   sim,
		peers: networks.CreateNetwork(sim, cfg),
		runID: runID,
	}
	if len(cfg.KafkaBrokers) > 0 {
		d.publisher, err = exporter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
	}
	d.sim.RegisterHook(d.statusHook)
	d.sim.RegisterHook(d.stopConditionHook)
	if d.publisher != nil {
		d.sim.RegisterHook(d.exportHook)
	}
	return d, nil
}

// Sim exposes the scheduler, mainly so the interrupt handler can force-stop.
func (d *Driver) Sim() *simulation.Simulation { return d.sim }

func (d *Driver) Peers() []*networks.Peer { return d.peers }

// ForceStop aborts the run at the next event boundary. Safe to call from the
// signal goroutine.
func (d *Driver) ForceStop() {
	d.sim.ForceStop()
}

// ScheduleTransactions seeds the workload: transaction creation with
// exponential inter-arrival until the queue holds the configured count, plus
// a single bootstrap mining event at two thirds of the workload span.
func (d *Driver) ScheduleTransactions() {
	rnd := d.sim.Rand()
	t := 0.0
	for d.sim.QueueLen() < d.cfg.NumberOfTransaction {
		from := d.peers[rnd.Intn(len(d.peers))]
		timestamp := t
		d.sim.Enqueue(&simulation.Event{
			Type:      simulation.TxnCreate,
			CreatedAt: timestamp,
			Action: func(payload interface{}) {
				from.GenerateRandomTxn(payload.(float64))
			},
			Payload: timestamp,
			Owner:   from.ID(),
			Meta:    fmt.Sprintf("%s create_txn", from),
		})
		t += d.sim.Exponential(d.cfg.AvgTxnIntervalTime)
	}

	miner := d.peers[rnd.Intn(len(d.peers))]
	d.sim.Enqueue(&simulation.Event{
		Type:      simulation.BlockCreate,
		CreatedAt: t * 2 / 3,
		Action: func(interface{}) {
			miner.Chain().GenerateBlock()
		},
		Owner: miner.ID(),
		Meta:  fmt.Sprintf("%s create_block", miner),
	})
	logger.Info("Workload scheduled", "txns", d.sim.QueueLen()-1, "bootstrapMiner", miner.ID(), "bootstrapAt", t*2/3)
}

// Run executes the simulation to completion and produces the output
// artifacts. Even a force-stopped run still gets the panic validation sweep
// and the export.
func (d *Driver) Run() (*Results, error) {
	d.ScheduleTransactions()
	logger.Info("Simulation started", "peers", len(d.peers), "seed", d.cfg.RandomSeed)
	d.sim.Run()
	logger.Info("Simulation ended", "clock", d.sim.Clock(), "events", d.eventsRun)

	for _, p := range d.peers {
		p.Chain().PanicValidateOrphans()
	}

	results := d.CollectResults()
	if err := d.Export(results); err != nil {
		return results, err
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			logger.Error("Failed to close exporter", "err", err)
		}
	}
	return results, nil
}

// statusHook keeps a heartbeat in the log, replacing the reference
// implementation's progress bars.
func (d *Driver) statusHook(e *simulation.Event) {
	d.eventsRun++
	if e.Type == simulation.TxnCreate {
		d.txnsCreated++
	}
	updateMetrics(d.sim, d.successfulBlocks)
	if d.eventsRun%statusLogInterval == 0 {
		logger.Info("Simulation progress", "events", d.eventsRun, "clock", d.sim.Clock(),
			"txns", d.txnsCreated, "blocks", d.successfulBlocks, "queued", d.sim.QueueLen())
	}
}

// stopConditionHook counts successful mines and soft-stops the run once the
// threshold is crossed, after asking the adversaries to reveal their private
// chains.
func (d *Driver) stopConditionHook(e *simulation.Event) {
	if e.Type != simulation.BlockMineSuccess {
		return
	}
	d.successfulBlocks++
	if d.successfulBlocks <= d.cfg.MaxNumBlocks || d.sim.SoftStopped() {
		return
	}
	logger.Info("Block threshold reached, flushing secret chains", "blocks", d.successfulBlocks)
	for _, p := range d.peers {
		if p.IsSelfish() {
			p.FlushBlocks()
		}
	}
	d.sim.SoftStop()
}

// exportHook streams every block mine-success and block-receive event to the
// kafka publisher. It runs before the event's action, so a delivered block is
// published whether or not the receiving replica admits it.
func (d *Driver) exportHook(e *simulation.Event) {
	if e.Type != simulation.BlockMineSuccess && e.Type != simulation.BlockReceive {
		return
	}
	b, ok := e.Payload.(*types.Block)
	if !ok {
		return
	}
	event := &exporter.BlockEvent{
		Peer:       e.Owner,
		Event:      e.Type.String(),
		BlockID:    b.ID(),
		Hash:       b.Hash().Hex(),
		ParentHash: b.ParentHash().Hex(),
		Miner:      b.Miner(),
		Timestamp:  b.Timestamp(),
		Clock:      d.sim.Clock(),
		NumTxns:    len(b.Transactions()),
		IsPrivate:  b.IsPrivate(),
	}
	if err := d.publisher.Publish(event); err != nil {
		logger.Error("Failed to publish block event", "block", b, "err", err)
	}
}
