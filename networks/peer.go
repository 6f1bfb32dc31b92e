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

	"gopkg.in/fatih/set.v0"

	"github.com/powsim/powsim/blockchain"
	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/log"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

var logger = log.NewModuleLogger(log.Networks)

// Message is a gossiped value: *types.Transaction or *types.Block.
type Message interface{}

func messageKey(msg Message) string {
	switch m := msg.(type) {
	case *types.Transaction:
		return "t:" + m.ID
	case *types.Block:
		return "b:" + m.Hash().Hex()
	default:
		return fmt.Sprintf("?:%v", m)
	}
}

type neighbourEntry struct {
	peer *Peer
	link *Link
}

// Peer wires a chain replica into the overlay. It forwards gossip with
// duplicate suppression; a selfish peer relays no block but its own.
type Peer struct {
	id            string
	cpuPower      float64
	isSlowNetwork bool
	isSlowCPU     bool
	selfish       bool
	coins         float64

	sim *simulation.Simulation
	cfg *params.SimConfig

	neighbours []neighbourEntry
	chain      blockchain.Chain
	forwarded  *set.Set

	txnSeq int
}

// NewHonestPeer creates a peer running the longest-chain policy.
func NewHonestPeer(sim *simulation.Simulation, cfg *params.SimConfig, id string, isSlowNetwork bool, cpuPower float64) *Peer {
	return &Peer{
		id:            id,
		cpuPower:      cpuPower,
		isSlowNetwork: isSlowNetwork,
		isSlowCPU:     true,
		coins:         cfg.InitialCoins,
		sim:           sim,
		cfg:           cfg,
		forwarded:     set.New(),
	}
}

// NewSelfishPeer creates an adversary peer running the private-chain policy.
func NewSelfishPeer(sim *simulation.Simulation, cfg *params.SimConfig, id string, isSlowNetwork bool, cpuPower float64) *Peer {
	p := NewHonestPeer(sim, cfg, id, isSlowNetwork, cpuPower)
	p.isSlowCPU = false
	p.selfish = true
	return p
}

// InitBlockChain attaches the replica. Called once the full peer list is
// known; a selfish replica starts mining on genesis right here.
func (p *Peer) InitBlockChain(peerIDs []string) {
	if p.selfish {
		p.chain = blockchain.NewSelfishBlockChain(p.sim, p.cfg, p.id, peerIDs, p.cpuPower, p.BroadcastBlock)
	} else {
		p.chain = blockchain.NewHonestBlockChain(p.sim, p.cfg, p.id, peerIDs, p.cpuPower, p.BroadcastBlock)
	}
}

func (p *Peer) ID() string              { return p.id }
func (p *Peer) CPUPower() float64       { return p.cpuPower }
func (p *Peer) IsSlowNetwork() bool     { return p.isSlowNetwork }
func (p *Peer) IsSelfish() bool         { return p.selfish }
func (p *Peer) Chain() blockchain.Chain { return p.chain }
func (p *Peer) Coins() float64          { return p.coins }

// Type is the role label used in the results export.
func (p *Peer) Type() string {
	if p.selfish {
		return "SelfishPeer"
	}
	return "HonestPeer"
}

// CPUNetDescription summarizes the peer's resources for the export.
func (p *Peer) CPUNetDescription() string {
	cpu, net := "fast", "fast"
	if p.isSlowCPU {
		cpu = "slow"
	}
	if p.isSlowNetwork {
		net = "slow"
	}
	return fmt.Sprintf("CPU: %s (%.2f)%%, Net: %s", cpu, p.cpuPower*100, net)
}

// Connect installs one direction of a bidirectional link.
func (p *Peer) Connect(peer *Peer, link *Link) {
	p.neighbours = append(p.neighbours, neighbourEntry{peer: peer, link: link})
}

func (p *Peer) ConnectedTo(peer *Peer) bool {
	for _, n := range p.neighbours {
		if n.peer == peer {
			return true
		}
	}
	return false
}

func (p *Peer) ConnectedPeers() []*Peer {
	peers := make([]*Peer, 0, len(p.neighbours))
	for _, n := range p.neighbours {
		peers = append(peers, n.peer)
	}
	return peers
}

// Neighbours exposes the neighbor links for the export.
func (p *Peer) Neighbours() map[string]*Link {
	links := make(map[string]*Link, len(p.neighbours))
	for _, n := range p.neighbours {
		links[n.peer.id] = n.link
	}
	return links
}

// GenerateRandomTxn creates a transaction to a random neighbor and gossips
// it. The amount is drawn uniformly from the remaining balance.
func (p *Peer) GenerateRandomTxn(timestamp float64) {
	if len(p.neighbours) == 0 {
		return
	}
	to := p.neighbours[p.sim.Rand().Intn(len(p.neighbours))].peer
	amount := p.sim.Rand().Float64() * p.coins
	p.coins -= amount
	p.txnSeq++
	txn := types.NewTransaction(fmt.Sprintf("%s-t%05d", p.id, p.txnSeq), p.id, to.id, amount, timestamp)
	p.chain.AddTransaction(txn)
	p.BroadcastMsg(txn)
}

// ReceiveMsg handles a delivery: dispatch to the replica, then forward to
// every neighbor but the source. Already-forwarded messages are dropped.
func (p *Peer) ReceiveMsg(msg Message, source *Peer) {
	if p.forwarded.Has(messageKey(msg)) {
		return
	}
	switch m := msg.(type) {
	case *types.Transaction:
		p.chain.AddTransaction(m)
	case *types.Block:
		p.chain.AddBlock(m)
	}
	p.forwardMsg(msg, source)
}

// BroadcastMsg gossips a message to every neighbor.
func (p *Peer) BroadcastMsg(msg Message) {
	p.forwardMsg(msg, nil)
}

// BroadcastBlock is the replica's broadcast hook.
func (p *Peer) BroadcastBlock(b *types.Block) {
	p.BroadcastMsg(b)
}

// FlushBlocks publishes the replica's locally-held blocks.
func (p *Peer) FlushBlocks() {
	p.chain.FlushBlocks()
}

func (p *Peer) forwardMsg(msg Message, except *Peer) {
	key := messageKey(msg)
	if p.forwarded.Has(key) {
		return
	}
	p.forwarded.Add(key)
	// an adversary never helps honest blocks propagate
	if b, ok := msg.(*types.Block); ok && p.selfish && b.Miner() != p.id {
		return
	}
	for _, n := range p.neighbours {
		if n.peer == except {
			continue
		}
		n.link.Deliver(p, n.peer, msg)
	}
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s(id=%s)", p.Type(), p.id)
}
