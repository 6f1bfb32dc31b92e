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

package blockchain

import (
	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

// HonestBlockChain always extends the longest public branch and publishes
// every block it mines.
type HonestBlockChain struct {
	*BlockChain
}

func NewHonestBlockChain(sim *simulation.Simulation, cfg *params.SimConfig, peerID string, peers []string, cpuPower float64, broadcast BroadcastFunc) *HonestBlockChain {
	hc := &HonestBlockChain{newBlockChain(sim, cfg, peerID, peers, cpuPower, broadcast)}
	hc.policy = hc
	return hc
}

// AddBlock validates and admits a block, then re-mines if the tip moved.
// Orphans recovered by the admission also count for tip selection.
func (hc *HonestBlockChain) AddBlock(b *types.Block) bool {
	if !hc.validateBlock(b) {
		return false
	}
	hc.addBlockInner(b)
	moved := hc.adoptIfLonger(b)
	for _, o := range hc.recoverOrphans() {
		if hc.adoptIfLonger(o) {
			moved = true
		}
	}
	if moved {
		logger.Debug("Longest chain extended, re-mining", "peer", hc.peerID, "length", hc.longestLen, "leaf", hc.longestLeaf)
		hc.cancelMining()
		hc.generateBlock()
	}
	return true
}

func (hc *HonestBlockChain) adoptIfLonger(b *types.Block) bool {
	if l := hc.branchLength(b); l > hc.longestLen {
		hc.longestLen = l
		hc.longestLeaf = b
		return true
	}
	return false
}

func (hc *HonestBlockChain) currentParent() *types.Block {
	return hc.longestLeaf
}

func (hc *HonestBlockChain) generateBlock() {
	hc.mineStart(hc.generateCandidate(hc.longestLeaf, false))
}

func (hc *HonestBlockChain) mineSuccess(b *types.Block) {
	hc.AddBlock(b)
	hc.publishBlock(b)
}

func (hc *HonestBlockChain) mineFail() {}

func (hc *HonestBlockChain) longestChain() []*types.Block {
	return hc.getChain(hc.longestLeaf)
}
