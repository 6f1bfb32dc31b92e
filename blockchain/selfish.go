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
	"strconv"

	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

// Selfish-mining states. Values 0,1,2,... are the numeric lead states of the
// classical automaton; the 0' racing state gets its own sentinel so no
// fractional state value exists.
const stateZeroPrime = -1

func stateName(s int) string {
	if s == stateZeroPrime {
		return "0'"
	}
	return strconv.Itoa(s)
}

// SelfishBlockChain withholds self-mined blocks on a private branch and
// publishes them according to the selfish-mining automaton.
type SelfishBlockChain struct {
	*BlockChain

	secretLeaf   *types.Block
	secretBlocks []*types.Block
	miningParent *types.Block
	state        int
}

func NewSelfishBlockChain(sim *simulation.Simulation, cfg *params.SimConfig, peerID string, peers []string, cpuPower float64, broadcast BroadcastFunc) *SelfishBlockChain {
	sc := &SelfishBlockChain{BlockChain: newBlockChain(sim, cfg, peerID, peers, cpuPower, broadcast)}
	sc.policy = sc
	sc.secretLeaf = sc.longestLeaf
	sc.miningParent = sc.longestLeaf
	sc.generateBlock()
	return sc
}

// AddBlock admits a block and drives the automaton. Self-mined blocks extend
// the private branch; foreign blocks move the public tip when they win.
func (sc *SelfishBlockChain) AddBlock(b *types.Block) bool {
	if !sc.validateBlock(b) {
		return false
	}
	sc.addBlockInner(b)
	recovered := sc.recoverOrphans()
	if b.Miner() == sc.peerID {
		sc.secretLeaf = b
		sc.updateLead(b)
	} else if l := sc.branchLength(b); l > sc.longestLen {
		sc.longestLen = l
		sc.longestLeaf = b
		sc.updateLead(b)
	}
	for _, o := range recovered {
		if l := sc.branchLength(o); l > sc.longestLen {
			sc.longestLen = l
			sc.longestLeaf = o
			sc.updateLead(o)
		}
	}
	return true
}

func (sc *SelfishBlockChain) currentParent() *types.Block {
	return sc.miningParent
}

func (sc *SelfishBlockChain) generateBlock() {
	sc.mineStart(sc.generateCandidate(sc.miningParent, true))
}

// mineSuccess pushes the block onto the private branch and admits it locally
// so later private blocks validate against it. No broadcast happens here;
// only publishBlock reveals a withheld block.
func (sc *SelfishBlockChain) mineSuccess(b *types.Block) {
	sc.secretBlocks = append(sc.secretBlocks, b)
	sc.AddBlock(b)
	if sc.miningEvent == nil {
		sc.generateBlock()
	}
}

func (sc *SelfishBlockChain) mineFail() {
	if sc.miningEvent == nil {
		sc.generateBlock()
	}
}

// longestChain prefers the public branch on ties.
func (sc *SelfishBlockChain) longestChain() []*types.Block {
	public := sc.getChain(sc.longestLeaf)
	secret := sc.getChain(sc.secretLeaf)
	if len(public) >= len(secret) {
		return public
	}
	return secret
}

// rebase points the miner at a new parent, cancelling any in-flight mine.
func (sc *SelfishBlockChain) rebase(parent *types.Block) {
	if sc.miningParent == parent {
		return
	}
	sc.cancelMining()
	sc.miningParent = parent
	sc.generateBlock()
}

func (sc *SelfishBlockChain) popSecret() *types.Block {
	if len(sc.secretBlocks) == 0 {
		return nil
	}
	b := sc.secretBlocks[0]
	sc.secretBlocks = sc.secretBlocks[1:]
	return b
}

func (sc *SelfishBlockChain) publishAllSecret() {
	for _, b := range sc.secretBlocks {
		sc.publishBlock(b)
	}
	sc.secretBlocks = nil
}

// updateLead applies one automaton transition for the newly admitted block.
// The transition set is total: anything not matched falls into the default
// arm, which rebases on the private tip and renumbers the state to the lead.
func (sc *SelfishBlockChain) updateLead(newBlock *types.Block) {
	lead := sc.branchLength(sc.secretLeaf) - sc.branchLength(sc.longestLeaf)
	oldState := sc.state
	minedBySelf := newBlock.Miner() == sc.peerID

	switch {
	case lead < 0:
		// the public chain won the race; abandon the private branch
		for _, b := range sc.secretBlocks {
			sc.removeBlock(b)
		}
		sc.secretBlocks = nil
		sc.secretLeaf = sc.longestLeaf
		sc.rebase(sc.secretLeaf)
		sc.state = 0

	case sc.state == stateZeroPrime:
		if minedBySelf {
			if b := sc.popSecret(); b != nil {
				sc.publishBlock(b)
				sc.rebase(b)
			}
		} else {
			sc.rebase(newBlock)
		}
		sc.state = 0

	case sc.state == 0:
		sc.rebase(newBlock)
		if minedBySelf {
			sc.state = 1
		} else {
			sc.state = 0
		}

	case sc.state == 1 && lead == 0:
		// race: reveal the private block and fight for the next one
		sc.publishAllSecret()
		sc.state = stateZeroPrime
		sc.rebase(sc.secretLeaf)

	case sc.state == 2 && lead == 1:
		// one ahead after an honest find: publish both and take the win
		sc.publishAllSecret()
		sc.state = 0
		sc.rebase(sc.secretLeaf)

	case sc.state > 2:
		if minedBySelf {
			sc.state++
		} else {
			if b := sc.popSecret(); b != nil {
				sc.publishBlock(b)
			}
			sc.state--
		}
		sc.rebase(sc.secretLeaf)

	default:
		sc.rebase(sc.secretLeaf)
		sc.state = lead
	}

	logger.Debug("Selfish state change", "peer", sc.peerID,
		"from", stateName(oldState), "to", stateName(sc.state), "lead", lead)
}
