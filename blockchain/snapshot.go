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

import "github.com/powsim/powsim/blockchain/types"

// BlockRecord is the serializable form of one admitted block.
type BlockRecord struct {
	ID           string               `json:"id"`
	Hash         string               `json:"hash"`
	ParentHash   string               `json:"parentHash"`
	ParentID     string               `json:"parentId,omitempty"`
	Miner        string               `json:"miner"`
	Timestamp    float64              `json:"timestamp"`
	IsPrivate    bool                 `json:"isPrivate"`
	ArrivalTime  float64              `json:"arrivalTime"`
	Transactions []*types.Transaction `json:"transactions"`
}

// ChainSnapshot is the end-of-run view of one replica.
type ChainSnapshot struct {
	PeerID             string         `json:"peerId"`
	CPUPower           float64        `json:"cpuPower"`
	Blocks             []*BlockRecord `json:"blocks"`
	LongestChainLength int            `json:"longestChainLength"`
	LongestChainLeaf   string         `json:"longestChainLeaf"`
	LongestChain       []string       `json:"longestChain"`
	OrphanCount        int            `json:"orphanCount"`
	PendingTxns        int            `json:"pendingTxns"`
}

// Snapshot captures the replica for the results export. Blocks appear in
// admission order; the longest chain is listed leaf first.
func (bc *BlockChain) Snapshot() *ChainSnapshot {
	snap := &ChainSnapshot{
		PeerID:             bc.peerID,
		CPUPower:           bc.cpuPower,
		LongestChainLength: bc.longestLen,
		OrphanCount:        len(bc.orphans),
		PendingTxns:        len(bc.pending),
	}
	for _, b := range bc.order {
		rec := &BlockRecord{
			ID:           b.ID(),
			Hash:         b.Hash().Hex(),
			ParentHash:   b.ParentHash().Hex(),
			Miner:        b.Miner(),
			Timestamp:    b.Timestamp(),
			IsPrivate:    b.IsPrivate(),
			ArrivalTime:  bc.arrival[b.Hash()],
			Transactions: b.Transactions(),
		}
		if parent, ok := bc.blocks[b.ParentHash()]; ok {
			rec.ParentID = parent.ID()
		}
		snap.Blocks = append(snap.Blocks, rec)
	}
	chain := bc.policy.longestChain()
	if len(chain) > 0 {
		snap.LongestChainLeaf = chain[0].ID()
	}
	for _, b := range chain {
		snap.LongestChain = append(snap.LongestChain, b.ID())
	}
	return snap
}
