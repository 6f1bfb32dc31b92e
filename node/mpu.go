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

import "github.com/powsim/powsim/networks"

// MPURecord quantifies how much of a peer's mining work landed on the
// canonical public chain.
type MPURecord struct {
	PeerID     string  `json:"peerId"`
	Type       string  `json:"type"`
	MPUAdv     float64 `json:"mpuAdv"`
	MPUOverall float64 `json:"mpuOverall"`

	BlocksOnPublicChainByPeer int `json:"blocksOnPublicChainByPeer"`
	PublicChainLength         int `json:"publicChainLength"`
	BlocksMinedByPeer         int `json:"blocksMinedByPeer"`
	TotalBlocks               int `json:"totalBlocks"`
}

// CalculateMPURatios computes the per-peer mining power utilization from each
// peer's own replica.
func CalculateMPURatios(peers []*networks.Peer) []*MPURecord {
	records := make([]*MPURecord, 0, len(peers))
	for _, peer := range peers {
		records = append(records, calculateMPU(peer))
	}
	return records
}

func calculateMPU(peer *networks.Peer) *MPURecord {
	chain := peer.Chain()
	longest := chain.GetLongestChain()
	all := chain.GetBlocks()

	rec := &MPURecord{
		PeerID:            peer.ID(),
		Type:              peer.Type(),
		PublicChainLength: len(longest),
		TotalBlocks:       len(all),
	}
	for _, b := range longest {
		if b.Miner() == peer.ID() {
			rec.BlocksOnPublicChainByPeer++
		}
	}
	for _, b := range all {
		if b.Miner() == peer.ID() {
			rec.BlocksMinedByPeer++
		}
	}
	if rec.BlocksMinedByPeer > 0 {
		rec.MPUAdv = float64(rec.BlocksOnPublicChainByPeer) / float64(rec.BlocksMinedByPeer)
	}
	if rec.TotalBlocks > 0 {
		rec.MPUOverall = float64(rec.PublicChainLength) / float64(rec.TotalBlocks)
	}
	return rec
}
