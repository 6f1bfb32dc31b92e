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
	"math"

	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

const (
	minNeighbours = 4
	maxNeighbours = 6
)

// Adversary identities. S01 and S02 run the selfish policy with hash powers
// Z1 and Z2.
const (
	AdversaryOne = "S01"
	AdversaryTwo = "S02"
)

// CreateNetwork builds a random connected overlay of n peers: n-2 honest
// with uniform hash power and the two adversaries. A disconnected draw is
// thrown away and regenerated from scratch.
func CreateNetwork(sim *simulation.Simulation, cfg *params.SimConfig) []*Peer {
	for attempt := 1; ; attempt++ {
		peers := buildOverlay(sim, cfg)
		if IsConnected(peers) {
			logger.Info("Network created", "peers", len(peers), "attempt", attempt)
			initBlockChains(peers)
			return peers
		}
		logger.Warn("Overlay not connected, regenerating", "attempt", attempt)
	}
}

func buildOverlay(sim *simulation.Simulation, cfg *params.SimConfig) []*Peer {
	n := cfg.NumberOfPeers
	rnd := sim.Rand()

	slow := make([]bool, n)
	for _, i := range rnd.Perm(n)[:int(math.Round(float64(n)*cfg.Z0))] {
		slow[i] = true
	}

	honestPower := (1 - cfg.Z1 - cfg.Z2) / float64(n-2)
	peers := make([]*Peer, 0, n)
	for i := 0; i < n-2; i++ {
		peers = append(peers, NewHonestPeer(sim, cfg, fmt.Sprintf("P%02d", i), slow[i], honestPower))
	}
	peers = append(peers, NewSelfishPeer(sim, cfg, AdversaryOne, false, cfg.Z1))
	peers = append(peers, NewSelfishPeer(sim, cfg, AdversaryTwo, false, cfg.Z2))

	rnd.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})

	for _, peer := range peers {
		numNeighbours := minNeighbours + rnd.Intn(maxNeighbours-minNeighbours+1)
		if numNeighbours > n {
			numNeighbours = n
		}
		for _, idx := range rnd.Perm(n)[:numNeighbours] {
			neighbour := peers[idx]
			if neighbour == peer || peer.ConnectedTo(neighbour) {
				continue
			}
			link := NewLink(sim, peer, neighbour)
			peer.Connect(neighbour, link)
			neighbour.Connect(peer, link)
		}
	}
	return peers
}

// initBlockChains runs once the overlay is accepted. Selfish replicas begin
// mining on genesis as soon as they exist.
func initBlockChains(peers []*Peer) {
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID()
	}
	for _, p := range peers {
		p.InitBlockChain(ids)
	}
}

// IsConnected checks overlay connectivity by BFS from the first peer.
func IsConnected(peers []*Peer) bool {
	if len(peers) == 0 {
		return false
	}
	visited := map[string]bool{peers[0].ID(): true}
	queue := []*Peer{peers[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, neighbour := range cur.ConnectedPeers() {
			if !visited[neighbour.ID()] {
				visited[neighbour.ID()] = true
				queue = append(queue, neighbour)
			}
		}
	}
	return len(visited) == len(peers)
}
