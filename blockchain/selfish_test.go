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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/simulation"
)

var selfishPeers = []string{"S01", "B", "C"}

// newTestSelfish builds an adversary replica with zero hash power so tests
// drive the mining transitions by hand.
func newTestSelfish() (*SelfishBlockChain, *[]*types.Block) {
	sim := simulation.NewSimulation(1)
	published := &[]*types.Block{}
	sc := NewSelfishBlockChain(sim, testConfig(), "S01", selfishPeers, 0, func(b *types.Block) {
		*published = append(*published, b)
	})
	return sc, published
}

func privateBlock(id string, parent *types.Block, ts float64) *types.Block {
	return types.NewBlock(id, parent.Hash(), nil, ts, "S01", true)
}

// selfMine mimics a successful mine of b: the block lands on the private
// branch and drives the automaton, exactly like the mine-success event.
func selfMine(sc *SelfishBlockChain, b *types.Block) {
	sc.mineSuccess(b)
}

func TestSelfishBootstrapState(t *testing.T) {
	sc, published := newTestSelfish()
	assert.Equal(t, 0, sc.state)
	assert.Equal(t, types.Genesis(), sc.secretLeaf)
	assert.Equal(t, types.Genesis(), sc.miningParent)
	assert.Empty(t, sc.secretBlocks)
	assert.Empty(t, *published)
}

func TestSelfMinedBlocksStayPrivate(t *testing.T) {
	sc, published := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	selfMine(sc, s1)

	assert.Equal(t, 1, sc.state)
	assert.Equal(t, s1, sc.secretLeaf)
	assert.Equal(t, []*types.Block{s1}, sc.secretBlocks)
	assert.True(t, s1.IsPrivate())
	assert.Empty(t, *published, "a withheld block is never broadcast")
	assert.Contains(t, sc.blocks, s1.Hash(), "but it is admitted locally")
	assert.Equal(t, s1, sc.miningParent, "mining continues on the private tip")
}

// The lead-2 race: the adversary holds two private blocks when the first
// honest block arrives, publishes both and wins.
func TestSelfishLeadTwoPublish(t *testing.T) {
	sc, published := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	s2 := privateBlock("S01-s2", s1, 2)
	selfMine(sc, s1)
	selfMine(sc, s2)
	require.Equal(t, 2, sc.state)
	require.Len(t, sc.secretBlocks, 2)

	h1 := block("H1", types.Genesis(), "B", 3)
	require.True(t, sc.AddBlock(h1))

	assert.Equal(t, []*types.Block{s1, s2}, *published)
	assert.False(t, s1.IsPrivate())
	assert.False(t, s2.IsPrivate())
	assert.Empty(t, sc.secretBlocks)
	assert.Equal(t, 0, sc.state)
	assert.Equal(t, s2, sc.miningParent)

	// both revealed blocks are on the canonical chain
	chain := sc.GetLongestChain()
	assert.Equal(t, []*types.Block{s2, s1, types.Genesis()}, chain)
}

// The lead-1 race: one private block against one honest block moves to 0'
// and reveals the private block to fight for the tip.
func TestSelfishZeroPrimeRace(t *testing.T) {
	sc, published := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	selfMine(sc, s1)

	h1 := block("H1", types.Genesis(), "B", 2)
	require.True(t, sc.AddBlock(h1))

	assert.Equal(t, stateZeroPrime, sc.state)
	assert.Equal(t, []*types.Block{s1}, *published)
	assert.Empty(t, sc.secretBlocks)
	assert.Equal(t, s1, sc.miningParent, "the adversary mines on its revealed block")
}

// Losing the 0' race: the honest branch extends first, the private branch is
// abandoned and the miner rebases onto the public tip.
func TestSelfishCatchUpFailure(t *testing.T) {
	sc, _ := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	selfMine(sc, s1)

	h1 := block("H1", types.Genesis(), "B", 2)
	require.True(t, sc.AddBlock(h1))
	require.Equal(t, stateZeroPrime, sc.state)

	h2 := block("H2", h1, "C", 3)
	require.True(t, sc.AddBlock(h2))

	assert.Equal(t, 0, sc.state)
	assert.Empty(t, sc.secretBlocks)
	assert.Equal(t, h2, sc.secretLeaf)
	assert.Equal(t, h2, sc.miningParent)
}

// The lead<0 arm with withheld blocks still in hand: they are removed from
// the replica entirely.
func TestSelfishDiscardsLosingSecretBranch(t *testing.T) {
	sc, published := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	selfMine(sc, s1)
	require.Contains(t, sc.blocks, s1.Hash())

	// the public chain jumps two ahead of the private branch
	h1 := block("H1", types.Genesis(), "B", 2)
	h2 := block("H2", h1, "C", 3)
	h3 := block("H3", h2, "B", 4)
	sc.addBlockInner(h1)
	sc.addBlockInner(h2)
	sc.addBlockInner(h3)
	sc.longestLeaf = h3
	sc.longestLen = 4
	sc.updateLead(h3)

	assert.Equal(t, 0, sc.state)
	assert.Empty(t, sc.secretBlocks)
	assert.NotContains(t, sc.blocks, s1.Hash(), "the losing private block is removed")
	assert.Equal(t, h3, sc.secretLeaf)
	assert.Equal(t, h3, sc.miningParent)
	assert.Empty(t, *published)
}

// From lead >= 3, an honest find releases exactly one withheld block.
func TestSelfishDribblesBlocksFromLongLead(t *testing.T) {
	sc, published := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	s2 := privateBlock("S01-s2", s1, 2)
	s3 := privateBlock("S01-s3", s2, 3)
	selfMine(sc, s1)
	selfMine(sc, s2)
	selfMine(sc, s3)
	require.Equal(t, 3, sc.state)

	h1 := block("H1", types.Genesis(), "B", 4)
	require.True(t, sc.AddBlock(h1))

	assert.Equal(t, 2, sc.state)
	assert.Equal(t, []*types.Block{s1}, *published)
	assert.Equal(t, []*types.Block{s2, s3}, sc.secretBlocks)
	assert.Equal(t, s3, sc.miningParent)
}

func TestSelfishLongestChainPrefersPublicOnTie(t *testing.T) {
	sc, _ := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	selfMine(sc, s1)

	h1 := block("H1", types.Genesis(), "B", 2)
	require.True(t, sc.AddBlock(h1))

	// after the 0' publish both branches are length 2; public wins the tie
	chain := sc.GetLongestChain()
	require.Len(t, chain, 2)
	assert.Equal(t, h1, chain[0])
}

func TestSelfishSecretSuffixInvariant(t *testing.T) {
	sc, _ := newTestSelfish()
	s1 := privateBlock("S01-s1", types.Genesis(), 1)
	s2 := privateBlock("S01-s2", s1, 2)
	selfMine(sc, s1)
	selfMine(sc, s2)

	// secret blocks form a contiguous suffix ending at the secret leaf
	require.Len(t, sc.secretBlocks, 2)
	assert.Equal(t, sc.secretLeaf, sc.secretBlocks[len(sc.secretBlocks)-1])
	assert.Equal(t, sc.secretBlocks[0].Hash(), sc.secretBlocks[1].ParentHash())
	base := sc.blocks[sc.secretBlocks[0].ParentHash()]
	require.NotNil(t, base)
	assert.False(t, base.IsPrivate())
}
