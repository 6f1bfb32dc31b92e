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
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

var testPeers = []string{"A", "B", "C"}

func testConfig() *params.SimConfig {
	cfg := params.DefaultSimConfig()
	cfg.InitialCoins = 100
	cfg.AvgBlockMiningTime = 10
	cfg.MiningReward = 50
	return cfg
}

func newTestHonest(cpuPower float64) (*HonestBlockChain, *simulation.Simulation, *[]*types.Block) {
	sim := simulation.NewSimulation(1)
	published := &[]*types.Block{}
	hc := NewHonestBlockChain(sim, testConfig(), "A", testPeers, cpuPower, func(b *types.Block) {
		*published = append(*published, b)
	})
	return hc, sim, published
}

func block(id string, parent *types.Block, miner string, ts float64, txs ...*types.Transaction) *types.Block {
	return types.NewBlock(id, parent.Hash(), txs, ts, miner, false)
}

func TestGenesisBranchWalks(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	g := types.Genesis()

	assert.Equal(t, 1, hc.branchLength(g))
	balances := hc.branchBalance(g)
	require.Len(t, balances, len(testPeers))
	for _, p := range testPeers {
		assert.Equal(t, 100.0, balances[p])
	}
	assert.Empty(t, hc.branchTransactions(g))
}

func TestBranchBalanceFollowsTransfers(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	tx := types.NewTransaction("t1", "A", "B", 30, 1)
	b1 := block("X1", types.Genesis(), "B", 1, tx)
	require.True(t, hc.AddBlock(b1))

	balances := hc.branchBalance(b1)
	assert.Equal(t, 70.0, balances["A"])
	assert.Equal(t, 130.0, balances["B"])
	assert.Equal(t, 100.0, balances["C"])

	// memoized result must not be aliased by callers
	balances["A"] = 0
	assert.Equal(t, 70.0, hc.branchBalance(b1)["A"])
}

func TestAddBlockUpdatesTip(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	b1 := block("X1", types.Genesis(), "B", 1)
	require.True(t, hc.AddBlock(b1))
	assert.Equal(t, 2, hc.longestLen)
	assert.Equal(t, b1, hc.longestLeaf)
	assert.Equal(t, []*types.Block{b1, types.Genesis()}, hc.GetLongestChain())
}

func TestDuplicateAdmissionIsNoOp(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	b1 := block("X1", types.Genesis(), "B", 1)
	require.True(t, hc.AddBlock(b1))

	blocks := len(hc.order)
	arrival := hc.arrival[b1.Hash()]
	pending := len(hc.pending)

	assert.False(t, hc.AddBlock(b1))
	assert.Equal(t, blocks, len(hc.order))
	assert.Equal(t, arrival, hc.arrival[b1.Hash()])
	assert.Equal(t, pending, len(hc.pending))
}

func TestOrphanBufferedAndRecovered(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	b1 := block("X1", types.Genesis(), "B", 1)
	b2 := block("X2", b1, "C", 2)

	// out of order: the child first
	assert.False(t, hc.AddBlock(b2))
	assert.Equal(t, 1, hc.OrphanCount())
	assert.False(t, hc.AddBlock(b2), "orphan buffer dedupes")
	assert.Equal(t, 1, hc.OrphanCount())

	// the parent arrives; the child is admitted in the same turn
	require.True(t, hc.AddBlock(b1))
	assert.Equal(t, 0, hc.OrphanCount())
	assert.Contains(t, hc.blocks, b2.Hash())
	assert.Equal(t, 3, hc.longestLen)
	assert.Equal(t, b2, hc.longestLeaf)
}

func TestOrphanRecoveryIsFixedPoint(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	b1 := block("X1", types.Genesis(), "B", 1)
	b2 := block("X2", b1, "C", 2)
	assert.False(t, hc.AddBlock(b2))
	require.True(t, hc.AddBlock(b1))

	blocks := len(hc.order)
	assert.Empty(t, hc.recoverOrphans())
	assert.Empty(t, hc.recoverOrphans())
	assert.Equal(t, blocks, len(hc.order))
}

func TestDoubleSpendBlockRejected(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	t1 := types.NewTransaction("t1", "A", "B", 60, 1)
	t2 := types.NewTransaction("t2", "A", "C", 60, 2)

	bad := block("X1", types.Genesis(), "B", 3, t1, t2)
	assert.False(t, hc.AddBlock(bad), "cumulative spend exceeds balance")
	assert.NotContains(t, hc.blocks, bad.Hash())

	good := block("X2", types.Genesis(), "B", 3, t1)
	assert.True(t, hc.AddBlock(good), "the valid prefix alone is acceptable")
}

func TestRepeatedTransactionRejected(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	t1 := types.NewTransaction("t1", "A", "B", 10, 1)
	b1 := block("X1", types.Genesis(), "B", 1, t1)
	require.True(t, hc.AddBlock(b1))

	b2 := block("X2", b1, "C", 2, t1)
	assert.False(t, hc.AddBlock(b2), "transaction already on the branch")

	// the same transaction on a sibling branch is fine
	b3 := block("X3", types.Genesis(), "C", 2, t1)
	assert.True(t, hc.AddBlock(b3))
}

func TestAdmissionPrunesPendingPool(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	t1 := types.NewTransaction("t1", "A", "B", 10, 1)
	t2 := types.NewTransaction("t2", "B", "C", 10, 2)
	hc.AddTransaction(t1)
	hc.AddTransaction(t2)

	b1 := block("X1", types.Genesis(), "B", 1, t1)
	require.True(t, hc.AddBlock(b1))
	require.Len(t, hc.pending, 1)
	assert.Equal(t, "t2", hc.pending[0].ID)
}

func TestPanicValidationAdoptsRecoveredTip(t *testing.T) {
	hc, _, _ := newTestHonest(0)
	b1 := block("X1", types.Genesis(), "B", 1)
	b2 := block("X2", b1, "C", 2)
	b3 := block("X3", b2, "B", 3)

	assert.False(t, hc.AddBlock(b3))
	assert.False(t, hc.AddBlock(b2))
	assert.Equal(t, 2, hc.OrphanCount())

	// admit the base without policy involvement, then sweep
	hc.addBlockInner(b1)
	hc.PanicValidateOrphans()

	assert.Contains(t, hc.blocks, b2.Hash())
	assert.Contains(t, hc.blocks, b3.Hash())
	assert.Equal(t, 4, hc.longestLen)
	assert.Equal(t, b3, hc.longestLeaf)
}

func TestMiningLifecycle(t *testing.T) {
	hc, sim, published := newTestHonest(1)
	hc.AddTransaction(types.NewTransaction("t1", "B", "C", 10, 0))

	sim.RegisterHook(func(e *simulation.Event) {
		if e.Type == simulation.BlockMineSuccess {
			sim.SoftStop()
		}
	})
	hc.GenerateBlock()
	require.NotNil(t, hc.miningEvent)
	sim.Run()

	require.Len(t, *published, 1)
	mined := (*published)[0]
	assert.Equal(t, "A", mined.Miner())
	assert.Equal(t, 2, hc.longestLen)
	assert.Equal(t, mined, hc.longestLeaf)

	// the included transaction left the pool, the coinbase closes the block
	assert.Empty(t, hc.pending)
	txs := mined.Transactions()
	require.Len(t, txs, 2)
	assert.False(t, txs[0].IsCoinbase())
	assert.True(t, txs[1].IsCoinbase())
	assert.Equal(t, "A", txs[1].To)
}

func TestEmptyPoolMinesCoinbaseOnly(t *testing.T) {
	hc, sim, published := newTestHonest(1)
	sim.RegisterHook(func(e *simulation.Event) {
		if e.Type == simulation.BlockMineSuccess {
			sim.SoftStop()
		}
	})
	hc.GenerateBlock()
	sim.Run()

	require.Len(t, *published, 1)
	txs := (*published)[0].Transactions()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsCoinbase())
}

func TestZeroCPUPowerNeverMines(t *testing.T) {
	hc, sim, published := newTestHonest(0)
	hc.GenerateBlock()
	assert.Nil(t, hc.miningEvent)
	assert.Equal(t, 0, sim.QueueLen())
	sim.Run()
	assert.Empty(t, *published)
}

func TestCancelMining(t *testing.T) {
	hc, sim, published := newTestHonest(1)
	hc.GenerateBlock()
	require.NotNil(t, hc.miningEvent)
	hc.cancelMining()
	assert.Nil(t, hc.miningEvent)
	sim.Run()
	assert.Empty(t, *published, "cancelled mine never finishes")
}

func TestStaleParentMineFails(t *testing.T) {
	hc, sim, published := newTestHonest(1)
	hc.GenerateBlock()

	// a competing block moves the tip before the mine finishes; AddBlock
	// cancels the stale mine and starts a fresh one on the new tip
	b1 := block("X1", types.Genesis(), "B", 0)
	require.True(t, hc.AddBlock(b1))
	require.NotNil(t, hc.miningEvent)

	sim.RegisterHook(func(e *simulation.Event) {
		if e.Type == simulation.BlockMineSuccess {
			sim.SoftStop()
		}
	})
	sim.Run()
	require.Len(t, *published, 1)
	assert.Equal(t, b1.Hash(), (*published)[0].ParentHash())
}
