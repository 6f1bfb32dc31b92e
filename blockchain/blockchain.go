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
	"fmt"
	"sort"

	"github.com/rcrowley/go-metrics"

	"github.com/powsim/powsim/blockchain/types"
	"github.com/powsim/powsim/common"
	"github.com/powsim/powsim/log"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/simulation"
)

var logger = log.NewModuleLogger(log.BlockChain)

var (
	blocksAddedCounter   = metrics.GetOrRegisterCounter("chain/blocks/added", nil)
	blocksDroppedCounter = metrics.GetOrRegisterCounter("chain/blocks/dropped", nil)
	orphanBufferCounter  = metrics.GetOrRegisterCounter("chain/blocks/orphaned", nil)
	minedBlocksCounter   = metrics.GetOrRegisterCounter("chain/blocks/mined", nil)
)

const balanceCacheSize = 512

// BroadcastFunc hands a block to the owning peer for network-wide gossip.
type BroadcastFunc func(*types.Block)

// Chain is the replica surface consumed by the peer and the driver.
type Chain interface {
	PeerID() string
	CPUPower() float64
	AddTransaction(tx *types.Transaction)
	AddBlock(b *types.Block) bool
	GenerateBlock()
	FlushBlocks()
	GetLongestChain() []*types.Block
	GetBlocks() []*types.Block
	PanicValidateOrphans()
	OrphanCount() int
	Snapshot() *ChainSnapshot
}

// policy is the per-variant hook set the base dispatches into.
type policy interface {
	currentParent() *types.Block
	generateBlock()
	mineSuccess(b *types.Block)
	mineFail()
	longestChain() []*types.Block
}

// BlockChain is the policy-independent replica state: the block tree, the
// pending transaction pool, the orphan buffer and the mining lifecycle.
type BlockChain struct {
	sim    *simulation.Simulation
	cfg    *params.SimConfig
	peerID string
	peers  []string

	cpuPower  float64
	broadcast BroadcastFunc
	policy    policy

	blocks  map[common.Hash]*types.Block
	order   []*types.Block // insertion order, genesis first
	arrival map[common.Hash]float64
	pending []*types.Transaction
	orphans []*types.Block

	longestLeaf *types.Block
	longestLen  int

	miningEvent *simulation.Event
	mineSeq     int

	balanceCache common.Cache
}

func newBlockChain(sim *simulation.Simulation, cfg *params.SimConfig, peerID string, peers []string, cpuPower float64, broadcast BroadcastFunc) *BlockChain {
	cache, err := common.NewCache(common.LRUConfig{CacheSize: balanceCacheSize})
	if err != nil {
		logger.Crit("Failed to allocate balance cache", "err", err)
	}
	bc := &BlockChain{
		sim:          sim,
		cfg:          cfg,
		peerID:       peerID,
		peers:        append([]string(nil), peers...),
		cpuPower:     cpuPower,
		broadcast:    broadcast,
		blocks:       make(map[common.Hash]*types.Block),
		arrival:      make(map[common.Hash]float64),
		balanceCache: cache,
	}
	genesis := types.Genesis()
	bc.blocks[genesis.Hash()] = genesis
	bc.order = append(bc.order, genesis)
	bc.longestLeaf = genesis
	bc.longestLen = 1
	return bc
}

func (bc *BlockChain) PeerID() string    { return bc.peerID }
func (bc *BlockChain) CPUPower() float64 { return bc.cpuPower }

// AddTransaction admits a received transaction into the pending pool.
func (bc *BlockChain) AddTransaction(tx *types.Transaction) {
	bc.pending = append(bc.pending, tx)
}

func (bc *BlockChain) GetBlocks() []*types.Block {
	return bc.order
}

func (bc *BlockChain) GetLongestChain() []*types.Block {
	return bc.policy.longestChain()
}

func (bc *BlockChain) GenerateBlock() {
	bc.policy.generateBlock()
}

// FlushBlocks publishes every locally-held block, clearing privacy flags.
func (bc *BlockChain) FlushBlocks() {
	for _, b := range bc.order {
		bc.publishBlock(b)
	}
}

func (bc *BlockChain) OrphanCount() int {
	return len(bc.orphans)
}

// publishBlock flips the privacy flag and hands the block to the peer.
func (bc *BlockChain) publishBlock(b *types.Block) {
	b.SetPublic()
	bc.broadcast(b)
}

// branchLength counts blocks from b back to genesis, genesis included.
func (bc *BlockChain) branchLength(b *types.Block) int {
	n := 0
	for cur := b; cur != nil; cur = bc.blocks[cur.ParentHash()] {
		n++
		if cur.IsGenesis() {
			break
		}
	}
	return n
}

// getChain returns the branch from leaf down to genesis, leaf first.
func (bc *BlockChain) getChain(leaf *types.Block) []*types.Block {
	var chain []*types.Block
	for cur := leaf; cur != nil; cur = bc.blocks[cur.ParentHash()] {
		chain = append(chain, cur)
		if cur.IsGenesis() {
			break
		}
	}
	return chain
}

func (bc *BlockChain) genesisBalances() map[string]float64 {
	balances := make(map[string]float64, len(bc.peers))
	for _, p := range bc.peers {
		balances[p] = bc.cfg.InitialCoins
	}
	return balances
}

func copyBalances(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func applyTransactions(balances map[string]float64, txs []*types.Transaction) {
	for _, tx := range txs {
		if !tx.IsCoinbase() {
			balances[tx.From] -= tx.Amount
		}
		balances[tx.To] += tx.Amount
	}
}

// branchBalance folds every transaction from genesis up to b into a
// peer->coins map. Results are memoized per block; callers own the returned
// map.
func (bc *BlockChain) branchBalance(b *types.Block) map[string]float64 {
	if b.IsGenesis() {
		return bc.genesisBalances()
	}
	if cached, ok := bc.balanceCache.Get(b.Hash()); ok {
		return copyBalances(cached.(map[string]float64))
	}
	var path []*types.Block
	var base map[string]float64
	for cur := b; ; {
		if cur.IsGenesis() {
			base = bc.genesisBalances()
			break
		}
		if cached, ok := bc.balanceCache.Get(cur.Hash()); ok {
			base = copyBalances(cached.(map[string]float64))
			break
		}
		path = append(path, cur)
		parent := bc.blocks[cur.ParentHash()]
		if parent == nil {
			// unreachable for admitted blocks; validation guards parents
			return bc.genesisBalances()
		}
		cur = parent
	}
	for i := len(path) - 1; i >= 0; i-- {
		applyTransactions(base, path[i].Transactions())
		bc.balanceCache.Add(path[i].Hash(), copyBalances(base))
	}
	return base
}

// branchTransactions collects the identities of every transaction from
// genesis up to b.
func (bc *BlockChain) branchTransactions(b *types.Block) map[string]bool {
	seen := make(map[string]bool)
	for cur := b; cur != nil; cur = bc.blocks[cur.ParentHash()] {
		for _, tx := range cur.Transactions() {
			seen[tx.ID] = true
		}
		if cur.IsGenesis() {
			break
		}
	}
	return seen
}

// validateBlock checks a block against the branch it extends. Unknown-parent
// blocks go to the orphan buffer; every other failure drops the block.
func (bc *BlockChain) validateBlock(b *types.Block) bool {
	parent, ok := bc.blocks[b.ParentHash()]
	if !ok {
		bc.bufferOrphan(b)
		return false
	}
	if _, dup := bc.blocks[b.Hash()]; dup {
		logger.Debug("Block dropped, already in chain", "peer", bc.peerID, "block", b)
		blocksDroppedCounter.Inc(1)
		return false
	}
	running := bc.branchBalance(parent)
	ancestors := bc.branchTransactions(parent)
	inBlock := make(map[string]bool, len(b.Transactions()))
	for _, tx := range b.Transactions() {
		if !tx.IsCoinbase() && running[tx.From] < tx.Amount {
			logger.Debug("Block dropped, invalid transaction", "peer", bc.peerID, "block", b, "txn", tx)
			blocksDroppedCounter.Inc(1)
			return false
		}
		if ancestors[tx.ID] || inBlock[tx.ID] {
			logger.Debug("Block dropped, transaction already in chain", "peer", bc.peerID, "block", b, "txn", tx)
			blocksDroppedCounter.Inc(1)
			return false
		}
		inBlock[tx.ID] = true
		if !tx.IsCoinbase() {
			running[tx.From] -= tx.Amount
		}
		running[tx.To] += tx.Amount
	}
	return true
}

func (bc *BlockChain) bufferOrphan(b *types.Block) {
	h := b.Hash()
	for _, o := range bc.orphans {
		if o.Hash() == h {
			return
		}
	}
	logger.Debug("Block buffered, parent missing", "peer", bc.peerID, "block", b)
	orphanBufferCounter.Inc(1)
	bc.orphans = append(bc.orphans, b)
}

// addBlockInner admits b without policy involvement: prunes its transactions
// from the pending pool, stores it and stamps the arrival time.
func (bc *BlockChain) addBlockInner(b *types.Block) {
	for _, tx := range b.Transactions() {
		if tx.IsCoinbase() {
			continue
		}
		bc.removePending(tx.ID)
	}
	bc.blocks[b.Hash()] = b
	bc.order = append(bc.order, b)
	bc.arrival[b.Hash()] = bc.sim.Clock()
	blocksAddedCounter.Inc(1)
	logger.Debug("Block added", "peer", bc.peerID, "block", b)
}

func (bc *BlockChain) removePending(txID string) {
	for i, tx := range bc.pending {
		if tx.ID == txID {
			bc.pending = append(bc.pending[:i], bc.pending[i+1:]...)
			return
		}
	}
}

// removeBlock drops a withheld block that lost its branch. Its arrival-time
// entry stays in the map, but the snapshot lists only blocks still held, so
// it is not exported.
func (bc *BlockChain) removeBlock(b *types.Block) {
	h := b.Hash()
	delete(bc.blocks, h)
	bc.balanceCache.Remove(h)
	for i, blk := range bc.order {
		if blk.Hash() == h {
			bc.order = append(bc.order[:i], bc.order[i+1:]...)
			break
		}
	}
}

// recoverOrphans re-validates the orphan buffer until a pass admits nothing.
func (bc *BlockChain) recoverOrphans() []*types.Block {
	var admitted []*types.Block
	for {
		progress := false
		remaining := bc.orphans[:0]
		for _, o := range bc.orphans {
			if _, ok := bc.blocks[o.ParentHash()]; !ok {
				remaining = append(remaining, o)
				continue
			}
			if bc.validateBlock(o) {
				bc.addBlockInner(o)
				admitted = append(admitted, o)
				progress = true
			} else {
				// still invalid against its now-present parent; the panic
				// sweep gets a last try at it
				remaining = append(remaining, o)
			}
		}
		bc.orphans = remaining
		if !progress {
			return admitted
		}
	}
}

// PanicValidateOrphans is the shutdown sweep: orphans are retried in
// timestamp order and the tip is moved if a recovered branch wins.
func (bc *BlockChain) PanicValidateOrphans() {
	logger.Debug("Panic validating orphan blocks", "peer", bc.peerID, "orphans", len(bc.orphans))
	sorted := append([]*types.Block(nil), bc.orphans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp() < sorted[j].Timestamp()
	})
	for _, b := range sorted {
		if bc.validateBlock(b) {
			bc.addBlockInner(b)
			if l := bc.branchLength(b); l > bc.longestLen {
				bc.longestLen = l
				bc.longestLeaf = b
			}
		}
	}
}

// generateCandidate forms a block on top of parent from the balance-valid
// prefix of the pending pool, sorted by creation time.
func (bc *BlockChain) generateCandidate(parent *types.Block, private bool) *types.Block {
	sort.SliceStable(bc.pending, func(i, j int) bool {
		return bc.pending[i].Timestamp < bc.pending[j].Timestamp
	})
	running := bc.branchBalance(parent)
	var chosen []*types.Transaction
	for _, tx := range bc.pending {
		if running[tx.From] < tx.Amount {
			break
		}
		running[tx.From] -= tx.Amount
		running[tx.To] += tx.Amount
		chosen = append(chosen, tx)
	}
	bc.mineSeq++
	id := fmt.Sprintf("%s-b%03d", bc.peerID, bc.mineSeq)
	return types.NewBlock(id, parent.Hash(), chosen, bc.sim.Clock(), bc.peerID, private)
}

// mineStart schedules the mine-finish event for a candidate. The delay is
// exponential with mean AvgBlockMiningTime/cpuPower; a zero-power peer never
// mines.
func (bc *BlockChain) mineStart(candidate *types.Block) {
	if bc.cpuPower <= 0 {
		logger.Debug("Peer has no hash power, not mining", "peer", bc.peerID)
		return
	}
	bc.cancelMining()
	delay := bc.sim.Exponential(bc.cfg.AvgBlockMiningTime / bc.cpuPower)
	e := &simulation.Event{
		Type:      simulation.BlockMineFinish,
		CreatedAt: bc.sim.Clock(),
		Delay:     delay,
		Action: func(payload interface{}) {
			bc.mineFinish(payload.(*types.Block))
		},
		Payload: candidate,
		Owner:   bc.peerID,
		Meta:    fmt.Sprintf("mining finished %s", candidate),
	}
	bc.miningEvent = e
	bc.sim.Enqueue(e)
}

// mineFinish converts a finished mine into a success or a failure. The
// candidate only succeeds if the miner is still extending the same parent and
// the block still validates against it.
func (bc *BlockChain) mineFinish(candidate *types.Block) {
	bc.miningEvent = nil
	parent := bc.policy.currentParent()
	if parent != nil && candidate.ParentHash() == parent.Hash() && bc.validateBlock(candidate) {
		candidate.AppendCoinbase(types.NewCoinbaseTransaction(candidate.ID(), bc.peerID, candidate.Timestamp(), bc.cfg.MiningReward))
		minedBlocksCounter.Inc(1)
		logger.Debug("Mine success", "peer", bc.peerID, "block", candidate)
		bc.sim.Enqueue(&simulation.Event{
			Type:      simulation.BlockMineSuccess,
			CreatedAt: bc.sim.Clock(),
			Action: func(payload interface{}) {
				bc.policy.mineSuccess(payload.(*types.Block))
			},
			Payload: candidate,
			Owner:   bc.peerID,
			Meta:    fmt.Sprintf("%s mined %s", bc.peerID, candidate),
		})
		return
	}
	logger.Debug("Mine failed", "peer", bc.peerID, "block", candidate)
	bc.policy.mineFail()
}

// cancelMining cancels the pending mine-finish event, if any. Idempotent.
func (bc *BlockChain) cancelMining() {
	if bc.miningEvent != nil {
		bc.miningEvent.Cancel()
		bc.miningEvent = nil
	}
}
