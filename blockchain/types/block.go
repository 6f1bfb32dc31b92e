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

package types

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/powsim/powsim/common"
)

const (
	// GenesisBlockID is the reserved identity of the genesis block.
	GenesisBlockID = "gen_blk"
	// GenesisMiner is the miner sentinel of the genesis block.
	GenesisMiner = "none"
)

// Block is a node of the chain tree. Two blocks with identical contents and
// parent fingerprint are the same block. Apart from the coinbase appended at
// mine success, the privacy flag is the only mutable part; it only ever goes
// from true to false, when an adversary publishes.
type Block struct {
	id         string
	parentHash common.Hash
	txs        []*Transaction
	timestamp  float64
	miner      string
	isPrivate  bool

	hash   common.Hash
	hashed bool
}

func NewBlock(id string, parentHash common.Hash, txs []*Transaction, timestamp float64, miner string, isPrivate bool) *Block {
	return &Block{
		id:         id,
		parentHash: parentHash,
		txs:        txs,
		timestamp:  timestamp,
		miner:      miner,
		isPrivate:  isPrivate,
	}
}

func (b *Block) ID() string                   { return b.id }
func (b *Block) ParentHash() common.Hash      { return b.parentHash }
func (b *Block) Transactions() []*Transaction { return b.txs }
func (b *Block) Timestamp() float64           { return b.timestamp }
func (b *Block) Miner() string                { return b.miner }
func (b *Block) IsPrivate() bool              { return b.isPrivate }
func (b *Block) IsGenesis() bool              { return b.id == GenesisBlockID }

// SetPublic clears the privacy flag. The reverse transition does not exist.
func (b *Block) SetPublic() {
	b.isPrivate = false
}

// AppendCoinbase adds the miner reward after a successful mine. The
// fingerprint covers transaction identities, so the cached hash is reset.
func (b *Block) AppendCoinbase(tx *Transaction) {
	b.txs = append(b.txs, tx)
	b.hashed = false
}

// Hash is the structural fingerprint: a digest of the identity, the parent
// fingerprint, the timestamp and the transaction identities.
func (b *Block) Hash() common.Hash {
	if b.hashed {
		return b.hash
	}
	fields := [][]byte{
		[]byte(b.id),
		b.parentHash.Bytes(),
		[]byte(strconv.FormatFloat(b.timestamp, 'g', -1, 64)),
	}
	for _, tx := range b.txs {
		fields = append(fields, []byte(tx.ID))
	}
	b.hash = common.StructHash(fields...)
	b.hashed = true
	return b.hash
}

// Size is the message size in kB: one unit per transaction plus the header.
func (b *Block) Size() int {
	return len(b.txs) + 1
}

func (b *Block) String() string {
	return fmt.Sprintf("Block(id=%s)", b.id)
}

var (
	genesisOnce  sync.Once
	genesisBlock *Block
)

// Genesis returns the process-wide genesis block: no parent, no transactions,
// timestamp zero. Every chain replica roots at this block.
func Genesis() *Block {
	genesisOnce.Do(func() {
		genesisBlock = NewBlock(GenesisBlockID, common.EmptyHash, nil, 0, GenesisMiner, false)
	})
	return genesisBlock
}

// GenesisHash is the fingerprint every replica keys the root under.
func GenesisHash() common.Hash {
	return Genesis().Hash()
}
