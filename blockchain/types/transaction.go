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

import "fmt"

// Transaction is a value transfer between two peers. A coinbase transaction
// has no sender and credits the miner of the enclosing block.
type Transaction struct {
	ID        string  `json:"id"`
	From      string  `json:"from"` // empty for coinbase
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Timestamp float64 `json:"timestamp"`
}

func NewTransaction(id, from, to string, amount, timestamp float64) *Transaction {
	return &Transaction{
		ID:        id,
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: timestamp,
	}
}

// NewCoinbaseTransaction synthesizes the miner reward inserted at mine
// success. It never enters the pending pool.
func NewCoinbaseTransaction(blockID, miner string, timestamp, reward float64) *Transaction {
	return &Transaction{
		ID:        "C-" + blockID,
		To:        miner,
		Amount:    reward,
		Timestamp: timestamp,
	}
}

func (tx *Transaction) IsCoinbase() bool {
	return tx.From == ""
}

func (tx *Transaction) String() string {
	if tx.IsCoinbase() {
		return fmt.Sprintf("Coinbase(%s -> %s, %.4f)", tx.ID, tx.To, tx.Amount)
	}
	return fmt.Sprintf("Txn(%s %s -> %s, %.4f)", tx.ID, tx.From, tx.To, tx.Amount)
}
