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

package common

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

const HashLength = 32

// Hash is a structural fingerprint. Block identity in the simulator is a hash
// of the block's structure, not a proof-of-work preimage.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// StructHash fingerprints an ordered list of fields.
func StructHash(fields ...[]byte) Hash {
	d := sha3.New256()
	for _, f := range fields {
		d.Write(f)
		d.Write([]byte{0})
	}
	return BytesToHash(d.Sum(nil))
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// TerminalString truncates the fingerprint for log lines.
func (h Hash) TerminalString() string {
	return "0x" + hex.EncodeToString(h[:3]) + "…"
}

// EmptyHash is the zero fingerprint, used as the genesis parent sentinel.
var EmptyHash = Hash{}
