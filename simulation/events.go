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

package simulation

import "fmt"

// EventType is the closed set of schedulable actions.
type EventType int

const (
	TxnCreate EventType = iota
	TxnSend
	TxnReceive
	TxnBroadcast

	BlockCreate
	BlockSend
	BlockReceive
	BlockBroadcast
	BlockAccepted

	BlockMineStart
	BlockMineFinish
	BlockMineSuccess
	BlockMineFail
)

func (t EventType) String() string {
	switch t {
	case TxnCreate:
		return "TXN_CREATED"
	case TxnSend:
		return "TXN_SENT"
	case TxnReceive:
		return "TXN_RECEIVED"
	case TxnBroadcast:
		return "TXN_BROADCASTED"
	case BlockCreate:
		return "BLOCK_CREATED"
	case BlockSend:
		return "BLOCK_SENT"
	case BlockReceive:
		return "BLOCK_RECEIVED"
	case BlockBroadcast:
		return "BLOCK_BROADCASTED"
	case BlockAccepted:
		return "BLOCK_ACCEPTED"
	case BlockMineStart:
		return "BLOCK_MINE_STARTED"
	case BlockMineFinish:
		return "BLOCK_MINE_FINISHED"
	case BlockMineSuccess:
		return "BLOCK_MINE_SUCCESSFUL"
	case BlockMineFail:
		return "BLOCK_MINE_FAILED"
	default:
		return fmt.Sprintf("EVENT_%d", int(t))
	}
}

// Action is what an event executes when it surfaces.
type Action func(payload interface{})

// Event is a time-stamped action on the virtual clock.
type Event struct {
	Type      EventType
	CreatedAt float64
	Delay     float64
	Action    Action
	Payload   interface{}

	// Owner names the scheduling component, for logs only.
	Owner string
	Meta  string

	seq       uint64
	cancelled bool
}

// ActionableAt is the virtual time the event fires.
func (e *Event) ActionableAt() float64 {
	return e.CreatedAt + e.Delay
}

// Cancel marks the event to be skipped when it surfaces. Idempotent.
func (e *Event) Cancel() {
	e.cancelled = true
}

func (e *Event) Cancelled() bool {
	return e.cancelled
}

func (e *Event) String() string {
	return fmt.Sprintf("Event(%s owner=%s at=%.3f)", e.Type, e.Owner, e.ActionableAt())
}
