package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	DepositReceivedEvent    = "DepositReceived"
	CrossChainTransferEvent = "CrossChainTransfer"
)

type Event interface {
	EventName() string
}

type DepositReceived struct {
	From   common.Address
	Amount *uint256.Int
}

func (e *DepositReceived) EventName() string {
	return DepositReceivedEvent
}

type CrossChainTransfer struct {
	LegacyAddress LegacyAddress
	Destination   common.Address
	Amount        *uint256.Int
	TxID          TxID
	FeeWaived     bool
}

func (e *CrossChainTransfer) EventName() string {
	return CrossChainTransferEvent
}

// EventEnvelope is the journaled form of an event
type EventEnvelope struct {
	Seq   uint64 `json:"seq"`
	Name  string `json:"name"`
	Event Event  `json:"-"`
}
