package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransferRecord is kept in the global tx index, one per accepted legacy tx
type TransferRecord struct {
	TxID          TxID
	Amount        *uint256.Int
	LegacyAddress LegacyAddress
	Destination   common.Address
	FeeWaived     bool
	Seq           uint64 // position in the global transfer order, starting at 1
}

func (r *TransferRecord) Clone() *TransferRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Amount = new(uint256.Int).Set(r.Amount)
	return &c
}

// Receipt is returned to the relayer once a transfer was accepted
type Receipt struct {
	TransferRecord
	NewMapping   bool // legacy address was bound to destination by this transfer
	AccountTotal *uint256.Int
	VaultBalance *uint256.Int
	EventSeq     uint64
}

type DepositReceipt struct {
	From         common.Address
	Amount       *uint256.Int
	VaultBalance *uint256.Int
	EventSeq     uint64 // 0 when no event was emitted
}

// TransferReport is the relayer-facing form of a transfer, as read from report files
type TransferReport struct {
	Destination   string `json:"destination"`
	LegacyAddress string `json:"legacyAddress"`
	Amount        string `json:"amount"` // wei, base 10
	TxHash        string `json:"txHash"`
	FeeWaived     bool   `json:"feeWaived"`
}

type LedgerStats struct {
	TotalTxCount   uint64
	TotalAmount    *uint256.Int
	LastTxID       TxID
	VaultBalance   *uint256.Int
	TotalDeposited *uint256.Int
	TotalReleased  *uint256.Int
	LastEventSeq   uint64
}
