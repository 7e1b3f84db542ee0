package entities

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// LegacyAddressLength is the length of an address on the legacy ETN chain
	LegacyAddressLength = 98
	// TxIDLength is the length of a hex encoded legacy transaction hash
	TxIDLength = 2 * chainhash.HashSize
)

// LegacyAddress is an account on the legacy chain (e.g. "etnk...")
type LegacyAddress string

// TxID is the hash of a legacy chain transaction
type TxID string

func (a LegacyAddress) IsValid() bool {
	return len(a) == LegacyAddressLength
}

func (a LegacyAddress) String() string {
	return string(a)
}

func (id TxID) IsValid() bool {
	if len(id) != TxIDLength {
		return false
	}
	_, err := chainhash.NewHashFromStr(string(id))
	return err == nil
}

func (id TxID) String() string {
	return string(id)
}

// IsValidDestination reports whether addr can receive bridged funds.
// The zero address is reserved.
func IsValidDestination(addr common.Address) bool {
	return addr != (common.Address{})
}
