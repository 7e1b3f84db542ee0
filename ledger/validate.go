package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/entities"
)

type transferRequest struct {
	destination common.Address
	legacy      entities.LegacyAddress
	amount      *uint256.Int
	txID        entities.TxID
	feeWaived   bool
}

// validateTransfer runs the checks in order and returns the first failure.
// It reads st and balance only.
func validateTransfer(req *transferRequest, balance *uint256.Int, st *state) error {
	if req.amount.Gt(balance) {
		return ErrInsufficientFunds
	}
	if !req.legacy.IsValid() {
		return ErrInvalidLegacyAddress
	}
	if !entities.IsValidDestination(req.destination) {
		return ErrInvalidDestination
	}
	if !req.txID.IsValid() {
		return ErrInvalidTransactionID
	}
	if _, exists := st.txIndex[req.txID]; exists {
		return ErrDuplicateTransaction
	}
	if bound, exists := st.legacyToLocal[req.legacy]; exists && bound != req.destination {
		return ErrLegacyAddressAlreadyMapped
	}
	return nil
}
