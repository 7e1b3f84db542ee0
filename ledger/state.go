package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/entities"
)

// state is the in-memory mirror of everything the ledger persisted
type state struct {
	legacyToLocal map[entities.LegacyAddress]common.Address
	localToLegacy map[common.Address][]entities.LegacyAddress
	txHistory     map[common.Address][]entities.TxID
	accountTotal  map[common.Address]*uint256.Int
	txIndex       map[entities.TxID]*entities.TransferRecord

	totalTxCount uint64
	totalAmount  *uint256.Int
	lastTxID     entities.TxID
}

func newState() *state {
	return &state{
		legacyToLocal: map[entities.LegacyAddress]common.Address{},
		localToLegacy: map[common.Address][]entities.LegacyAddress{},
		txHistory:     map[common.Address][]entities.TxID{},
		accountTotal:  map[common.Address]*uint256.Int{},
		txIndex:       map[entities.TxID]*entities.TransferRecord{},
		totalAmount:   new(uint256.Int),
	}
}

// transferPlan is the full set of changes one accepted transfer makes
type transferPlan struct {
	record       *entities.TransferRecord
	newMapping   bool
	legacyIdx    uint64
	txIdx        uint64
	accountTotal *uint256.Int
	totalAmount  *uint256.Int
}

// plan must only be called on a request that passed validateTransfer
func (st *state) plan(req *transferRequest) *transferPlan {
	_, bound := st.legacyToLocal[req.legacy]
	accountTotal := new(uint256.Int)
	if total, ok := st.accountTotal[req.destination]; ok {
		accountTotal.Set(total)
	}
	return &transferPlan{
		record: &entities.TransferRecord{
			TxID:          req.txID,
			Amount:        new(uint256.Int).Set(req.amount),
			LegacyAddress: req.legacy,
			Destination:   req.destination,
			FeeWaived:     req.feeWaived,
			Seq:           st.totalTxCount + 1,
		},
		newMapping:   !bound,
		legacyIdx:    uint64(len(st.localToLegacy[req.destination])),
		txIdx:        uint64(len(st.txHistory[req.destination])),
		accountTotal: accountTotal.Add(accountTotal, req.amount),
		totalAmount:  new(uint256.Int).Add(st.totalAmount, req.amount),
	}
}

func (p *transferPlan) stage(batch *database.Batch) {
	rec := p.record
	if p.newMapping {
		batch.Put(legacyKey(rec.LegacyAddress), []byte(rec.Destination.Hex()))
		batch.Put(accountListKey(rec.Destination, accountLegacyField, p.legacyIdx), []byte(rec.LegacyAddress))
	}
	batch.Put(accountListKey(rec.Destination, accountTxField, p.txIdx), []byte(rec.TxID))
	batch.Put(accountTotalKey(rec.Destination), encodeAmount(p.accountTotal))
	batch.PutJSON(txKey(rec.TxID), newTransferRecordObject(rec))
	batch.PutJSON([]byte(ledgerStateKey), &ledgerStateObject{
		TotalTxCount: rec.Seq,
		TotalAmount:  p.totalAmount.Dec(),
		LastTxID:     rec.TxID,
	})
}

func (st *state) apply(p *transferPlan) {
	rec := p.record
	if p.newMapping {
		st.legacyToLocal[rec.LegacyAddress] = rec.Destination
		st.localToLegacy[rec.Destination] = append(st.localToLegacy[rec.Destination], rec.LegacyAddress)
	}
	st.txHistory[rec.Destination] = append(st.txHistory[rec.Destination], rec.TxID)
	st.accountTotal[rec.Destination] = p.accountTotal
	st.txIndex[rec.TxID] = rec
	st.totalTxCount = rec.Seq
	st.totalAmount = p.totalAmount
	st.lastTxID = rec.TxID
}

func (st *state) load(db *database.DB) error {
	var obj ledgerStateObject
	err := db.GetJSON([]byte(ledgerStateKey), &obj)
	if database.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Could not load ledger state - with err: %w", err)
	}
	st.totalTxCount = obj.TotalTxCount
	st.lastTxID = obj.LastTxID
	if st.totalAmount, err = uint256.FromDecimal(obj.TotalAmount); err != nil {
		return err
	}

	var iterErr error
	err = db.Iterate([]byte(legacyPrefix), func(key, value []byte) bool {
		legacy := entities.LegacyAddress(key[len(legacyPrefix):])
		st.legacyToLocal[legacy] = common.HexToAddress(string(value))
		return true
	})
	if err != nil {
		return err
	}

	err = db.Iterate([]byte(accountPrefix), func(key, value []byte) bool {
		addr, field, _, err := parseAccountKey(key)
		if err != nil {
			iterErr = err
			return false
		}
		switch field {
		case accountLegacyField:
			st.localToLegacy[addr] = append(st.localToLegacy[addr], entities.LegacyAddress(value))
		case accountTxField:
			st.txHistory[addr] = append(st.txHistory[addr], entities.TxID(value))
		case accountTotalField:
			amount, err := decodeAmount(value)
			if err != nil {
				iterErr = fmt.Errorf("Could not decode total of %v - with err: %w", addr.Hex(), err)
				return false
			}
			st.accountTotal[addr] = amount
		}
		return true
	})
	if err != nil {
		return err
	}
	if iterErr != nil {
		return iterErr
	}

	err = db.Iterate([]byte(txPrefix), func(key, value []byte) bool {
		var obj transferRecordObject
		if err := json.Unmarshal(value, &obj); err != nil {
			iterErr = fmt.Errorf("Could not decode tx record %s - with err: %w", key, err)
			return false
		}
		rec, err := obj.record()
		if err != nil {
			iterErr = err
			return false
		}
		st.txIndex[rec.TxID] = rec
		return true
	})
	if err != nil {
		return err
	}
	if iterErr != nil {
		return iterErr
	}

	if uint64(len(st.txIndex)) != st.totalTxCount {
		return fmt.Errorf("ledger state is inconsistent: %d tx records for a tx count of %d", len(st.txIndex), st.totalTxCount)
	}
	return nil
}
