package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/entities"
)

// Key layout. Sequence numbers are zero padded so that leveldb's key order is
// insertion order.
//
//	legacy/<legacy>                -> destination (hex)
//	account/<dest>/legacy/<n>      -> legacy address
//	account/<dest>/tx/<n>          -> tx id
//	account/<dest>/total           -> credited amount
//	tx/<txid>                      -> transferRecordObject
//	ledger/state                   -> ledgerStateObject
//	vault/state                    -> vaultStateObject
//	vault/credited/<dest>          -> amount released to dest
//	event/<seq>                    -> eventObject
const (
	legacyPrefix       = "legacy/"
	accountPrefix      = "account/"
	txPrefix           = "tx/"
	eventPrefix        = "event/"
	vaultCreditPrefix  = "vault/credited/"
	ledgerStateKey     = "ledger/state"
	vaultStateKey      = "vault/state"
	accountLegacyField = "legacy"
	accountTxField     = "tx"
	accountTotalField  = "total"
)

func seqStr(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

func legacyKey(legacy entities.LegacyAddress) []byte {
	return []byte(legacyPrefix + string(legacy))
}

func accountListKey(addr common.Address, field string, n uint64) []byte {
	return []byte(accountPrefix + addr.Hex() + "/" + field + "/" + seqStr(n))
}

func accountTotalKey(addr common.Address) []byte {
	return []byte(accountPrefix + addr.Hex() + "/" + accountTotalField)
}

func txKey(txID entities.TxID) []byte {
	return []byte(txPrefix + string(txID))
}

func eventKey(seq uint64) []byte {
	return []byte(eventPrefix + seqStr(seq))
}

func vaultCreditKey(addr common.Address) []byte {
	return []byte(vaultCreditPrefix + addr.Hex())
}

// parseAccountKey splits "account/<dest>/<field>[/<n>]"
func parseAccountKey(key []byte) (common.Address, string, uint64, error) {
	parts := strings.Split(strings.TrimPrefix(string(key), accountPrefix), "/")
	if len(parts) < 2 || !common.IsHexAddress(parts[0]) {
		return common.Address{}, "", 0, fmt.Errorf("malformed account key %q", key)
	}
	addr := common.HexToAddress(parts[0])
	if len(parts) == 2 {
		return addr, parts[1], 0, nil
	}
	n, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return common.Address{}, "", 0, fmt.Errorf("malformed account key %q - with err: %v", key, err)
	}
	return addr, parts[1], n, nil
}

func encodeAmount(a *uint256.Int) []byte {
	return []byte(a.Dec())
}

func decodeAmount(b []byte) (*uint256.Int, error) {
	return uint256.FromDecimal(string(b))
}

type ledgerStateObject struct {
	TotalTxCount uint64
	TotalAmount  string
	LastTxID     entities.TxID
}

type vaultStateObject struct {
	Balance        string
	TotalDeposited string
	TotalReleased  string
	LastEventSeq   uint64
}

// Legacy addresses are only length checked, so they are kept as bytes to
// survive JSON encoding unchanged.
type transferRecordObject struct {
	TxID          entities.TxID
	Amount        string
	LegacyAddress []byte
	Destination   string
	FeeWaived     bool
	Seq           uint64
}

func newTransferRecordObject(r *entities.TransferRecord) *transferRecordObject {
	return &transferRecordObject{
		TxID:          r.TxID,
		Amount:        r.Amount.Dec(),
		LegacyAddress: []byte(r.LegacyAddress),
		Destination:   r.Destination.Hex(),
		FeeWaived:     r.FeeWaived,
		Seq:           r.Seq,
	}
}

func (o *transferRecordObject) record() (*entities.TransferRecord, error) {
	amount, err := uint256.FromDecimal(o.Amount)
	if err != nil {
		return nil, err
	}
	return &entities.TransferRecord{
		TxID:          o.TxID,
		Amount:        amount,
		LegacyAddress: entities.LegacyAddress(o.LegacyAddress),
		Destination:   common.HexToAddress(o.Destination),
		FeeWaived:     o.FeeWaived,
		Seq:           o.Seq,
	}, nil
}

type eventObject struct {
	Seq           uint64
	Name          string
	From          string                 `json:",omitempty"`
	LegacyAddress []byte                 `json:",omitempty"`
	Destination   string                 `json:",omitempty"`
	TxID          entities.TxID          `json:",omitempty"`
	FeeWaived     bool                   `json:",omitempty"`
	Amount        string
}

func newEventObject(seq uint64, evt entities.Event) *eventObject {
	obj := &eventObject{Seq: seq, Name: evt.EventName()}
	switch e := evt.(type) {
	case *entities.DepositReceived:
		obj.From = e.From.Hex()
		obj.Amount = e.Amount.Dec()
	case *entities.CrossChainTransfer:
		obj.LegacyAddress = []byte(e.LegacyAddress)
		obj.Destination = e.Destination.Hex()
		obj.TxID = e.TxID
		obj.FeeWaived = e.FeeWaived
		obj.Amount = e.Amount.Dec()
	}
	return obj
}

func (o *eventObject) envelope() (*entities.EventEnvelope, error) {
	amount, err := uint256.FromDecimal(o.Amount)
	if err != nil {
		return nil, err
	}
	env := &entities.EventEnvelope{Seq: o.Seq, Name: o.Name}
	switch o.Name {
	case entities.DepositReceivedEvent:
		env.Event = &entities.DepositReceived{
			From:   common.HexToAddress(o.From),
			Amount: amount,
		}
	case entities.CrossChainTransferEvent:
		env.Event = &entities.CrossChainTransfer{
			LegacyAddress: entities.LegacyAddress(o.LegacyAddress),
			Destination:   common.HexToAddress(o.Destination),
			Amount:        amount,
			TxID:          o.TxID,
			FeeWaived:     o.FeeWaived,
		}
	default:
		return nil, fmt.Errorf("unknown event %q at seq %d", o.Name, o.Seq)
	}
	return env, nil
}
