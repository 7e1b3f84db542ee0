package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/entities"
)

// AddressFromLegacy returns the destination legacy is bound to
func (l *Ledger) AddressFromLegacy(legacy entities.LegacyAddress) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	addr, ok := l.st.legacyToLocal[legacy]
	return addr, ok
}

// LegacyAddresses returns the legacy addresses bound to addr, in binding order
func (l *Ledger) LegacyAddresses(addr common.Address) []entities.LegacyAddress {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]entities.LegacyAddress{}, l.st.localToLegacy[addr]...)
}

// TxHistory returns the legacy tx ids credited to addr, in acceptance order
func (l *Ledger) TxHistory(addr common.Address) []entities.TxID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]entities.TxID{}, l.st.txHistory[addr]...)
}

func (l *Ledger) TxAmount(txID entities.TxID) (*uint256.Int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.st.txIndex[txID]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(rec.Amount), true
}

func (l *Ledger) TxRecord(txID entities.TxID) (*entities.TransferRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.st.txIndex[txID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (l *Ledger) TotalTxCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.totalTxCount
}

func (l *Ledger) TotalAmount() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.st.totalAmount)
}

func (l *Ledger) LastTxID() (entities.TxID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.lastTxID, l.st.totalTxCount > 0
}

// AccountTotal returns the cumulative amount credited to addr
func (l *Ledger) AccountTotal(addr common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if total, ok := l.st.accountTotal[addr]; ok {
		return new(uint256.Int).Set(total)
	}
	return new(uint256.Int)
}

// AccountTotals returns a copy of every account's cumulative credit
func (l *Ledger) AccountTotals() map[common.Address]*uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make(map[common.Address]*uint256.Int, len(l.st.accountTotal))
	for addr, total := range l.st.accountTotal {
		res[addr] = new(uint256.Int).Set(total)
	}
	return res
}

// Stats returns ledger and vault counters taken from the same snapshot
func (l *Ledger) Stats() entities.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.vault.mu.RLock()
	defer l.vault.mu.RUnlock()
	return l.statsLocked()
}

func (l *Ledger) statsLocked() entities.LedgerStats {
	return entities.LedgerStats{
		TotalTxCount:   l.st.totalTxCount,
		TotalAmount:    new(uint256.Int).Set(l.st.totalAmount),
		LastTxID:       l.st.lastTxID,
		VaultBalance:   new(uint256.Int).Set(l.vault.balance),
		TotalDeposited: new(uint256.Int).Set(l.vault.deposited),
		TotalReleased:  new(uint256.Int).Set(l.vault.released),
		LastEventSeq:   l.vault.journal.lastSeq,
	}
}

// Events reads up to limit journaled events starting at fromSeq. Commits are
// held off while reading, so every returned transfer is visible in memory.
func (l *Ledger) Events(fromSeq uint64, limit int) ([]*entities.EventEnvelope, error) {
	if fromSeq == 0 {
		fromSeq = 1
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.vault.mu.RLock()
	defer l.vault.mu.RUnlock()

	events := []*entities.EventEnvelope{}
	var decodeErr error
	err := l.db.IterateFrom([]byte(eventPrefix), eventKey(fromSeq), func(key, value []byte) bool {
		var obj eventObject
		if err := json.Unmarshal(value, &obj); err != nil {
			decodeErr = fmt.Errorf("Could not decode event %s - with err: %w", key, err)
			return false
		}
		env, err := obj.envelope()
		if err != nil {
			decodeErr = err
			return false
		}
		events = append(events, env)
		return limit <= 0 || len(events) < limit
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return events, nil
}

// AccountView is everything known about one destination, read under one lock
type AccountView struct {
	Address         common.Address
	LegacyAddresses []entities.LegacyAddress
	TxHistory       []entities.TxID
	Total           *uint256.Int
	Credited        *uint256.Int
}

func (l *Ledger) Account(addr common.Address) *AccountView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.vault.mu.RLock()
	defer l.vault.mu.RUnlock()

	view := &AccountView{
		Address:         addr,
		LegacyAddresses: append([]entities.LegacyAddress{}, l.st.localToLegacy[addr]...),
		TxHistory:       append([]entities.TxID{}, l.st.txHistory[addr]...),
		Total:           new(uint256.Int),
		Credited:        l.vault.creditedOf(addr),
	}
	if total, ok := l.st.accountTotal[addr]; ok {
		view.Total.Set(total)
	}
	return view
}

// AuditView is a consistent snapshot of the counters the vault monitor checks
type AuditView struct {
	Stats         entities.LedgerStats
	AccountTotals map[common.Address]*uint256.Int
	Credited      map[common.Address]*uint256.Int
}

func (l *Ledger) AuditView() *AuditView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.vault.mu.RLock()
	defer l.vault.mu.RUnlock()

	view := &AuditView{
		Stats:         l.statsLocked(),
		AccountTotals: make(map[common.Address]*uint256.Int, len(l.st.accountTotal)),
		Credited:      make(map[common.Address]*uint256.Int, len(l.vault.credited)),
	}
	for addr, total := range l.st.accountTotal {
		view.AccountTotals[addr] = new(uint256.Int).Set(total)
	}
	for addr, amount := range l.vault.credited {
		view.Credited[addr] = new(uint256.Int).Set(amount)
	}
	return view
}
