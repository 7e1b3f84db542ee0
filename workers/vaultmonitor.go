package workers

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/ledger"
	"github.com/incognitochain/etn-bridge/utils"
)

// VaultMonitor checks that the custodial vault and the ledger agree:
//
//	deposited - released == balance
//	released == ledger total amount
//	sum(credited) == released, and credited == account total for every account
type VaultMonitor struct {
	WorkerAbs
	ledger *ledger.Ledger
	db     *database.DB
}

type VaultAuditObject struct {
	AuditedAt    int64
	LastEventSeq uint64
	TotalTxCount uint64
	VaultBalance string
	Mismatches   []string
}

func (b *VaultMonitor) Init(id int, name string, freq int, l *ledger.Ledger, db *database.DB) error {
	if err := b.WorkerAbs.Init(id, name, freq); err != nil {
		return err
	}
	b.ledger = l
	b.db = db
	return nil
}

func (b *VaultMonitor) Execute() {
	b.Logger.Info("VaultMonitor worker is executing...")

	lastAudit, err := b.GetVaultAuditObject()
	if err != nil && !database.IsNotFound(err) {
		b.ExportErrorLog(fmt.Sprintf("Could not load last vault audit - with err: %v", err))
		return
	}

	view := b.ledger.AuditView()
	mismatches := Audit(view)
	for _, mismatch := range mismatches {
		b.ExportErrorLog(fmt.Sprintf("Vault mismatch at event #%v: %v", view.Stats.LastEventSeq, mismatch))
	}

	stats := view.Stats
	if len(mismatches) == 0 && (lastAudit == nil || lastAudit.LastEventSeq != stats.LastEventSeq) {
		newTransfers := stats.TotalTxCount
		if lastAudit != nil {
			newTransfers -= lastAudit.TotalTxCount
		}
		b.ExportInfoLog(fmt.Sprintf("Vault balance %v ETN, %v transfers since last audit, %v in total",
			utils.ConvertWeiToETN(stats.VaultBalance), newTransfers, stats.TotalTxCount))
	}

	err = b.StoreVaultAuditObject(&VaultAuditObject{
		AuditedAt:    time.Now().Unix(),
		LastEventSeq: stats.LastEventSeq,
		TotalTxCount: stats.TotalTxCount,
		VaultBalance: stats.VaultBalance.Dec(),
		Mismatches:   mismatches,
	})
	if err != nil {
		b.ExportErrorLog(fmt.Sprintf("Could not save vault audit to db - with err: %v", err))
	}
}

// Audit returns a description of every conservation rule view breaks
func Audit(view *ledger.AuditView) []string {
	mismatches := []string{}
	stats := view.Stats

	if stats.TotalReleased.Gt(stats.TotalDeposited) {
		mismatches = append(mismatches, fmt.Sprintf("released %v exceeds deposited %v",
			stats.TotalReleased.Dec(), stats.TotalDeposited.Dec()))
	} else if expected := new(uint256.Int).Sub(stats.TotalDeposited, stats.TotalReleased); !expected.Eq(stats.VaultBalance) {
		mismatches = append(mismatches, fmt.Sprintf("balance %v but deposited - released is %v",
			stats.VaultBalance.Dec(), expected.Dec()))
	}
	if !stats.TotalReleased.Eq(stats.TotalAmount) {
		mismatches = append(mismatches, fmt.Sprintf("released %v but ledger total is %v",
			stats.TotalReleased.Dec(), stats.TotalAmount.Dec()))
	}

	credited := new(uint256.Int)
	for addr, amount := range view.Credited {
		credited.Add(credited, amount)
		total, ok := view.AccountTotals[addr]
		if !ok || !total.Eq(amount) {
			accountTotal := "0"
			if ok {
				accountTotal = total.Dec()
			}
			mismatches = append(mismatches, fmt.Sprintf("%v credited %v but account total is %v",
				addr.Hex(), amount.Dec(), accountTotal))
		}
	}
	for addr, total := range view.AccountTotals {
		if _, ok := view.Credited[addr]; !ok && !total.IsZero() {
			mismatches = append(mismatches, fmt.Sprintf("%v has account total %v but was never credited",
				addr.Hex(), total.Dec()))
		}
	}
	if !credited.Eq(stats.TotalReleased) {
		mismatches = append(mismatches, fmt.Sprintf("sum of credits %v but released %v",
			credited.Dec(), stats.TotalReleased.Dec()))
	}
	return mismatches
}

func (b *VaultMonitor) StoreVaultAuditObject(obj *VaultAuditObject) error {
	return b.db.PutJSON([]byte(VaultMonitorDBObjectName), obj)
}

func (b *VaultMonitor) GetVaultAuditObject() (*VaultAuditObject, error) {
	var obj *VaultAuditObject
	if err := b.db.GetJSON([]byte(VaultMonitorDBObjectName), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
