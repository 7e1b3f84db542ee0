package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/entities"
	"github.com/sirupsen/logrus"
)

// Ledger reconciles transfers reported from the legacy chain with credits on
// the destination ledger. RecordTransfer is the only mutation; it either
// applies completely or not at all.
type Ledger struct {
	mu     sync.RWMutex
	db     *database.DB
	vault  *Vault
	logger *logrus.Entry
	st     *state
}

// Open restores the ledger and its vault from db. A nil sink drops events and
// a nil logger logs to the standard logrus logger.
func Open(db *database.DB, sink EventSink, logger *logrus.Entry) (*Ledger, error) {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	l := &Ledger{
		db:     db,
		vault:  newVault(db, sink, logger.WithField("component", "vault")),
		logger: logger.WithField("component", "ledger"),
		st:     newState(),
	}
	if err := l.vault.load(); err != nil {
		return nil, err
	}
	if err := l.st.load(db); err != nil {
		return nil, err
	}

	deposited, released := l.vault.deposited, l.vault.released
	if !released.Eq(l.st.totalAmount) {
		return nil, fmt.Errorf("vault released %v but ledger credited %v", released.Dec(), l.st.totalAmount.Dec())
	}
	l.logger.WithFields(logrus.Fields{
		"txCount":   l.st.totalTxCount,
		"deposited": deposited.Dec(),
		"balance":   l.vault.balance.Dec(),
	}).Info("Ledger loaded")
	return l, nil
}

func (l *Ledger) Vault() *Vault {
	return l.vault
}

// Deposit tops up the custodial vault
func (l *Ledger) Deposit(from common.Address, amount *uint256.Int) (*entities.DepositReceipt, error) {
	return l.vault.Deposit(from, amount)
}

// RecordTransfer credits destination with amount for the legacy transaction
// txID sent from legacy. Checks run in this order and the first failure is
// returned: funds, legacy address, destination, tx id format, replay, mapping.
// feeWaived is stored on the record only.
func (l *Ledger) RecordTransfer(
	destination common.Address,
	legacy entities.LegacyAddress,
	amount *uint256.Int,
	txID entities.TxID,
	feeWaived bool,
) (*entities.Receipt, error) {
	req := &transferRequest{
		destination: destination,
		legacy:      legacy,
		amount:      copyAmount(amount),
		txID:        txID,
		feeWaived:   feeWaived,
	}
	logger := l.logger.WithFields(logrus.Fields{
		"destination": destination.Hex(),
		"legacy":      string(legacy),
		"amount":      req.amount.Dec(),
		"txID":        string(txID),
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.vault.mu.Lock()
	defer l.vault.mu.Unlock()

	if err := validateTransfer(req, l.vault.balance, l.st); err != nil {
		logger.Warnf("Transfer rejected: %v", err)
		return nil, err
	}

	plan := l.st.plan(req)
	batch := database.NewBatch()
	plan.stage(batch)
	env := l.vault.journal.stage(batch, &entities.CrossChainTransfer{
		LegacyAddress: legacy,
		Destination:   destination,
		Amount:        new(uint256.Int).Set(req.amount),
		TxID:          txID,
		FeeWaived:     feeWaived,
	})
	applyRelease, err := l.vault.stageRelease(batch, destination, req.amount, env.Seq)
	if err != nil {
		return nil, err
	}
	if err := l.db.Write(batch); err != nil {
		logger.Errorf("Could not persist transfer - with err: %v", err)
		return nil, fmt.Errorf("Could not persist transfer %v - with err: %w", txID, err)
	}

	l.st.apply(plan)
	applyRelease()
	l.vault.journal.commit(env)
	l.vault.sink.Publish(env)

	logger.WithFields(logrus.Fields{
		"seq":        plan.record.Seq,
		"newMapping": plan.newMapping,
		"feeWaived":  feeWaived,
	}).Info("Cross chain transfer recorded")

	return &entities.Receipt{
		TransferRecord: *plan.record.Clone(),
		NewMapping:     plan.newMapping,
		AccountTotal:   new(uint256.Int).Set(plan.accountTotal),
		VaultBalance:   new(uint256.Int).Set(l.vault.balance),
		EventSeq:       env.Seq,
	}, nil
}
