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

// Vault holds the custodial balance that transfers are paid from. Anyone may
// top it up; only the ledger can release funds from it.
type Vault struct {
	mu      sync.RWMutex
	db      *database.DB
	journal *journal
	sink    EventSink
	logger  *logrus.Entry

	balance   *uint256.Int
	deposited *uint256.Int
	released  *uint256.Int
	credited  map[common.Address]*uint256.Int // external balance paid out per destination
}

func newVault(db *database.DB, sink EventSink, logger *logrus.Entry) *Vault {
	return &Vault{
		db:        db,
		journal:   &journal{},
		sink:      sink,
		logger:    logger,
		balance:   new(uint256.Int),
		deposited: new(uint256.Int),
		released:  new(uint256.Int),
		credited:  map[common.Address]*uint256.Int{},
	}
}

func (v *Vault) load() error {
	var obj vaultStateObject
	err := v.db.GetJSON([]byte(vaultStateKey), &obj)
	if database.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Could not load vault state - with err: %w", err)
	}
	if v.balance, err = uint256.FromDecimal(obj.Balance); err != nil {
		return err
	}
	if v.deposited, err = uint256.FromDecimal(obj.TotalDeposited); err != nil {
		return err
	}
	if v.released, err = uint256.FromDecimal(obj.TotalReleased); err != nil {
		return err
	}
	v.journal.lastSeq = obj.LastEventSeq

	var iterErr error
	err = v.db.Iterate([]byte(vaultCreditPrefix), func(key, value []byte) bool {
		addr := common.HexToAddress(string(key[len(vaultCreditPrefix):]))
		amount, err := decodeAmount(value)
		if err != nil {
			iterErr = fmt.Errorf("Could not decode credited amount of %v - with err: %w", addr.Hex(), err)
			return false
		}
		v.credited[addr] = amount
		return true
	})
	if err != nil {
		return err
	}
	return iterErr
}

func (v *Vault) stateObject(balance, deposited, released *uint256.Int, lastSeq uint64) *vaultStateObject {
	return &vaultStateObject{
		Balance:        balance.Dec(),
		TotalDeposited: deposited.Dec(),
		TotalReleased:  released.Dec(),
		LastEventSeq:   lastSeq,
	}
}

// Deposit adds amount to the vault. A zero deposit is accepted but changes
// nothing and emits no event.
func (v *Vault) Deposit(from common.Address, amount *uint256.Int) (*entities.DepositReceipt, error) {
	amount = copyAmount(amount)

	v.mu.Lock()
	defer v.mu.Unlock()

	receipt := &entities.DepositReceipt{
		From:   from,
		Amount: amount,
	}
	if amount.IsZero() {
		receipt.VaultBalance = new(uint256.Int).Set(v.balance)
		return receipt, nil
	}

	balance, overflow := new(uint256.Int).AddOverflow(v.balance, amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	deposited, overflow := new(uint256.Int).AddOverflow(v.deposited, amount)
	if overflow {
		return nil, ErrAmountOverflow
	}

	batch := database.NewBatch()
	env := v.journal.stage(batch, &entities.DepositReceived{
		From:   from,
		Amount: new(uint256.Int).Set(amount),
	})
	batch.PutJSON([]byte(vaultStateKey), v.stateObject(balance, deposited, v.released, env.Seq))
	if err := v.db.Write(batch); err != nil {
		return nil, fmt.Errorf("Could not persist deposit from %v - with err: %w", from.Hex(), err)
	}

	v.balance = balance
	v.deposited = deposited
	v.journal.commit(env)
	v.sink.Publish(env)

	v.logger.WithFields(logrus.Fields{
		"from":    from.Hex(),
		"amount":  amount.Dec(),
		"balance": balance.Dec(),
	}).Info("Deposit received")

	receipt.VaultBalance = new(uint256.Int).Set(balance)
	receipt.EventSeq = env.Seq
	return receipt, nil
}

func (v *Vault) Balance() *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(uint256.Int).Set(v.balance)
}

// Credited returns the total amount released to addr
func (v *Vault) Credited(addr common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.creditedOf(addr)
}

// Totals returns the cumulative deposited and released amounts
func (v *Vault) Totals() (deposited *uint256.Int, released *uint256.Int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return new(uint256.Int).Set(v.deposited), new(uint256.Int).Set(v.released)
}

// CreditedAccounts returns a copy of the per-destination paid out amounts
func (v *Vault) CreditedAccounts() map[common.Address]*uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	res := make(map[common.Address]*uint256.Int, len(v.credited))
	for addr, amount := range v.credited {
		res[addr] = new(uint256.Int).Set(amount)
	}
	return res
}

func (v *Vault) creditedOf(addr common.Address) *uint256.Int {
	if amount, ok := v.credited[addr]; ok {
		return new(uint256.Int).Set(amount)
	}
	return new(uint256.Int)
}

// stageRelease writes the debit of amount and the credit of dest into batch.
// The returned func applies the same change in memory and must only be called
// once batch has been written. Caller holds v.mu.
func (v *Vault) stageRelease(batch *database.Batch, dest common.Address, amount *uint256.Int, lastSeq uint64) (func(), error) {
	if amount.Gt(v.balance) {
		return nil, ErrInsufficientFunds
	}
	balance := new(uint256.Int).Sub(v.balance, amount)
	released := new(uint256.Int).Add(v.released, amount)
	credited := new(uint256.Int).Add(v.creditedOf(dest), amount)

	batch.PutJSON([]byte(vaultStateKey), v.stateObject(balance, v.deposited, released, lastSeq))
	batch.Put(vaultCreditKey(dest), encodeAmount(credited))

	return func() {
		v.balance = balance
		v.released = released
		v.credited[dest] = credited
	}, nil
}

func copyAmount(amount *uint256.Int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(amount)
}
