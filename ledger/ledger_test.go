package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/incognitochain/etn-bridge/database"
	"github.com/incognitochain/etn-bridge/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLegacyBase = "etnkPPMb6BN24rzhF2LadK3RMn596R87dBidbV2m1UjpNniTMBQaFcD9cZFwfTvc6hN899kAjg6979oB1HXVFwRu4eCCKs"
	testTxBase     = "37af53586d6e40c2f70840e1d5949031b47456821aab87ae2e6f0e06c4fa"
)

var oneETN = uint256.NewInt(1_000_000_000_000_000_000)

func legacyAddr(n int) entities.LegacyAddress {
	return entities.LegacyAddress(fmt.Sprintf("%s%04d", testLegacyBase, n))
}

func txHash(n int) entities.TxID {
	return entities.TxID(fmt.Sprintf("%s%04d", testTxBase, n))
}

func dest(n int) common.Address {
	return common.BigToAddress(uint256.NewInt(uint64(n) * 0x10).ToBig())
}

func etn(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), oneETN)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*entities.EventEnvelope
}

func (s *recordingSink) Publish(env *entities.EventEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, env)
}

func (s *recordingSink) all() []*entities.EventEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.EventEnvelope{}, s.events...)
}

func newTestLedger(t *testing.T) (*Ledger, *recordingSink, *database.DB) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	sink := &recordingSink{}
	l, err := Open(db, sink, nil)
	require.NoError(t, err)
	return l, sink, db
}

func newFundedLedger(t *testing.T, funds *uint256.Int) (*Ledger, *recordingSink) {
	t.Helper()
	l, sink, db := newTestLedger(t)
	t.Cleanup(func() { db.Close() })
	_, err := l.Deposit(common.HexToAddress("0x00000000000000000000000000000000000000aa"), funds)
	require.NoError(t, err)
	return l, sink
}

type snapshot struct {
	Stats       entities.LedgerStats
	Mapping     map[entities.LegacyAddress]common.Address
	Legacies    map[common.Address][]entities.LegacyAddress
	History     map[common.Address][]entities.TxID
	Totals      map[common.Address]*uint256.Int
	Credited    map[common.Address]*uint256.Int
	EventsCount int
}

func takeSnapshot(t *testing.T, l *Ledger, legacies []entities.LegacyAddress, addrs []common.Address) snapshot {
	s := snapshot{
		Stats:    l.Stats(),
		Mapping:  map[entities.LegacyAddress]common.Address{},
		Legacies: map[common.Address][]entities.LegacyAddress{},
		History:  map[common.Address][]entities.TxID{},
		Totals:   l.AccountTotals(),
		Credited: l.Vault().CreditedAccounts(),
	}
	for _, legacy := range legacies {
		if addr, ok := l.AddressFromLegacy(legacy); ok {
			s.Mapping[legacy] = addr
		}
	}
	for _, addr := range addrs {
		s.Legacies[addr] = l.LegacyAddresses(addr)
		s.History[addr] = l.TxHistory(addr)
	}
	events, err := l.Events(0, 0)
	require.NoError(t, err)
	s.EventsCount = len(events)
	return s
}

func TestScenarioA_EmptyVault(t *testing.T) {
	l, sink, db := newTestLedger(t)
	defer db.Close()

	_, err := l.RecordTransfer(dest(1), legacyAddr(1), uint256.NewInt(1), txHash(1), true)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, ok := l.AddressFromLegacy(legacyAddr(1))
	assert.False(t, ok)
	assert.Empty(t, l.LegacyAddresses(dest(1)))
	assert.Empty(t, l.TxHistory(dest(1)))
	assert.Equal(t, uint64(0), l.TotalTxCount())
	assert.True(t, l.TotalAmount().IsZero())
	_, ok = l.LastTxID()
	assert.False(t, ok)
	assert.True(t, l.Vault().Balance().IsZero())
	assert.Empty(t, sink.all())
}

func TestScenariosBToE(t *testing.T) {
	l, sink := newFundedLedger(t, uint256.NewInt(1000))
	d1, d2 := dest(1), dest(2)
	l1, l2 := legacyAddr(1), legacyAddr(2)

	// B
	receipt, err := l.RecordTransfer(d1, l1, uint256.NewInt(1), txHash(1), false)
	require.NoError(t, err)
	assert.True(t, receipt.NewMapping)
	assert.Equal(t, uint64(1), receipt.Seq)
	addr, ok := l.AddressFromLegacy(l1)
	require.True(t, ok)
	assert.Equal(t, d1, addr)
	assert.Equal(t, []entities.LegacyAddress{l1}, l.LegacyAddresses(d1))
	assert.Equal(t, []entities.TxID{txHash(1)}, l.TxHistory(d1))
	assert.Equal(t, uint256.NewInt(999), l.Vault().Balance())

	// C
	_, err = l.RecordTransfer(d1, l1, uint256.NewInt(1), txHash(1), false)
	require.ErrorIs(t, err, ErrDuplicateTransaction)

	// D
	_, err = l.RecordTransfer(d2, l1, uint256.NewInt(1), txHash(2), false)
	require.ErrorIs(t, err, ErrLegacyAddressAlreadyMapped)

	// E
	receipt, err = l.RecordTransfer(d1, l2, uint256.NewInt(1), txHash(3), false)
	require.NoError(t, err)
	assert.True(t, receipt.NewMapping)
	assert.Equal(t, []entities.LegacyAddress{l1, l2}, l.LegacyAddresses(d1))
	assert.Equal(t, uint256.NewInt(2), l.AccountTotal(d1))
	assert.Equal(t, uint256.NewInt(2), receipt.AccountTotal)
	assert.Equal(t, uint256.NewInt(998), receipt.VaultBalance)

	// one deposit and two transfers were emitted
	events := sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, entities.DepositReceivedEvent, events[0].Name)
	transfer, ok := events[2].Event.(*entities.CrossChainTransfer)
	require.True(t, ok)
	assert.Equal(t, l2, transfer.LegacyAddress)
	assert.Equal(t, d1, transfer.Destination)
	assert.Equal(t, uint256.NewInt(1), transfer.Amount)
}

func TestRecordTransferValidationOrder(t *testing.T) {
	l, _ := newFundedLedger(t, etn(1000))
	_, err := l.RecordTransfer(dest(2), legacyAddr(2), etn(1), txHash(2), false)
	require.NoError(t, err)

	type TestCase struct {
		name        string
		destination common.Address
		legacy      entities.LegacyAddress
		amount      *uint256.Int
		txID        entities.TxID
		expected    ErrorKind
	}

	cases := []*TestCase{
		{
			name:        "amount greater than vault balance",
			destination: dest(3),
			legacy:      legacyAddr(3),
			amount:      etn(10000),
			txID:        txHash(3),
			expected:    InsufficientFunds,
		},
		{
			name:        "insufficient funds wins over every other failure",
			destination: common.Address{},
			legacy:      "etnk",
			amount:      etn(10000),
			txID:        txHash(2),
			expected:    InsufficientFunds,
		},
		{
			name:        "legacy address too short",
			destination: dest(4),
			legacy:      "etnkPPMb6BN24rzhF2LadK3",
			amount:      etn(1),
			txID:        txHash(4),
			expected:    InvalidLegacyAddress,
		},
		{
			name:        "legacy address too long",
			destination: dest(5),
			legacy:      legacyAddr(3) + "00000000000000000",
			amount:      etn(1),
			txID:        txHash(5),
			expected:    InvalidLegacyAddress,
		},
		{
			name:        "legacy address checked before destination",
			destination: common.Address{},
			legacy:      "",
			amount:      etn(1),
			txID:        "bad",
			expected:    InvalidLegacyAddress,
		},
		{
			name:        "zero destination",
			destination: common.Address{},
			legacy:      legacyAddr(3),
			amount:      etn(1),
			txID:        txHash(6),
			expected:    InvalidDestination,
		},
		{
			name:        "destination checked before tx id",
			destination: common.Address{},
			legacy:      legacyAddr(3),
			amount:      etn(1),
			txID:        txHash(2) + "0000",
			expected:    InvalidDestination,
		},
		{
			name:        "tx hash too long",
			destination: dest(6),
			legacy:      legacyAddr(4),
			amount:      etn(1),
			txID:        txHash(2) + "0000",
			expected:    InvalidTransactionID,
		},
		{
			name:        "tx hash not hex",
			destination: dest(6),
			legacy:      legacyAddr(4),
			amount:      etn(1),
			txID:        entities.TxID(testTxBase + "zzzz"),
			expected:    InvalidTransactionID,
		},
		{
			name:        "duplicate tx hash",
			destination: dest(6),
			legacy:      legacyAddr(4),
			amount:      etn(1),
			txID:        txHash(2),
			expected:    DuplicateTransaction,
		},
		{
			name:        "duplicate checked before mapping",
			destination: dest(6),
			legacy:      legacyAddr(2),
			amount:      etn(1),
			txID:        txHash(2),
			expected:    DuplicateTransaction,
		},
		{
			name:        "legacy address mapped to a different address",
			destination: dest(6),
			legacy:      legacyAddr(2),
			amount:      etn(1),
			txID:        txHash(7),
			expected:    LegacyAddressAlreadyMapped,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.RecordTransfer(tc.destination, tc.legacy, tc.amount, tc.txID, true)
			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok, "expected a rejection, got %v", err)
			assert.Equal(t, tc.expected, kind)
		})
	}
	assert.Equal(t, uint64(1), l.TotalTxCount())
}

func TestRejectedTransferLeavesNoTrace(t *testing.T) {
	l, sink := newFundedLedger(t, etn(1000))
	_, err := l.RecordTransfer(dest(1), legacyAddr(1), etn(1), txHash(1), true)
	require.NoError(t, err)

	legacies := []entities.LegacyAddress{legacyAddr(1), legacyAddr(2), legacyAddr(3)}
	addrs := []common.Address{dest(1), dest(2), dest(3)}
	before := takeSnapshot(t, l, legacies, addrs)
	eventsBefore := len(sink.all())

	attempts := []func() error{
		func() error {
			_, err := l.RecordTransfer(dest(3), legacyAddr(3), etn(5000), txHash(3), true)
			return err
		},
		func() error {
			_, err := l.RecordTransfer(dest(3), "etnk", etn(1), txHash(3), true)
			return err
		},
		func() error {
			_, err := l.RecordTransfer(common.Address{}, legacyAddr(3), etn(1), txHash(3), true)
			return err
		},
		func() error {
			_, err := l.RecordTransfer(dest(3), legacyAddr(3), etn(1), "37af", true)
			return err
		},
		func() error {
			_, err := l.RecordTransfer(dest(3), legacyAddr(3), etn(1), txHash(1), true)
			return err
		},
		func() error {
			_, err := l.RecordTransfer(dest(2), legacyAddr(1), etn(1), txHash(4), true)
			return err
		},
	}
	for i, attempt := range attempts {
		err := attempt()
		require.True(t, IsRejection(err), "attempt %d: %v", i, err)
		assert.Equal(t, before, takeSnapshot(t, l, legacies, addrs), "attempt %d changed state", i)
	}
	assert.Len(t, sink.all(), eventsBefore)
}

func TestSamePairDoesNotDuplicateMapping(t *testing.T) {
	l, _ := newFundedLedger(t, etn(1000))
	d := dest(8)
	legacy := legacyAddr(6)

	for i := 11; i <= 13; i++ {
		receipt, err := l.RecordTransfer(d, legacy, etn(1), txHash(i), true)
		require.NoError(t, err)
		assert.Equal(t, i == 11, receipt.NewMapping)
	}

	assert.Equal(t, []entities.LegacyAddress{legacy}, l.LegacyAddresses(d))
	assert.Equal(t, []entities.TxID{txHash(11), txHash(12), txHash(13)}, l.TxHistory(d))
	assert.Equal(t, etn(3), l.AccountTotal(d))
	last, ok := l.LastTxID()
	require.True(t, ok)
	assert.Equal(t, txHash(13), last)
}

func TestOneDestinationManyLegacyAddresses(t *testing.T) {
	l, _ := newFundedLedger(t, etn(1000))
	d := dest(7)

	// the same destination may receive from several legacy addresses
	expected := []entities.LegacyAddress{}
	for i, n := range []int{5, 15, 25} {
		_, err := l.RecordTransfer(d, legacyAddr(n), etn(1), txHash(8+i), true)
		require.NoError(t, err)
		expected = append(expected, legacyAddr(n))
		assert.Equal(t, expected, l.LegacyAddresses(d))
	}
	assert.Equal(t, etn(3), l.AccountTotal(d))
	assert.Equal(t, etn(3), l.Vault().Credited(d))
}

func TestConservation(t *testing.T) {
	initial := etn(1000)
	l, _ := newFundedLedger(t, initial)

	sum := new(uint256.Int)
	n := 0
	for i := 1; i <= 20; i++ {
		amount := uint256.NewInt(uint64(i) * 1_000_000)
		_, err := l.RecordTransfer(dest(i%4+1), legacyAddr(i), amount, txHash(i), i%2 == 0)
		require.NoError(t, err)
		sum.Add(sum, amount)
		n++

		// a replay of every accepted transfer is refused
		_, err = l.RecordTransfer(dest(9), legacyAddr(100+i), amount, txHash(i), false)
		require.ErrorIs(t, err, ErrDuplicateTransaction)
	}

	assert.Equal(t, uint64(n), l.TotalTxCount())
	assert.Equal(t, sum, l.TotalAmount())
	assert.Equal(t, sum, new(uint256.Int).Sub(initial, l.Vault().Balance()))

	accounts := new(uint256.Int)
	for _, total := range l.AccountTotals() {
		accounts.Add(accounts, total)
	}
	assert.Equal(t, sum, accounts)

	stats := l.Stats()
	assert.Equal(t, initial, stats.TotalDeposited)
	assert.Equal(t, sum, stats.TotalReleased)
	assert.Equal(t, txHash(20), stats.LastTxID)
}

func TestFeeWaivedIsRecordedOnly(t *testing.T) {
	l, _ := newFundedLedger(t, etn(10))
	_, err := l.RecordTransfer(dest(1), legacyAddr(1), etn(1), txHash(1), true)
	require.NoError(t, err)
	_, err = l.RecordTransfer(dest(2), legacyAddr(2), etn(1), txHash(2), false)
	require.NoError(t, err)

	waived, ok := l.TxRecord(txHash(1))
	require.True(t, ok)
	assert.True(t, waived.FeeWaived)
	charged, ok := l.TxRecord(txHash(2))
	require.True(t, ok)
	assert.False(t, charged.FeeWaived)

	assert.Equal(t, etn(1), l.AccountTotal(dest(1)))
	assert.Equal(t, etn(1), l.AccountTotal(dest(2)))
	assert.Equal(t, etn(8), l.Vault().Balance())
}

func TestExactBalanceAndZeroAmount(t *testing.T) {
	l, _ := newFundedLedger(t, etn(2))

	_, err := l.RecordTransfer(dest(1), legacyAddr(1), etn(2), txHash(1), false)
	require.NoError(t, err)
	assert.True(t, l.Vault().Balance().IsZero())

	// a zero amount report still goes through the replay and mapping checks
	_, err = l.RecordTransfer(dest(1), legacyAddr(1), nil, txHash(2), false)
	require.NoError(t, err)
	amount, ok := l.TxAmount(txHash(2))
	require.True(t, ok)
	assert.True(t, amount.IsZero())

	_, err = l.RecordTransfer(dest(1), legacyAddr(1), uint256.NewInt(1), txHash(3), false)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestStorageFailureKeepsMemoryState(t *testing.T) {
	l, sink, db := newTestLedger(t)
	_, err := l.Deposit(dest(1), etn(10))
	require.NoError(t, err)
	before := takeSnapshot(t, l, []entities.LegacyAddress{legacyAddr(1)}, []common.Address{dest(2)})
	require.NoError(t, db.Close())

	_, err = l.RecordTransfer(dest(2), legacyAddr(1), etn(1), txHash(1), false)
	require.Error(t, err)
	assert.False(t, IsRejection(err))

	assert.Equal(t, before.Stats, l.Stats())
	_, ok := l.AddressFromLegacy(legacyAddr(1))
	assert.False(t, ok)
	assert.Empty(t, l.TxHistory(dest(2)))
	assert.Len(t, sink.all(), 1)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	l, _ := newFundedLedger(t, etn(10))
	_, err := l.RecordTransfer(dest(1), legacyAddr(1), etn(1), txHash(1), false)
	require.NoError(t, err)

	history := l.TxHistory(dest(1))
	history[0] = "tampered"
	total := l.AccountTotal(dest(1))
	total.SetUint64(0)
	amount, _ := l.TxAmount(txHash(1))
	amount.SetUint64(0)

	assert.Equal(t, []entities.TxID{txHash(1)}, l.TxHistory(dest(1)))
	assert.Equal(t, etn(1), l.AccountTotal(dest(1)))
	amount, _ = l.TxAmount(txHash(1))
	assert.Equal(t, etn(1), amount)
}

func TestConcurrentTransfersAndReads(t *testing.T) {
	l, _ := newFundedLedger(t, etn(1000))

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.RecordTransfer(dest(i%5+1), legacyAddr(i), etn(1), txHash(i), false)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			stats := l.Stats()
			// every snapshot is fully applied
			spent := new(uint256.Int).Sub(stats.TotalDeposited, stats.VaultBalance)
			assert.Equal(t, stats.TotalAmount, spent)
			assert.Equal(t, new(uint256.Int).Mul(uint256.NewInt(stats.TotalTxCount), oneETN), stats.TotalAmount)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), l.TotalTxCount())
	assert.Equal(t, etn(950), l.Vault().Balance())
}

func TestEventsMatchCommittedState(t *testing.T) {
	l, _ := newFundedLedger(t, etn(1000))

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.RecordTransfer(dest(i%4+1), legacyAddr(i), etn(1), txHash(i), false)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			events, err := l.Events(0, 0)
			if !assert.NoError(t, err) {
				return
			}
			for _, env := range events {
				transfer, ok := env.Event.(*entities.CrossChainTransfer)
				if !ok {
					continue
				}
				rec, found := l.TxRecord(transfer.TxID)
				if assert.True(t, found, "event %v has no record", env.Seq) {
					assert.Equal(t, transfer.Amount, rec.Amount)
				}
			}
		}()
	}
	wg.Wait()

	events, err := l.Events(0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 41)
}

func TestAccountView(t *testing.T) {
	l, _ := newFundedLedger(t, etn(100))
	_, err := l.RecordTransfer(dest(1), legacyAddr(1), etn(4), txHash(1), false)
	require.NoError(t, err)
	_, err = l.RecordTransfer(dest(1), legacyAddr(2), etn(6), txHash(2), true)
	require.NoError(t, err)

	view := l.Account(dest(1))
	assert.Equal(t, dest(1), view.Address)
	assert.Equal(t, []entities.LegacyAddress{legacyAddr(1), legacyAddr(2)}, view.LegacyAddresses)
	assert.Equal(t, []entities.TxID{txHash(1), txHash(2)}, view.TxHistory)
	assert.Equal(t, etn(10), view.Total)
	assert.Equal(t, etn(10), view.Credited)

	// the view is detached from ledger state
	view.Total.SetUint64(0)
	view.LegacyAddresses[0] = ""
	assert.Equal(t, etn(10), l.AccountTotal(dest(1)))
	assert.Equal(t, legacyAddr(1), l.LegacyAddresses(dest(1))[0])

	empty := l.Account(dest(3))
	assert.Empty(t, empty.LegacyAddresses)
	assert.Empty(t, empty.TxHistory)
	assert.True(t, empty.Total.IsZero())
	assert.True(t, empty.Credited.IsZero())

	var wg sync.WaitGroup
	for i := 3; i <= 30; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := l.RecordTransfer(dest(2), legacyAddr(i), etn(1), txHash(i), false)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			v := l.Account(dest(2))
			// one snapshot: history length, totals and credits agree
			assert.Equal(t, etn(uint64(len(v.TxHistory))), v.Total)
			assert.Equal(t, v.Total, v.Credited)
			assert.Len(t, v.LegacyAddresses, len(v.TxHistory))
		}()
	}
	wg.Wait()
}
