package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why a transfer report was rejected
type ErrorKind int

const (
	InsufficientFunds ErrorKind = iota + 1
	InvalidLegacyAddress
	InvalidDestination
	InvalidTransactionID
	DuplicateTransaction
	LegacyAddressAlreadyMapped
)

var errorKindNames = map[ErrorKind]string{
	InsufficientFunds:          "InsufficientFunds",
	InvalidLegacyAddress:       "InvalidLegacyAddress",
	InvalidDestination:         "InvalidDestination",
	InvalidTransactionID:       "InvalidTransactionId",
	DuplicateTransaction:       "DuplicateTransaction",
	LegacyAddressAlreadyMapped: "LegacyAddressAlreadyMapped",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// RejectionError is returned when a report fails validation. The ledger is
// left untouched and remains usable.
type RejectionError struct {
	Kind   ErrorKind
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Reason)
}

// Is matches any RejectionError of the same kind, so errors.Is(err, ErrDuplicateTransaction)
// works regardless of the reason text.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInsufficientFunds          = &RejectionError{Kind: InsufficientFunds, Reason: "Insufficient ETN balance in the bridge contract"}
	ErrInvalidLegacyAddress       = &RejectionError{Kind: InvalidLegacyAddress, Reason: "Invalid legacy ETN address"}
	ErrInvalidDestination         = &RejectionError{Kind: InvalidDestination, Reason: "Invalid address"}
	ErrInvalidTransactionID       = &RejectionError{Kind: InvalidTransactionID, Reason: "Invalid transaction hash"}
	ErrDuplicateTransaction       = &RejectionError{Kind: DuplicateTransaction, Reason: "Duplicate crosschain transaction"}
	ErrLegacyAddressAlreadyMapped = &RejectionError{Kind: LegacyAddressAlreadyMapped, Reason: "This legacy ETN address is already mapped to a different address"}

	// ErrAmountOverflow is returned by Deposit when the vault balance would not fit in 256 bits
	ErrAmountOverflow = errors.New("amount overflows vault balance")
)

// KindOf returns the rejection kind carried by err, if any
func KindOf(err error) (ErrorKind, bool) {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Kind, true
	}
	return 0, false
}

// IsRejection reports whether err is a validation rejection rather than an
// infrastructure failure. Rejected reports must not be retried as is.
func IsRejection(err error) bool {
	_, ok := KindOf(err)
	return ok
}
