package utils

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ETNDecimals is the number of decimals of ETN on the destination ledger
const ETNDecimals = 18

var errNegativeAmount = errors.New("amount must not be negative")

// ConvertETNToWei converts an amount in ETN (e.g. "1.5") to wei (decimal 18)
func ConvertETNToWei(etnAmount string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(etnAmount)
	if err != nil {
		return nil, fmt.Errorf("Could not parse ETN amount %q - with err: %v", etnAmount, err)
	}
	if d.IsNegative() {
		return nil, errNegativeAmount
	}
	wei := d.Shift(ETNDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("ETN amount %q has more than %d decimals", etnAmount, ETNDecimals)
	}
	res, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("ETN amount %q does not fit in 256 bits", etnAmount)
	}
	return res, nil
}

// ConvertWeiToETN renders a wei amount in ETN without trailing zeros
func ConvertWeiToETN(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -ETNDecimals).String()
}

// ParseWei parses a base 10 wei amount
func ParseWei(weiAmount string) (*uint256.Int, error) {
	if weiAmount == "" {
		return new(uint256.Int), nil
	}
	res, err := uint256.FromDecimal(weiAmount)
	if err != nil {
		return nil, fmt.Errorf("Could not parse wei amount %q - with err: %v", weiAmount, err)
	}
	return res, nil
}
