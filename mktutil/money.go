package mktutil

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Prices cross the API as ether decimal strings while the contracts only
// speak wei. LAVA uses the usual 18 decimals.

const etherDecimals = 18

// ParseEther converts a user-supplied ether amount ("1.5") into wei.
// Rejects empty, unparseable and non-positive amounts.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if !d.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.New("amount has more than 18 decimal places")
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as an ether decimal string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return ""
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
