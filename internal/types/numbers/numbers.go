package numbers

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Canonical amounts are stored as NUMERIC(38,18); anything wider is rejected
// rather than rounded.
const (
	MaxPrecision      = 38
	MaxNativeDecimals = 18
)

var (
	ErrMalformedAmount = errors.New("malformed native amount")
	ErrNegativeAmount  = errors.New("negative native amount")
	ErrPrecisionLoss   = errors.New("amount exceeds native decimal width")
)

// ParseNativeAmount parses a provider-reported amount expressed in whole native
// units (e.g. "1.5" SOL) and verifies it fits the chain's decimal width.
func ParseNativeAmount(raw string, nativeDecimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "%q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrNegativeAmount, "%q", raw)
	}
	if d.Exponent() < -nativeDecimals {
		return decimal.Zero, errors.Wrapf(ErrPrecisionLoss, "%q has more than %d fractional digits", raw, nativeDecimals)
	}
	if int32(d.NumDigits()) > MaxPrecision {
		return decimal.Zero, errors.Wrapf(ErrPrecisionLoss, "%q exceeds %d significant digits", raw, MaxPrecision)
	}
	return d, nil
}

// FromBaseUnits converts an integer base-unit amount (e.g. lamports, wei) into
// whole native units. The input must be a non-negative integer string.
func FromBaseUnits(raw string, nativeDecimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "%q", raw)
	}
	if d.Exponent() < 0 {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "%q is not an integer base-unit amount", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrNegativeAmount, "%q", raw)
	}
	return d.Shift(-nativeDecimals), nil
}
