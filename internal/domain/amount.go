package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative quantity of a single asset.
type Amount struct {
	Value decimal.Decimal
	Asset Asset
}

// NewAmount creates an amount, rejecting negative values.
func NewAmount(value decimal.Decimal, asset Asset) (Amount, error) {
	if value.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s %s", ErrNegativeAmount, value.String(), asset.Code)
	}

	return Amount{Value: value, Asset: asset}, nil
}

// ZeroAmount returns a zero amount of the given asset.
func ZeroAmount(asset Asset) Amount {
	return Amount{Value: decimal.Zero, Asset: asset}
}

// Add returns a + other.
func (a Amount) Add(other Amount) (Amount, error) {
	if err := a.sameAsset(other); err != nil {
		return Amount{}, err
	}

	return Amount{Value: a.Value.Add(other.Value), Asset: a.Asset}, nil
}

// Sub returns a - other. The result must not be negative.
func (a Amount) Sub(other Amount) (Amount, error) {
	if err := a.sameAsset(other); err != nil {
		return Amount{}, err
	}

	return NewAmount(a.Value.Sub(other.Value), a.Asset)
}

// Mul scales the amount by a non-negative factor.
func (a Amount) Mul(factor decimal.Decimal) (Amount, error) {
	return NewAmount(a.Value.Mul(factor), a.Asset)
}

// Equal reports whether both amounts have the same asset and numerically equal values.
func (a Amount) Equal(other Amount) bool {
	return a.Asset == other.Asset && a.Value.Equal(other.Value)
}

// IsPositive reports whether the value is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Value.IsPositive()
}

func (a Amount) String() string {
	return a.Value.String() + " " + a.Asset.Code
}

func (a Amount) sameAsset(other Amount) error {
	if a.Asset != other.Asset {
		return fmt.Errorf("%w: %s and %s", ErrAssetMismatch, a.Asset.Code, other.Asset.Code)
	}

	return nil
}
