package domain

import "strings"

// Asset identifies what an amount is denominated in (a currency, a commodity, a token).
// Two assets are the same asset when their codes are equal.
type Asset struct {
	Code string `json:"code"`
}

// NewAsset creates an asset, rejecting blank codes.
func NewAsset(code string) (Asset, error) {
	if err := ValidateAssetCode(code); err != nil {
		return Asset{}, err
	}

	return Asset{Code: strings.TrimSpace(code)}, nil
}

func (a Asset) String() string {
	return a.Code
}
