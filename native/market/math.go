package market

import "math/big"

var (
	// price feeds answer at 8 decimals, health factors at 18.
	priceScale = big.NewInt(100_000_000)
	hfScale    = mustBigInt("1000000000000000000")

	// liquidationThreshold is 1.5 expressed at 18 decimals. Positions below it
	// are liquidatable; a liquidation must restore at least this value.
	liquidationThreshold = mustBigInt("1500000000000000000")

	// maxHealthFactor is the sentinel returned for positions with no debt.
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// collateralValue converts a collateral amount to synthetic units at the
// supplied price: amount * price / 1e8.
func collateralValue(amount, price *big.Int) *big.Int {
	if amount == nil || amount.Sign() == 0 || price == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, priceScale)
}

// healthFactor returns value * 1e18 / debt, or the sentinel maximum when the
// position carries no debt.
func healthFactor(value, debt *big.Int) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor)
	}
	hf := new(big.Int).Mul(value, hfScale)
	return hf.Quo(hf, debt)
}

// seizableCollateral converts covered debt back to collateral units at spot:
// debtToCover * 1e8 / price. No liquidation discount is applied.
func seizableCollateral(debtToCover, price *big.Int) *big.Int {
	if debtToCover == nil || price == nil || price.Sign() == 0 {
		return big.NewInt(0)
	}
	seize := new(big.Int).Mul(debtToCover, priceScale)
	return seize.Quo(seize, price)
}
