package market

import "math/big"

// Position is a user's collateral/debt pair within one market. Positions are
// created implicitly on first deposit and may decay to zero but are never
// destroyed.
type Position struct {
	// Collateral is the amount of collateral-asset units held in custody for
	// the user, in the asset's native decimals.
	Collateral *big.Int
	// Debt is the outstanding synthetic debt minted against the collateral.
	Debt *big.Int
}

// Clone returns a deep copy so state transitions can be computed and validated
// before anything is committed.
func (p *Position) Clone() *Position {
	if p == nil {
		return &Position{Collateral: big.NewInt(0), Debt: big.NewInt(0)}
	}
	clone := &Position{Collateral: big.NewInt(0), Debt: big.NewInt(0)}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	return clone
}

// UserDetails is the read projection exposed for a position.
type UserDetails struct {
	Collateral      *big.Int
	CollateralValue *big.Int
	Debt            *big.Int
	HealthFactor    *big.Int
}

// LiquidationReceipt summarises a completed liquidation.
type LiquidationReceipt struct {
	ID       string
	DebtPaid *big.Int
	Seized   *big.Int
}
