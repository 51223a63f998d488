package events

import (
	"math/big"

	"synthnet/core/types"
	"synthnet/crypto"
)

const (
	// TypeCollateralDeposited is emitted when a user locks collateral in a market.
	TypeCollateralDeposited = "market.collateral_deposited"
	// TypeSyntheticMinted is emitted when a deposit-and-mint issues synthetic units.
	TypeSyntheticMinted = "market.minted"
	// TypeSyntheticBurned is emitted when a burn-and-withdraw retires debt.
	TypeSyntheticBurned = "market.burned"
	// TypeLiquidated is emitted when a liquidation seizes collateral.
	TypeLiquidated = "market.liquidated"
)

type CollateralDeposited struct {
	Market  string
	Account crypto.Address
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"market":  e.Market,
			"account": e.Account.String(),
			"amount":  bigString(e.Amount),
		},
	}
}

type SyntheticMinted struct {
	Market     string
	Account    crypto.Address
	Collateral *big.Int
	Minted     *big.Int
}

func (SyntheticMinted) EventType() string { return TypeSyntheticMinted }

func (e SyntheticMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeSyntheticMinted,
		Attributes: map[string]string{
			"market":     e.Market,
			"account":    e.Account.String(),
			"collateral": bigString(e.Collateral),
			"minted":     bigString(e.Minted),
		},
	}
}

type SyntheticBurned struct {
	Market    string
	Account   crypto.Address
	Burned    *big.Int
	Withdrawn *big.Int
}

func (SyntheticBurned) EventType() string { return TypeSyntheticBurned }

func (e SyntheticBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeSyntheticBurned,
		Attributes: map[string]string{
			"market":    e.Market,
			"account":   e.Account.String(),
			"burned":    bigString(e.Burned),
			"withdrawn": bigString(e.Withdrawn),
		},
	}
}

type Liquidated struct {
	Market     string
	Liquidator crypto.Address
	Borrower   crypto.Address
	DebtPaid  *big.Int
	Seized     *big.Int
	ReceiptID  string
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidated,
		Attributes: map[string]string{
			"market":     e.Market,
			"liquidator": e.Liquidator.String(),
			"borrower":   e.Borrower.String(),
			"debtPaid":   bigString(e.DebtPaid),
			"seized":     bigString(e.Seized),
			"receiptId":  e.ReceiptID,
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
