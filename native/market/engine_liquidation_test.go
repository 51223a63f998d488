package market

import (
	"errors"
	"math/big"
	"testing"

	"synthnet/crypto"
	"synthnet/native/token"
)

// underwater builds a position that was healthy at mint time and is unhealthy
// after a price move: 10 collateral deposited at 2000, 10000 minted, price now
// 1200 so the value is 12000 and HF = 1.2.
func underwater(t *testing.T) (*fixture, crypto.Address) {
	t.Helper()
	f := newFixture(t, price2000)
	borrower := makeAddress(0xB0)
	f.fund(t, borrower, amount("10000000000000000000"))
	if err := f.engine.DepositAndMint(borrower, amount("10000000000000000000"), amount("10000000000000000000000")); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	f.feed.SetPrice(amount("120000000000")) // 1200 at 8 decimals
	return f, borrower
}

// arm gives the liquidator synthetic holdings and the burn authorization the
// engine requires.
func (f *fixture) arm(t *testing.T, liquidator crypto.Address, holdings *big.Int) {
	t.Helper()
	if err := f.synthetic.Mint(f.module, liquidator, holdings); err != nil {
		t.Fatalf("mint synthetic to liquidator: %v", err)
	}
	if err := f.synthetic.Approve(liquidator, f.module, holdings); err != nil {
		t.Fatalf("approve burn: %v", err)
	}
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	f := newFixture(t, price2000)
	borrower := makeAddress(0xB1)
	liquidator := makeAddress(0xB2)
	f.fund(t, borrower, amount("10000000000000000000"))
	// Value 20000 against debt 13000: HF ~= 1.54, above the threshold.
	if err := f.engine.DepositAndMint(borrower, amount("10000000000000000000"), amount("13000000000000000000000")); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	f.arm(t, liquidator, amount("13000000000000000000000"))

	for _, cover := range []*big.Int{big.NewInt(1), amount("13000000000000000000000")} {
		if _, err := f.engine.Liquidate(liquidator, borrower, cover); !errors.Is(err, ErrPositionHealthy) {
			t.Fatalf("cover %s: expected ErrPositionHealthy, got %v", cover, err)
		}
	}
}

func TestLiquidateRestoresHealth(t *testing.T) {
	f, borrower := underwater(t)
	liquidator := makeAddress(0xB3)
	cover := amount("6000000000000000000000") // smallest cover that heals to exactly 1.5
	f.arm(t, liquidator, cover)

	receipt, err := f.engine.Liquidate(liquidator, borrower, cover)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if receipt.DebtPaid.Cmp(cover) != 0 {
		t.Fatalf("unexpected debt paid: %s", receipt.DebtPaid)
	}
	// 6000 / 1200 = 5 collateral units seized at spot, no bonus.
	if receipt.Seized.Cmp(amount("5000000000000000000")) != 0 {
		t.Fatalf("unexpected seizure: %s", receipt.Seized)
	}
	if receipt.ID == "" {
		t.Fatalf("expected a receipt identifier")
	}

	pos := f.position(t, borrower)
	if pos.Collateral.Cmp(amount("5000000000000000000")) != 0 || pos.Debt.Cmp(amount("4000000000000000000000")) != 0 {
		t.Fatalf("unexpected borrower position: collateral=%s debt=%s", pos.Collateral, pos.Debt)
	}

	hf, err := f.engine.HealthFactor(borrower)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf.Cmp(liquidationThreshold) < 0 {
		t.Fatalf("liquidation left position unhealthy: %s", hf)
	}

	if balance := f.synthetic.BalanceOf(liquidator); balance.Sign() != 0 {
		t.Fatalf("liquidator synthetic should be burned, got %s", balance)
	}
	if balance := f.collateral.BalanceOf(liquidator); balance.Cmp(amount("5000000000000000000")) != 0 {
		t.Fatalf("unexpected liquidator collateral: %s", balance)
	}
	if supply := f.synthetic.TotalSupply(); supply.Cmp(amount("4000000000000000000000")) != 0 {
		t.Fatalf("supply must track remaining debt, got %s", supply)
	}
}

func TestLiquidateTooSmallCoverAborts(t *testing.T) {
	f, borrower := underwater(t)
	liquidator := makeAddress(0xB4)
	cover := amount("5999000000000000000000") // one unit short of healing
	f.arm(t, liquidator, cover)

	if _, err := f.engine.Liquidate(liquidator, borrower, cover); !errors.Is(err, ErrPositionStillUnhealthy) {
		t.Fatalf("expected ErrPositionStillUnhealthy, got %v", err)
	}

	// Nothing may have moved.
	pos := f.position(t, borrower)
	if pos.Collateral.Cmp(amount("10000000000000000000")) != 0 || pos.Debt.Cmp(amount("10000000000000000000000")) != 0 {
		t.Fatalf("aborted liquidation mutated position: collateral=%s debt=%s", pos.Collateral, pos.Debt)
	}
	if balance := f.synthetic.BalanceOf(liquidator); balance.Cmp(cover) != 0 {
		t.Fatalf("aborted liquidation burned holdings: %s", balance)
	}
}

func TestLiquidateCoverPreconditions(t *testing.T) {
	f, borrower := underwater(t)
	liquidator := makeAddress(0xB5)
	f.arm(t, liquidator, amount("20000000000000000000000"))

	if _, err := f.engine.Liquidate(liquidator, borrower, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if _, err := f.engine.Liquidate(liquidator, borrower, amount("10000000000000000000001")); !errors.Is(err, ErrExceedsDebt) {
		t.Fatalf("expected ErrExceedsDebt, got %v", err)
	}
}

func TestLiquidateRequiresBurnAuthorization(t *testing.T) {
	f, borrower := underwater(t)
	liquidator := makeAddress(0xB6)
	cover := amount("6000000000000000000000")
	if err := f.synthetic.Mint(f.module, liquidator, cover); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Holdings but no approval.
	if _, err := f.engine.Liquidate(liquidator, borrower, cover); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}
	pos := f.position(t, borrower)
	if pos.Debt.Cmp(amount("10000000000000000000000")) != 0 {
		t.Fatalf("failed liquidation mutated debt: %s", pos.Debt)
	}
}

// A deep price collapse can leave a position that no permitted cover heals:
// seizure is capped by available collateral, so the strict postcondition makes
// it unliquidatable. The engine keeps the strict rule rather than absorbing
// the residual.
func TestResidualPositionUnliquidatable(t *testing.T) {
	f := newFixture(t, price2000)
	borrower := makeAddress(0xB7)
	liquidator := makeAddress(0xB8)
	f.fund(t, borrower, amount("10000000000000000000"))
	if err := f.engine.DepositAndMint(borrower, amount("10000000000000000000"), amount("13000000000000000000000")); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	f.feed.SetPrice(amount("100000000000")) // 1000: value 10000 vs debt 13000
	f.arm(t, liquidator, amount("13000000000000000000000"))

	// Full cover needs more collateral than the position holds.
	if _, err := f.engine.Liquidate(liquidator, borrower, amount("13000000000000000000000")); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	// Partial covers cannot lift HF back to the threshold.
	for _, cover := range []*big.Int{
		amount("5000000000000000000000"),
		amount("9000000000000000000000"),
		amount("9999000000000000000000"),
	} {
		if _, err := f.engine.Liquidate(liquidator, borrower, cover); !errors.Is(err, ErrPositionStillUnhealthy) {
			t.Fatalf("cover %s: expected ErrPositionStillUnhealthy, got %v", cover, err)
		}
	}
}
