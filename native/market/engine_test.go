package market

import (
	"errors"
	"math/big"
	"testing"

	"synthnet/crypto"
	nativecommon "synthnet/native/common"
	"synthnet/native/oracle"
	"synthnet/native/token"
)

func makeAddress(seed byte) crypto.Address {
	var raw [20]byte
	raw[0] = seed
	return crypto.NewAddress(crypto.SynPrefix, raw[:])
}

func amount(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid amount literal " + value)
	}
	return v
}

type fixture struct {
	engine     *Engine
	collateral *token.Ledger
	synthetic  *token.Ledger
	feed       *oracle.ManualFeed
	module     crypto.Address
	faucet     crypto.Address
}

func newFixture(t *testing.T, price *big.Int) *fixture {
	t.Helper()
	module := makeAddress(0x01)
	faucet := makeAddress(0x02)

	collateral := token.NewLedger("Collateral A", "colA", 18)
	if err := collateral.SetAuthority(faucet); err != nil {
		t.Fatalf("collateral authority: %v", err)
	}
	synthetic := token.NewLedger("Synthetic A", "synA", 18)
	if err := synthetic.SetAuthority(module); err != nil {
		t.Fatalf("synthetic authority: %v", err)
	}

	feed := oracle.NewManualFeed(price)
	engine := NewEngine("market-a", module, collateral, synthetic, oracle.NewAdapter(feed))
	engine.SetState(NewMemState())

	return &fixture{
		engine:     engine,
		collateral: collateral,
		synthetic:  synthetic,
		feed:       feed,
		module:     module,
		faucet:     faucet,
	}
}

// fund mints collateral to the user and approves the engine to pull it.
func (f *fixture) fund(t *testing.T, user crypto.Address, balance *big.Int) {
	t.Helper()
	if err := f.collateral.Mint(f.faucet, user, balance); err != nil {
		t.Fatalf("fund collateral: %v", err)
	}
	if err := f.collateral.Approve(user, f.module, balance); err != nil {
		t.Fatalf("approve collateral: %v", err)
	}
}

func (f *fixture) position(t *testing.T, user crypto.Address) *Position {
	t.Helper()
	pos, err := f.engine.ensurePosition(user)
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	return pos
}

var price2000 = amount("200000000000") // 2000 at 8 decimals

func TestDepositCollateralUpdatesPosition(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA0)
	f.fund(t, user, amount("10000000000000000000"))

	if err := f.engine.DepositCollateral(user, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if err := f.engine.DepositCollateral(user, amount("4000000000000000000")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	pos := f.position(t, user)
	if pos.Collateral.Cmp(amount("4000000000000000000")) != 0 {
		t.Fatalf("unexpected collateral: %s", pos.Collateral)
	}
	if pos.Debt.Sign() != 0 {
		t.Fatalf("deposit must not create debt, got %s", pos.Debt)
	}
	if held := f.collateral.BalanceOf(f.module); held.Cmp(amount("4000000000000000000")) != 0 {
		t.Fatalf("unexpected custody balance: %s", held)
	}
}

func TestDepositCollateralRequiresAllowance(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA1)
	if err := f.collateral.Mint(f.faucet, user, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := f.engine.DepositCollateral(user, big.NewInt(100))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}
	if pos := f.position(t, user); pos.Collateral.Sign() != 0 {
		t.Fatalf("failed deposit must not credit collateral, got %s", pos.Collateral)
	}
}

func TestDepositAndMintBoundary(t *testing.T) {
	// 1 collateral unit at price 2000 is worth exactly 2000 synthetic units.
	f := newFixture(t, price2000)
	user := makeAddress(0xA2)
	f.fund(t, user, amount("1000000000000000000"))

	if err := f.engine.DepositAndMint(user, amount("1000000000000000000"), amount("2000000000000000000001")); !errors.Is(err, ErrInsufficientCollateralValue) {
		t.Fatalf("expected ErrInsufficientCollateralValue, got %v", err)
	}
	if balance := f.synthetic.BalanceOf(user); balance.Sign() != 0 {
		t.Fatalf("failed mint must not credit synthetic, got %s", balance)
	}

	if err := f.engine.DepositAndMint(user, amount("1000000000000000000"), amount("2000000000000000000000")); err != nil {
		t.Fatalf("mint at exact value: %v", err)
	}
	if balance := f.synthetic.BalanceOf(user); balance.Cmp(amount("2000000000000000000000")) != 0 {
		t.Fatalf("unexpected synthetic balance: %s", balance)
	}
}

func TestHealthFactorProjection(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA3)

	hf, err := f.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor on empty position: %v", err)
	}
	if hf.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("expected sentinel max for zero debt, got %s", hf)
	}

	// Deposit 10 units at 2000 (value 20000), mint 13000: HF ~= 1.538.
	f.fund(t, user, amount("10000000000000000000"))
	if err := f.engine.DepositAndMint(user, amount("10000000000000000000"), amount("13000000000000000000000")); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}

	value, err := f.engine.CollateralValue(user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if value.Cmp(amount("20000000000000000000000")) != 0 {
		t.Fatalf("unexpected collateral value: %s", value)
	}

	hf, err = f.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf.Cmp(amount("1538461538461538461")) != 0 {
		t.Fatalf("unexpected health factor: %s", hf)
	}

	details, err := f.engine.UserDetails(user)
	if err != nil {
		t.Fatalf("user details: %v", err)
	}
	if details.Debt.Cmp(amount("13000000000000000000000")) != 0 {
		t.Fatalf("unexpected debt: %s", details.Debt)
	}
	if details.HealthFactor.Cmp(hf) != 0 {
		t.Fatalf("details health factor mismatch: %s vs %s", details.HealthFactor, hf)
	}
}

func TestBurnAndWithdrawGates(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA4)
	f.fund(t, user, amount("10000000000000000000"))
	if err := f.engine.DepositAndMint(user, amount("10000000000000000000"), amount("10000000000000000000000")); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}

	// Burn above outstanding debt.
	if err := f.engine.BurnAndWithdraw(user, amount("10000000000000000000001"), big.NewInt(1)); !errors.Is(err, ErrInsufficientDebtHoldings) {
		t.Fatalf("expected ErrInsufficientDebtHoldings, got %v", err)
	}
	// Withdrawn value above retired debt: 1 unit is worth 2000, burning 1999.
	if err := f.engine.BurnAndWithdraw(user, amount("1999000000000000000000"), amount("1000000000000000000")); !errors.Is(err, ErrWithdrawExceedsBurn) {
		t.Fatalf("expected ErrWithdrawExceedsBurn, got %v", err)
	}
	// Withdraw above held collateral.
	if err := f.engine.BurnAndWithdraw(user, amount("10000000000000000000000"), amount("10000000000000000000001")); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestRoundTripLeavesZeroPosition(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA5)
	deposit := amount("10000000000000000000")
	minted := amount("20000000000000000000000") // 10 * 2000

	f.fund(t, user, deposit)
	if err := f.engine.DepositAndMint(user, deposit, minted); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	if err := f.engine.BurnAndWithdraw(user, minted, deposit); err != nil {
		t.Fatalf("burn and withdraw: %v", err)
	}

	pos := f.position(t, user)
	if pos.Collateral.Sign() != 0 || pos.Debt.Sign() != 0 {
		t.Fatalf("expected zero position, got collateral=%s debt=%s", pos.Collateral, pos.Debt)
	}
	if balance := f.collateral.BalanceOf(user); balance.Cmp(deposit) != 0 {
		t.Fatalf("collateral not fully returned: %s", balance)
	}
	if supply := f.synthetic.TotalSupply(); supply.Sign() != 0 {
		t.Fatalf("expected zero synthetic supply, got %s", supply)
	}
}

func TestSyntheticSupplyMatchesAggregateDebt(t *testing.T) {
	f := newFixture(t, price2000)
	alice := makeAddress(0xA6)
	bob := makeAddress(0xA7)
	f.fund(t, alice, amount("10000000000000000000"))
	f.fund(t, bob, amount("10000000000000000000"))

	if err := f.engine.DepositAndMint(alice, amount("10000000000000000000"), amount("12000000000000000000000")); err != nil {
		t.Fatalf("alice mint: %v", err)
	}
	if err := f.engine.DepositAndMint(bob, amount("10000000000000000000"), amount("7000000000000000000000")); err != nil {
		t.Fatalf("bob mint: %v", err)
	}
	if err := f.engine.BurnAndWithdraw(bob, amount("3000000000000000000000"), amount("1000000000000000000")); err != nil {
		t.Fatalf("bob burn: %v", err)
	}

	total := new(big.Int).Add(f.position(t, alice).Debt, f.position(t, bob).Debt)
	if supply := f.synthetic.TotalSupply(); supply.Cmp(total) != 0 {
		t.Fatalf("supply %s does not match aggregate debt %s", supply, total)
	}
}

func TestOracleFailureAbortsOperation(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA8)
	f.fund(t, user, amount("1000000000000000000"))

	f.feed.SetPrice(big.NewInt(0))
	err := f.engine.DepositAndMint(user, amount("1000000000000000000"), big.NewInt(1))
	if !errors.Is(err, oracle.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if pos := f.position(t, user); pos.Collateral.Sign() != 0 || pos.Debt.Sign() != 0 {
		t.Fatalf("failed operation must leave position untouched: %+v", pos)
	}
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func TestGuardBlocksMutation(t *testing.T) {
	f := newFixture(t, price2000)
	user := makeAddress(0xA9)
	f.fund(t, user, amount("1000000000000000000"))
	f.engine.SetPauses(stubPauseView{modules: map[string]bool{"market-a": true}})

	if err := f.engine.DepositCollateral(user, big.NewInt(100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if balance := f.collateral.BalanceOf(user); balance.Cmp(amount("1000000000000000000")) != 0 {
		t.Fatalf("paused deposit must not move funds, got %s", balance)
	}
}
