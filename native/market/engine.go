package market

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	"synthnet/core/events"
	"synthnet/crypto"
	nativecommon "synthnet/native/common"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	ErrZeroAmount = errors.New("market: amount must be positive")
	// ErrInsufficientCollateralValue gates minting: the deposited collateral
	// value must cover the requested mint in full.
	ErrInsufficientCollateralValue = errors.New("market: collateral value below requested mint")
	// ErrInsufficientDebtHoldings rejects burns larger than the outstanding debt.
	ErrInsufficientDebtHoldings = errors.New("market: burn exceeds outstanding debt")
	// ErrWithdrawExceedsBurn keeps a voluntary withdraw from lowering the
	// position's collateral ratio: withdrawn value may not exceed retired debt.
	ErrWithdrawExceedsBurn = errors.New("market: withdrawn value exceeds retired debt")
	// ErrPositionHealthy rejects liquidation attempts against positions at or
	// above the threshold.
	ErrPositionHealthy = errors.New("market: position not eligible for liquidation")
	// ErrExceedsDebt rejects liquidations covering more debt than outstanding.
	ErrExceedsDebt = errors.New("market: cover amount exceeds outstanding debt")
	// ErrInsufficientCollateral rejects seizures or withdrawals beyond the
	// collateral actually held.
	ErrInsufficientCollateral = errors.New("market: insufficient collateral in position")
	// ErrPositionStillUnhealthy aborts liquidations whose effects would leave
	// the position below the threshold.
	ErrPositionStillUnhealthy = errors.New("market: liquidation would not restore position health")
)

// engineState abstracts position persistence so the engine can run against an
// in-memory table in tests and a KV-backed store in the node.
type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(addr crypto.Address, pos *Position) error
}

// CollateralToken is the slice of the collateral asset ledger the engine uses.
type CollateralToken interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
}

// SyntheticToken is the mint/burn authority surface of the synthetic ledger.
type SyntheticToken interface {
	Mint(caller, to crypto.Address, amount *big.Int) error
	Burn(owner crypto.Address, amount *big.Int) error
	BurnFrom(caller, owner crypto.Address, amount *big.Int) error
	TotalSupply() *big.Int
}

// PriceSource yields a validated positive price at 8 decimals.
type PriceSource interface {
	Price() (*big.Int, error)
}

// Engine owns one market's collateral/debt ledger. The same engine type is
// instantiated once per market with its own collateral asset, synthetic asset
// and oracle handles. Every mutating call executes as one serializable
// transaction: effects are computed on copies, validated, and committed only
// when the whole operation succeeds.
type Engine struct {
	mu            sync.Mutex
	name          string
	moduleAddress crypto.Address
	collateral    CollateralToken
	synthetic     SyntheticToken
	oracle        PriceSource
	state         engineState
	emitter       events.Emitter
	pauses        nativecommon.PauseView
}

// NewEngine constructs a market engine bound to its custody address and asset
// handles.
func NewEngine(name string, moduleAddr crypto.Address, collateral CollateralToken, synthetic SyntheticToken, oracle PriceSource) *Engine {
	return &Engine{
		name:          strings.TrimSpace(name),
		moduleAddress: moduleAddr,
		collateral:    collateral,
		synthetic:     synthetic,
		oracle:        oracle,
		emitter:       events.NoopEmitter{},
	}
}

// Name returns the market identifier.
func (e *Engine) Name() string {
	if e == nil {
		return ""
	}
	return e.name
}

// ModuleAddress returns the engine's custody account.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// SetState wires the engine to its position persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter wires the engine to an event sink. A nil emitter restores the
// discard-all default.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// DepositCollateral pulls amount collateral units from the user into custody
// and credits the position. Debt is unchanged so no solvency check applies.
func (e *Engine) DepositCollateral(user crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, e.name); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.ensurePosition(user)
	if err != nil {
		return err
	}

	// The position write precedes the token move: a failed move restores
	// the prior snapshot, while a failed write after the move would leave
	// custody and recorded state out of step.
	next := pos.Clone()
	next.Collateral = new(big.Int).Add(next.Collateral, amount)
	if err := e.state.PutPosition(user, next); err != nil {
		return err
	}
	if err := e.collateral.TransferFrom(e.moduleAddress, user, e.moduleAddress, amount); err != nil {
		_ = e.state.PutPosition(user, pos)
		return err
	}

	e.emit(events.CollateralDeposited{Market: e.name, Account: user, Amount: amount})
	return nil
}

// DepositAndMint pulls collateral and mints synthetic units against it in one
// transaction. The freshly deposited collateral must be worth at least the
// requested mint at the current price. Collateral is pulled before the mint is
// credited so a reentrant caller can never observe synthetic balance without
// the matching collateral debit.
func (e *Engine) DepositAndMint(user crypto.Address, collateralAmount, mintAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, e.name); err != nil {
		return err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if mintAmount == nil || mintAmount.Sign() <= 0 {
		return ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.oracle.Price()
	if err != nil {
		return err
	}
	if collateralValue(collateralAmount, price).Cmp(mintAmount) < 0 {
		return ErrInsufficientCollateralValue
	}

	pos, err := e.ensurePosition(user)
	if err != nil {
		return err
	}

	next := pos.Clone()
	next.Collateral = new(big.Int).Add(next.Collateral, collateralAmount)
	next.Debt = new(big.Int).Add(next.Debt, mintAmount)
	if err := e.state.PutPosition(user, next); err != nil {
		return err
	}
	if err := e.collateral.TransferFrom(e.moduleAddress, user, e.moduleAddress, collateralAmount); err != nil {
		_ = e.state.PutPosition(user, pos)
		return err
	}
	if err := e.synthetic.Mint(e.moduleAddress, user, mintAmount); err != nil {
		// Unwind the collateral pull so the failed call leaves no trace.
		_ = e.collateral.Transfer(e.moduleAddress, user, collateralAmount)
		_ = e.state.PutPosition(user, pos)
		return err
	}

	e.emit(events.SyntheticMinted{Market: e.name, Account: user, Collateral: collateralAmount, Minted: mintAmount})
	return nil
}

// BurnAndWithdraw retires burnAmount of the caller's debt and returns
// withdrawAmount collateral units. The withdrawn collateral value may not
// exceed the retired debt, so a voluntary operation can never lower the
// position's collateral ratio.
func (e *Engine) BurnAndWithdraw(user crypto.Address, burnAmount, withdrawAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, e.name); err != nil {
		return err
	}
	if burnAmount == nil || burnAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if withdrawAmount == nil || withdrawAmount.Sign() <= 0 {
		return ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.ensurePosition(user)
	if err != nil {
		return err
	}
	if burnAmount.Cmp(pos.Debt) > 0 {
		return ErrInsufficientDebtHoldings
	}
	if withdrawAmount.Cmp(pos.Collateral) > 0 {
		return ErrInsufficientCollateral
	}

	price, err := e.oracle.Price()
	if err != nil {
		return err
	}
	if collateralValue(withdrawAmount, price).Cmp(burnAmount) > 0 {
		return ErrWithdrawExceedsBurn
	}

	next := pos.Clone()
	next.Collateral = new(big.Int).Sub(next.Collateral, withdrawAmount)
	next.Debt = new(big.Int).Sub(next.Debt, burnAmount)
	if err := e.state.PutPosition(user, next); err != nil {
		return err
	}
	if err := e.synthetic.Burn(user, burnAmount); err != nil {
		_ = e.state.PutPosition(user, pos)
		return err
	}
	if err := e.collateral.Transfer(e.moduleAddress, user, withdrawAmount); err != nil {
		// Remint so the failed call leaves no trace.
		_ = e.synthetic.Mint(e.moduleAddress, user, burnAmount)
		_ = e.state.PutPosition(user, pos)
		return err
	}

	e.emit(events.SyntheticBurned{Market: e.name, Account: user, Burned: burnAmount, Withdrawn: withdrawAmount})
	return nil
}

// Liquidate lets any caller repay part of an unhealthy position's debt and
// seize collateral of equal value at spot price. The position's health factor
// must be below the threshold on entry and at or above it after the effects
// apply, otherwise the whole call aborts with no state change. The liquidator
// must hold the covered debt and have authorized the engine to burn it.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, debtToCover *big.Int) (*LiquidationReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, e.name); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.ensurePosition(borrower)
	if err != nil {
		return nil, err
	}

	price, err := e.oracle.Price()
	if err != nil {
		return nil, err
	}

	value := collateralValue(pos.Collateral, price)
	if healthFactor(value, pos.Debt).Cmp(liquidationThreshold) >= 0 {
		return nil, ErrPositionHealthy
	}
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if debtToCover.Cmp(pos.Debt) > 0 {
		return nil, ErrExceedsDebt
	}

	seize := seizableCollateral(debtToCover, price)
	if seize.Cmp(pos.Collateral) > 0 {
		return nil, ErrInsufficientCollateral
	}

	// Compute the post-liquidation position on a copy and validate the
	// postcondition before anything moves.
	next := pos.Clone()
	next.Collateral = new(big.Int).Sub(next.Collateral, seize)
	next.Debt = new(big.Int).Sub(next.Debt, debtToCover)
	nextValue := collateralValue(next.Collateral, price)
	if healthFactor(nextValue, next.Debt).Cmp(liquidationThreshold) < 0 {
		return nil, ErrPositionStillUnhealthy
	}

	if err := e.state.PutPosition(borrower, next); err != nil {
		return nil, err
	}
	if err := e.synthetic.BurnFrom(e.moduleAddress, liquidator, debtToCover); err != nil {
		_ = e.state.PutPosition(borrower, pos)
		return nil, err
	}
	if seize.Sign() > 0 {
		if err := e.collateral.Transfer(e.moduleAddress, liquidator, seize); err != nil {
			_ = e.synthetic.Mint(e.moduleAddress, liquidator, debtToCover)
			_ = e.state.PutPosition(borrower, pos)
			return nil, err
		}
	}

	receipt := &LiquidationReceipt{
		ID:       uuid.NewString(),
		DebtPaid: new(big.Int).Set(debtToCover),
		Seized:   seize,
	}
	e.emit(events.Liquidated{
		Market:     e.name,
		Liquidator: liquidator,
		Borrower:   borrower,
		DebtPaid:   receipt.DebtPaid,
		Seized:     receipt.Seized,
		ReceiptID:  receipt.ID,
	})
	return receipt, nil
}

// CollateralValue returns the position's collateral valued at the current
// price. A zero position values at zero.
func (e *Engine) CollateralValue(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	if pos.Collateral.Sign() == 0 {
		return big.NewInt(0), nil
	}
	price, err := e.oracle.Price()
	if err != nil {
		return nil, err
	}
	return collateralValue(pos.Collateral, price), nil
}

// HealthFactor returns the position's health factor at the current price. The
// sentinel maximum is returned when the position carries no debt.
func (e *Engine) HealthFactor(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	if pos.Debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	price, err := e.oracle.Price()
	if err != nil {
		return nil, err
	}
	return healthFactor(collateralValue(pos.Collateral, price), pos.Debt), nil
}

// UserDetails returns the collateral, its value, the debt and the health
// factor for a position in one read.
func (e *Engine) UserDetails(user crypto.Address) (*UserDetails, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	details := &UserDetails{
		Collateral:      new(big.Int).Set(pos.Collateral),
		CollateralValue: big.NewInt(0),
		Debt:            new(big.Int).Set(pos.Debt),
		HealthFactor:    new(big.Int).Set(maxHealthFactor),
	}
	if pos.Collateral.Sign() == 0 && pos.Debt.Sign() == 0 {
		return details, nil
	}
	price, err := e.oracle.Price()
	if err != nil {
		return nil, err
	}
	details.CollateralValue = collateralValue(pos.Collateral, price)
	details.HealthFactor = healthFactor(details.CollateralValue, pos.Debt)
	return details, nil
}

// Price exposes the engine's validated oracle read for the exchange layer.
func (e *Engine) Price() (*big.Int, error) {
	if e == nil {
		return nil, errNilState
	}
	return e.oracle.Price()
}

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{}
	}
	if pos.Collateral == nil {
		pos.Collateral = big.NewInt(0)
	}
	if pos.Debt == nil {
		pos.Debt = big.NewInt(0)
	}
	return pos, nil
}

func (e *Engine) emit(ev events.Event) {
	e.emitter.Emit(ev)
}
