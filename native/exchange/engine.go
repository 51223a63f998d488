package exchange

import (
	"errors"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"synthnet/core/events"
	"synthnet/crypto"
	nativecommon "synthnet/native/common"
	"synthnet/native/market"
)

const moduleName = "exchange"

var (
	ErrZeroAmount = errors.New("exchange: amount must be positive")
	// ErrInvalidPrice rejects rate computation when either market price is
	// non-positive.
	ErrInvalidPrice = errors.New("exchange: market price must be positive")
	// ErrInsufficientLiquidity rejects swaps the float cannot pay out.
	ErrInsufficientLiquidity = errors.New("exchange: insufficient float liquidity")
)

// rateScale is the 18-decimal fixed-point scale of the cross rate.
var rateScale = func() *big.Int {
	v, _ := new(big.Int).SetString("1000000000000000000", 10)
	return v
}()

// Asset selects one of the layer's two synthetic assets.
type Asset string

const (
	AssetA Asset = "A"
	AssetB Asset = "B"
)

// MarketView is the slice of a market engine the exchange reads: its oracle
// price and its per-user projection. The exchange never touches collateral or
// debt state.
type MarketView interface {
	Name() string
	Price() (*big.Int, error)
	UserDetails(addr crypto.Address) (*market.UserDetails, error)
}

// SyntheticLedger is the balance surface of a synthetic asset ledger.
type SyntheticLedger interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
	Symbol() string
}

// SwapReceipt summarises a completed swap.
type SwapReceipt struct {
	ID        string
	Direction string
	AmountIn  *big.Int
	AmountOut *big.Int
	Rate      *big.Int
}

// UserDetails aggregates a user's standing across both markets and the two
// synthetic balances.
type UserDetails struct {
	MarketA  *market.UserDetails
	MarketB  *market.UserDetails
	BalanceA *big.Int
	BalanceB *big.Int
}

// Engine routes between the two markets' synthetic assets at the
// oracle-implied cross rate. It holds no collateral and never mints or burns:
// swaps are zero-sum against a pre-funded float held at the engine's own
// module address. Swaps serialize first-come-first-served against the float.
type Engine struct {
	mu            sync.Mutex
	moduleAddress crypto.Address
	marketA       MarketView
	marketB       MarketView
	assetA        SyntheticLedger
	assetB        SyntheticLedger
	emitter       events.Emitter
	pauses        nativecommon.PauseView
}

// NewEngine constructs the exchange layer over the two market views and their
// synthetic ledgers.
func NewEngine(moduleAddr crypto.Address, marketA, marketB MarketView, assetA, assetB SyntheticLedger) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		marketA:       marketA,
		marketB:       marketB,
		assetA:        assetA,
		assetB:        assetB,
		emitter:       events.NoopEmitter{},
	}
}

// ModuleAddress returns the account holding the float.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

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

// Rate returns units of A per unit of B at 18 decimals: priceB * 1e18 / priceA.
func (e *Engine) Rate() (*big.Int, error) {
	priceA, err := e.marketA.Price()
	if err != nil {
		return nil, err
	}
	priceB, err := e.marketB.Price()
	if err != nil {
		return nil, err
	}
	if priceA == nil || priceA.Sign() <= 0 || priceB == nil || priceB.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	rate := new(big.Int).Mul(priceB, rateScale)
	return rate.Quo(rate, priceA), nil
}

// SwapAtoB exchanges amountIn of synthetic A for synthetic B at the oracle
// rate. The caller must have authorized the engine to debit asset A; the
// payout comes from the engine's own float of asset B.
func (e *Engine) SwapAtoB(caller crypto.Address, amountIn *big.Int) (*SwapReceipt, error) {
	return e.swap(caller, amountIn, "AtoB")
}

// SwapBtoA mirrors SwapAtoB in the opposite direction.
func (e *Engine) SwapBtoA(caller crypto.Address, amountIn *big.Int) (*SwapReceipt, error) {
	return e.swap(caller, amountIn, "BtoA")
}

func (e *Engine) swap(caller crypto.Address, amountIn *big.Int, direction string) (*SwapReceipt, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rate, err := e.Rate()
	if err != nil {
		return nil, err
	}

	in, out := e.assetA, e.assetB
	amountOut := new(big.Int).Mul(amountIn, rateScale)
	amountOut.Quo(amountOut, rate)
	if direction == "BtoA" {
		in, out = e.assetB, e.assetA
		amountOut = new(big.Int).Mul(amountIn, rate)
		amountOut.Quo(amountOut, rateScale)
	}
	if amountOut.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	// No slippage curve: every swap clears at the oracle-implied rate, so a
	// large swap may drain the float entirely.
	if out.BalanceOf(e.moduleAddress).Cmp(amountOut) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	if err := in.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amountIn); err != nil {
		return nil, err
	}
	if err := out.Transfer(e.moduleAddress, caller, amountOut); err != nil {
		_ = in.Transfer(e.moduleAddress, caller, amountIn)
		return nil, err
	}

	receipt := &SwapReceipt{
		ID:        uuid.NewString(),
		Direction: direction,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		Rate:      rate,
	}
	e.emit(events.Swapped{
		Account:   caller,
		Direction: direction,
		AmountIn:  receipt.AmountIn,
		AmountOut: receipt.AmountOut,
		Rate:      rate,
		ReceiptID: receipt.ID,
	})
	return receipt, nil
}

// FundFloat tops up the layer's float with amount of the selected asset,
// pulled from the funder under allowance.
func (e *Engine) FundFloat(funder crypto.Address, asset Asset, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	ledger := e.assetA
	if asset == AssetB {
		ledger = e.assetB
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ledger.TransferFrom(e.moduleAddress, funder, e.moduleAddress, amount); err != nil {
		return err
	}
	e.emit(events.FloatFunded{Funder: funder, Asset: ledger.Symbol(), Amount: amount})
	return nil
}

// Float returns the spendable balances backing each swap direction.
func (e *Engine) Float() (*big.Int, *big.Int) {
	return e.assetA.BalanceOf(e.moduleAddress), e.assetB.BalanceOf(e.moduleAddress)
}

// UserDetails aggregates the user's positions in both markets with their two
// synthetic balances.
func (e *Engine) UserDetails(addr crypto.Address) (*UserDetails, error) {
	detailsA, err := e.marketA.UserDetails(addr)
	if err != nil {
		return nil, err
	}
	detailsB, err := e.marketB.UserDetails(addr)
	if err != nil {
		return nil, err
	}
	return &UserDetails{
		MarketA:  detailsA,
		MarketB:  detailsB,
		BalanceA: e.assetA.BalanceOf(addr),
		BalanceB: e.assetB.BalanceOf(addr),
	}, nil
}

func (e *Engine) emit(ev events.Event) {
	e.emitter.Emit(ev)
}
