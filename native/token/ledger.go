package token

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"synthnet/crypto"
)

var (
	ErrZeroAmount            = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotAuthority          = errors.New("token: caller is not the mint authority")
	ErrAuthoritySet          = errors.New("token: mint authority already configured")
)

// Ledger is an in-memory fungible balance ledger with allowance-style
// third-party authorization and a single mint/burn authority. One ledger
// instance backs each collateral and synthetic asset.
type Ledger struct {
	mu          sync.RWMutex
	name        string
	symbol      string
	decimals    uint8
	authority   crypto.Address
	hasAuth     bool
	balances    map[string]*big.Int
	allowances  map[string]map[string]*big.Int
	totalSupply *big.Int
}

// NewLedger constructs an empty ledger for the named asset.
func NewLedger(name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		name:        strings.TrimSpace(name),
		symbol:      strings.TrimSpace(symbol),
		decimals:    decimals,
		balances:    make(map[string]*big.Int),
		allowances:  make(map[string]map[string]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

func (l *Ledger) Name() string    { return l.name }
func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

// SetAuthority binds the mint/burn authority. It may be assigned exactly once,
// at wiring time, before the ledger serves traffic.
func (l *Ledger) SetAuthority(addr crypto.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hasAuth {
		return ErrAuthoritySet
	}
	l.authority = addr
	l.hasAuth = true
	return nil
}

func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(addr))
}

// Transfer moves amount from the caller's balance to the recipient.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// Approve grants spender the right to move up to amount from owner's balance.
// A zero amount clears the grant.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	grants, ok := l.allowances[key(owner)]
	if !ok {
		grants = make(map[string]*big.Int)
		l.allowances[key(owner)] = grants
	}
	grants[key(spender)] = new(big.Int).Set(amount)
	return nil
}

func (l *Ledger) Allowance(owner, spender crypto.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.allowance(owner, spender))
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming the owner's allowance.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowance(from, spender).Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.consumeAllowance(from, spender, amount)
	return nil
}

// Mint issues new units to the recipient. Only the configured authority may mint.
func (l *Ledger) Mint(caller, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isAuthority(caller) {
		return ErrNotAuthority
	}
	balance := l.balance(to)
	l.balances[key(to)] = new(big.Int).Add(balance, amount)
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
	return nil
}

// Burn destroys amount from the caller's own balance.
func (l *Ledger) Burn(owner crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burn(owner, amount)
}

// BurnFrom destroys amount from owner's balance on behalf of the caller,
// consuming the owner's allowance.
func (l *Ledger) BurnFrom(caller, owner crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowance(owner, caller).Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.burn(owner, amount); err != nil {
		return err
	}
	l.consumeAllowance(owner, caller, amount)
	return nil
}

func (l *Ledger) burn(owner crypto.Address, amount *big.Int) error {
	balance := l.balance(owner)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[key(owner)] = new(big.Int).Sub(balance, amount)
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	return nil
}

func (l *Ledger) move(from, to crypto.Address, amount *big.Int) error {
	balance := l.balance(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[key(from)] = new(big.Int).Sub(balance, amount)
	l.balances[key(to)] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

func (l *Ledger) consumeAllowance(owner, spender crypto.Address, amount *big.Int) {
	granted := l.allowance(owner, spender)
	l.allowances[key(owner)][key(spender)] = new(big.Int).Sub(granted, amount)
}

func (l *Ledger) balance(addr crypto.Address) *big.Int {
	if b, ok := l.balances[key(addr)]; ok && b != nil {
		return b
	}
	return big.NewInt(0)
}

func (l *Ledger) allowance(owner, spender crypto.Address) *big.Int {
	grants, ok := l.allowances[key(owner)]
	if !ok {
		return big.NewInt(0)
	}
	if granted, ok := grants[key(spender)]; ok && granted != nil {
		return granted
	}
	return big.NewInt(0)
}

func (l *Ledger) isAuthority(addr crypto.Address) bool {
	return l.hasAuth && string(l.authority.Bytes()) == string(addr.Bytes())
}

func key(addr crypto.Address) string {
	return string(addr.Bytes())
}
