package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrOracle indicates the price feed call failed outright.
	ErrOracle = errors.New("oracle: price feed unavailable")
	// ErrInvalidPrice indicates the feed answered with a non-positive price.
	ErrInvalidPrice = errors.New("oracle: price must be positive")
)

// PriceDecimals is the fixed decimal scale every feed answers at.
const PriceDecimals = 8

// Feed supplies the latest signed price for one collateral asset, scaled to
// PriceDecimals decimal places.
type Feed interface {
	LatestPrice() (*big.Int, error)
}

// Adapter wraps a Feed and is the single choke point through which the
// engines read prices. Validation lives here so a staleness or deviation
// rule can be added later without touching accounting code.
type Adapter struct {
	feed Feed
}

// NewAdapter constructs an adapter over the supplied feed.
func NewAdapter(feed Feed) *Adapter {
	return &Adapter{feed: feed}
}

// Price returns the validated latest price. Any feed failure or non-positive
// answer aborts the caller's operation.
func (a *Adapter) Price() (*big.Int, error) {
	if a == nil || a.feed == nil {
		return nil, ErrOracle
	}
	price, err := a.feed.LatestPrice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	return new(big.Int).Set(price), nil
}

// ManualFeed is an in-memory feed whose price is set by the operator. It backs
// local runs and deterministic tests.
type ManualFeed struct {
	mu    sync.RWMutex
	price *big.Int
}

// NewManualFeed constructs a feed pre-loaded with the supplied price.
func NewManualFeed(price *big.Int) *ManualFeed {
	feed := &ManualFeed{}
	feed.SetPrice(price)
	return feed
}

// SetPrice replaces the feed's answer.
func (f *ManualFeed) SetPrice(price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if price == nil {
		f.price = nil
		return
	}
	f.price = new(big.Int).Set(price)
}

// LatestPrice implements the Feed interface.
func (f *ManualFeed) LatestPrice() (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return nil, errors.New("manual feed: no price set")
	}
	return new(big.Int).Set(f.price), nil
}
