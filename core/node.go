package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"synthnet/config"
	"synthnet/core/events"
	"synthnet/core/types"
	"synthnet/crypto"
	"synthnet/native/exchange"
	"synthnet/native/market"
	"synthnet/native/oracle"
	"synthnet/native/token"
	"synthnet/observability/metrics"
	"synthnet/storage"
)

var (
	// ErrUnknownMarket is returned when an operation names a market the node
	// does not run.
	ErrUnknownMarket = errors.New("core: unknown market")
	// ErrUnknownToken is returned when an operation names a token symbol the
	// node does not track.
	ErrUnknownToken = errors.New("core: unknown token")
)

// ModuleAddress derives the deterministic account address owned by a native
// module. Module accounts hold float and act as token spenders; nothing signs
// for them.
func ModuleAddress(name string) crypto.Address {
	h := ethcrypto.Keccak256([]byte("synthnet/module/" + name))
	return crypto.NewAddress(crypto.SynPrefix, h[12:])
}

// PauseSet is the mutable pause switchboard shared by every native module.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet seeds the set with the modules paused in configuration.
func NewPauseSet(modules []string) *PauseSet {
	p := &PauseSet{paused: make(map[string]bool)}
	for _, m := range modules {
		p.paused[m] = true
	}
	return p
}

// IsPaused reports whether the named module is paused.
func (p *PauseSet) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// SetPaused flips the pause switch for a module.
func (p *PauseSet) SetPaused(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[module] = true
		return
	}
	delete(p.paused, module)
}

// Snapshot lists the currently paused modules.
func (p *PauseSet) Snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.paused))
	for m := range p.paused {
		out = append(out, m)
	}
	return out
}

// Market bundles one synthetic market with the ledgers and price feed it runs
// on.
type Market struct {
	Engine     *market.Engine
	Collateral *token.Ledger
	Synthetic  *token.Ledger
	Feed       *oracle.ManualFeed
}

// Node owns the node-level state: the key-value store, the token ledgers, the
// two market engines and the exchange layer over them. All RPC traffic lands
// here.
type Node struct {
	log      *slog.Logger
	db       storage.Database
	cfg      *config.Config
	pauses   *PauseSet
	recorder *events.Recorder
	treasury crypto.Address

	markets  map[string]*Market
	order    [2]string
	tokens   map[string]*token.Ledger
	exchange *exchange.Engine
	metrics  *metrics.MarketMetrics
}

// NewNode wires the full module graph from configuration. The treasury module
// account is the mint authority for collateral tokens; each market engine is
// the sole authority for its synthetic.
func NewNode(cfg *config.Config, db storage.Database, log *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("core: config must not be nil")
	}
	if db == nil {
		return nil, errors.New("core: database must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	n := &Node{
		log:      log,
		db:       db,
		cfg:      cfg,
		pauses:   NewPauseSet(cfg.PausedModules),
		recorder: events.NewRecorder(1024),
		treasury: ModuleAddress("treasury"),
		markets:  make(map[string]*Market),
		tokens:   make(map[string]*token.Ledger),
		metrics:  metrics.Market(),
	}
	mktA, err := n.buildMarket(cfg.MarketA)
	if err != nil {
		return nil, err
	}
	mktB, err := n.buildMarket(cfg.MarketB)
	if err != nil {
		return nil, err
	}
	n.order = [2]string{cfg.MarketA.Name, cfg.MarketB.Name}

	xchg := exchange.NewEngine(ModuleAddress("exchange"), mktA.Engine, mktB.Engine, mktA.Synthetic, mktB.Synthetic)
	xchg.SetEmitter(n.recorder)
	xchg.SetPauses(n.pauses)
	n.exchange = xchg
	return n, nil
}

func (n *Node) buildMarket(mc config.MarketConfig) (*Market, error) {
	price, err := mc.Price()
	if err != nil {
		return nil, err
	}
	engineAddr := ModuleAddress("market/" + mc.Name)

	collateral := token.NewLedger(mc.CollateralName, mc.CollateralSymbol, 18)
	if err := collateral.SetAuthority(n.treasury); err != nil {
		return nil, err
	}
	synthetic := token.NewLedger(mc.SyntheticName, mc.SyntheticSymbol, 18)
	if err := synthetic.SetAuthority(engineAddr); err != nil {
		return nil, err
	}
	feed := oracle.NewManualFeed(price)

	eng := market.NewEngine(mc.Name, engineAddr, collateral, synthetic, oracle.NewAdapter(feed))
	eng.SetState(market.NewStore(n.db, mc.Name))
	eng.SetEmitter(n.recorder)
	eng.SetPauses(n.pauses)

	mkt := &Market{Engine: eng, Collateral: collateral, Synthetic: synthetic, Feed: feed}
	n.markets[mc.Name] = mkt
	if err := n.registerToken(collateral); err != nil {
		return nil, err
	}
	if err := n.registerToken(synthetic); err != nil {
		return nil, err
	}
	return mkt, nil
}

func (n *Node) registerToken(l *token.Ledger) error {
	if _, ok := n.tokens[l.Symbol()]; ok {
		return fmt.Errorf("core: duplicate token symbol %q", l.Symbol())
	}
	n.tokens[l.Symbol()] = l
	return nil
}

// Market resolves a market by name.
func (n *Node) Market(name string) (*Market, error) {
	mkt, ok := n.markets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarket, name)
	}
	return mkt, nil
}

// Token resolves a ledger by symbol.
func (n *Node) Token(symbol string) (*token.Ledger, error) {
	l, ok := n.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
	}
	return l, nil
}

// DepositCollateral credits collateral to the user's position in the named
// market.
func (n *Node) DepositCollateral(marketName string, user crypto.Address, amount *big.Int) error {
	mkt, err := n.Market(marketName)
	if err != nil {
		return err
	}
	if err := mkt.Engine.DepositCollateral(user, amount); err != nil {
		n.fail(marketName, "deposit", err)
		return err
	}
	n.metrics.ObserveDeposit(marketName)
	n.log.Info("collateral deposited", "market", marketName, "user", user.String(), "amount", amount.String())
	return nil
}

// DepositAndMint deposits collateral and mints synthetic debt in one step.
func (n *Node) DepositAndMint(marketName string, user crypto.Address, collateralAmount, mintAmount *big.Int) error {
	mkt, err := n.Market(marketName)
	if err != nil {
		return err
	}
	if err := mkt.Engine.DepositAndMint(user, collateralAmount, mintAmount); err != nil {
		n.fail(marketName, "depositAndMint", err)
		return err
	}
	n.metrics.ObserveDeposit(marketName)
	n.metrics.ObserveMint(marketName)
	n.log.Info("synthetic minted", "market", marketName, "user", user.String(),
		"collateral", collateralAmount.String(), "minted", mintAmount.String())
	return nil
}

// BurnAndWithdraw repays synthetic debt and releases collateral in one step.
func (n *Node) BurnAndWithdraw(marketName string, user crypto.Address, burnAmount, withdrawAmount *big.Int) error {
	mkt, err := n.Market(marketName)
	if err != nil {
		return err
	}
	if err := mkt.Engine.BurnAndWithdraw(user, burnAmount, withdrawAmount); err != nil {
		n.fail(marketName, "burnAndWithdraw", err)
		return err
	}
	n.metrics.ObserveBurn(marketName)
	n.log.Info("synthetic burned", "market", marketName, "user", user.String(),
		"burned", burnAmount.String(), "withdrawn", withdrawAmount.String())
	return nil
}

// Liquidate repays part of an unhealthy borrower's debt from the liquidator's
// balance and seizes the matching collateral.
func (n *Node) Liquidate(marketName string, liquidator, borrower crypto.Address, debtToCover *big.Int) (*market.LiquidationReceipt, error) {
	mkt, err := n.Market(marketName)
	if err != nil {
		return nil, err
	}
	receipt, err := mkt.Engine.Liquidate(liquidator, borrower, debtToCover)
	if err != nil {
		n.fail(marketName, "liquidate", err)
		return nil, err
	}
	n.metrics.ObserveLiquidation(marketName)
	n.log.Info("position liquidated", "market", marketName, "liquidator", liquidator.String(),
		"borrower", borrower.String(), "debtPaid", receipt.DebtPaid.String(), "seized", receipt.Seized.String(),
		"receipt", receipt.ID)
	return receipt, nil
}

// CollateralValue prices a user's collateral in the named market.
func (n *Node) CollateralValue(marketName string, user crypto.Address) (*big.Int, error) {
	mkt, err := n.Market(marketName)
	if err != nil {
		return nil, err
	}
	return mkt.Engine.CollateralValue(user)
}

// HealthFactor computes a user's health factor in the named market.
func (n *Node) HealthFactor(marketName string, user crypto.Address) (*big.Int, error) {
	mkt, err := n.Market(marketName)
	if err != nil {
		return nil, err
	}
	return mkt.Engine.HealthFactor(user)
}

// UserDetails projects a user's full standing in the named market.
func (n *Node) UserDetails(marketName string, user crypto.Address) (*market.UserDetails, error) {
	mkt, err := n.Market(marketName)
	if err != nil {
		return nil, err
	}
	return mkt.Engine.UserDetails(user)
}

// SetPrice moves the named market's manual price feed. Operator surface only.
func (n *Node) SetPrice(marketName string, price *big.Int) error {
	mkt, err := n.Market(marketName)
	if err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return oracle.ErrInvalidPrice
	}
	mkt.Feed.SetPrice(price)
	n.log.Info("price updated", "market", marketName, "price", price.String())
	return nil
}

// Rate returns the oracle-implied cross rate between the two synthetics.
func (n *Node) Rate() (*big.Int, error) {
	return n.exchange.Rate()
}

// SwapAtoB swaps the caller's market A synthetic for market B synthetic.
func (n *Node) SwapAtoB(caller crypto.Address, amountIn *big.Int) (*exchange.SwapReceipt, error) {
	receipt, err := n.exchange.SwapAtoB(caller, amountIn)
	return n.finishSwap(caller, receipt, err)
}

// SwapBtoA swaps the caller's market B synthetic for market A synthetic.
func (n *Node) SwapBtoA(caller crypto.Address, amountIn *big.Int) (*exchange.SwapReceipt, error) {
	receipt, err := n.exchange.SwapBtoA(caller, amountIn)
	return n.finishSwap(caller, receipt, err)
}

func (n *Node) finishSwap(caller crypto.Address, receipt *exchange.SwapReceipt, err error) (*exchange.SwapReceipt, error) {
	if err != nil {
		n.fail("exchange", "swap", err)
		return nil, err
	}
	n.metrics.ObserveSwap(receipt.Direction)
	n.observeFloat()
	n.log.Info("swap executed", "caller", caller.String(), "direction", receipt.Direction,
		"amountIn", receipt.AmountIn.String(), "amountOut", receipt.AmountOut.String(), "receipt", receipt.ID)
	return receipt, nil
}

// FundFloat moves synthetic from the funder into the exchange float.
func (n *Node) FundFloat(funder crypto.Address, asset exchange.Asset, amount *big.Int) error {
	if err := n.exchange.FundFloat(funder, asset, amount); err != nil {
		n.fail("exchange", "fundFloat", err)
		return err
	}
	n.observeFloat()
	n.log.Info("float funded", "funder", funder.String(), "asset", string(asset), "amount", amount.String())
	return nil
}

// Float reports the exchange's payout balances in both synthetics.
func (n *Node) Float() (*big.Int, *big.Int) {
	return n.exchange.Float()
}

// ExchangeUserDetails aggregates a user's standing across both markets.
func (n *Node) ExchangeUserDetails(user crypto.Address) (*exchange.UserDetails, error) {
	return n.exchange.UserDetails(user)
}

// FundCollateral mints collateral to an account from the treasury authority.
// Development faucet; gated behind operator auth at the RPC layer.
func (n *Node) FundCollateral(marketName string, to crypto.Address, amount *big.Int) error {
	mkt, err := n.Market(marketName)
	if err != nil {
		return err
	}
	if err := mkt.Collateral.Mint(n.treasury, to, amount); err != nil {
		n.fail(marketName, "fundCollateral", err)
		return err
	}
	n.log.Info("collateral funded", "market", marketName, "to", to.String(), "amount", amount.String())
	return nil
}

// Pause flips the pause switch for a native module.
func (n *Node) Pause(module string, paused bool) {
	n.pauses.SetPaused(module, paused)
	n.log.Info("module pause updated", "module", module, "paused", paused)
}

// Events returns up to n of the latest emitted events.
func (n *Node) Events(limit int) []*types.Event {
	return n.recorder.Recent(limit)
}

// MarketInfo describes one market for clients.
type MarketInfo struct {
	Name             string `json:"name"`
	ModuleAddress    string `json:"moduleAddress"`
	CollateralSymbol string `json:"collateralSymbol"`
	SyntheticSymbol  string `json:"syntheticSymbol"`
	Price            string `json:"price"`
}

// Info describes the node's static topology plus the current pause state.
type Info struct {
	Markets         []MarketInfo `json:"markets"`
	ExchangeAddress string       `json:"exchangeAddress"`
	TreasuryAddress string       `json:"treasuryAddress"`
	PausedModules   []string     `json:"pausedModules"`
}

// Info reports the node topology: module addresses clients must approve as
// spenders, token symbols and live prices.
func (n *Node) Info() Info {
	info := Info{
		ExchangeAddress: n.exchange.ModuleAddress().String(),
		TreasuryAddress: n.treasury.String(),
		PausedModules:   n.pauses.Snapshot(),
	}
	for _, name := range n.order {
		mkt := n.markets[name]
		price := ""
		if p, err := mkt.Engine.Price(); err == nil {
			price = p.String()
		}
		info.Markets = append(info.Markets, MarketInfo{
			Name:             name,
			ModuleAddress:    mkt.Engine.ModuleAddress().String(),
			CollateralSymbol: mkt.Collateral.Symbol(),
			SyntheticSymbol:  mkt.Synthetic.Symbol(),
			Price:            price,
		})
	}
	return info
}

// Close releases the node's storage handle.
func (n *Node) Close() {
	n.db.Close()
}

func (n *Node) fail(module, method string, err error) {
	n.metrics.ObserveFailure(module, method)
	n.log.Warn("operation rejected", "module", module, "method", method, "error", err)
}

func (n *Node) observeFloat() {
	floatA, floatB := n.exchange.Float()
	n.metrics.SetFloat(n.markets[n.order[0]].Synthetic.Symbol(), toFloat(floatA))
	n.metrics.SetFloat(n.markets[n.order[1]].Synthetic.Symbol(), toFloat(floatB))
}

func toFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
