package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"synthnet/crypto"
	"synthnet/native/exchange"
)

type exchangeSwapParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type exchangeFundParams struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type exchangeAccountParams struct {
	Address string `json:"address"`
}

type tokenBalanceParams struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

type tokenApproveParams struct {
	Symbol  string `json:"symbol"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type rateResult struct {
	Rate string `json:"rate"`
}

type floatResult struct {
	FloatA string `json:"floatA"`
	FloatB string `json:"floatB"`
}

type swapResult struct {
	ReceiptID string `json:"receiptId"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Rate      string `json:"rate"`
}

type exchangeUserDetailsResult struct {
	Address  string             `json:"address"`
	MarketA  *userDetailsResult `json:"marketA,omitempty"`
	MarketB  *userDetailsResult `json:"marketB,omitempty"`
	BalanceA string             `json:"balanceA"`
	BalanceB string             `json:"balanceB"`
}

type tokenBalanceResult struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleExchangeRate(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	rate, err := s.node.Rate()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rateResult{Rate: rate.String()})
}

func (s *Server) handleExchangeFloat(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	floatA, floatB := s.node.Float()
	writeResult(w, req.ID, floatResult{FloatA: floatA.String(), FloatB: floatB.String()})
}

func (s *Server) handleExchangeSwap(w http.ResponseWriter, req *RPCRequest, fn func(crypto.Address, *big.Int) (*exchange.SwapReceipt, error)) {
	var input exchangeSwapParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeBech32(input.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := fn(from, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapResult{
		ReceiptID: receipt.ID,
		Direction: receipt.Direction,
		AmountIn:  receipt.AmountIn.String(),
		AmountOut: receipt.AmountOut.String(),
		Rate:      receipt.Rate.String(),
	})
}

func (s *Server) handleExchangeFundFloat(w http.ResponseWriter, req *RPCRequest) {
	var input exchangeFundParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeBech32(input.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	var asset exchange.Asset
	switch strings.ToUpper(strings.TrimSpace(input.Asset)) {
	case "A":
		asset = exchange.AssetA
	case "B":
		asset = exchange.AssetB
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset must be \"A\" or \"B\"", nil)
		return
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.FundFloat(from, asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "funded"})
}

func (s *Server) handleExchangeUserDetails(w http.ResponseWriter, req *RPCRequest) {
	var input exchangeAccountParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeBech32(input.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	details, err := s.node.ExchangeUserDetails(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	info := s.node.Info()
	result := exchangeUserDetailsResult{
		Address:  addr.String(),
		BalanceA: details.BalanceA.String(),
		BalanceB: details.BalanceB.String(),
	}
	if details.MarketA != nil {
		a := userDetailsFromEngine(info.Markets[0].Name, addr.String(), details.MarketA)
		result.MarketA = &a
	}
	if details.MarketB != nil {
		b := userDetailsFromEngine(info.Markets[1].Name, addr.String(), details.MarketB)
		result.MarketB = &b
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var input tokenBalanceParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger, err := s.node.Token(input.Symbol)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	addr, err := decodeBech32(input.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	writeResult(w, req.ID, tokenBalanceResult{
		Symbol:  ledger.Symbol(),
		Address: addr.String(),
		Balance: ledger.BalanceOf(addr).String(),
	})
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, req *RPCRequest) {
	var input tokenApproveParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger, err := s.node.Token(input.Symbol)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	owner, err := decodeBech32(input.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	spender, err := decodeBech32(input.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	// Zero is a valid approval amount: it revokes the allowance.
	amount, ok := new(big.Int).SetString(strings.TrimSpace(input.Amount), 10)
	if !ok || amount.Sign() < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", input.Amount)
		return
	}
	if err := ledger.Approve(owner, spender, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "approved"})
}

func (s *Server) handleAdminSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var input pauseParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	module := strings.TrimSpace(input.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "module required", nil)
		return
	}
	s.node.Pause(module, input.Paused)
	writeResult(w, req.ID, statusResult{Status: "updated"})
}
