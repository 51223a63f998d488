package rpc

import (
	"net/http"
	"strings"

	"synthnet/crypto"
	"synthnet/native/market"
)

type marketAmountParams struct {
	Market string `json:"market"`
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type marketMintParams struct {
	Market     string `json:"market"`
	From       string `json:"from"`
	Collateral string `json:"collateral"`
	Mint       string `json:"mint"`
}

type marketBurnParams struct {
	Market   string `json:"market"`
	From     string `json:"from"`
	Burn     string `json:"burn"`
	Withdraw string `json:"withdraw"`
}

type marketLiquidateParams struct {
	Market      string `json:"market"`
	Liquidator  string `json:"liquidator"`
	Borrower    string `json:"borrower"`
	DebtToCover string `json:"debtToCover"`
}

type marketAccountParams struct {
	Market  string `json:"market"`
	Address string `json:"address"`
}

type marketPriceParams struct {
	Market string `json:"market"`
	Price  string `json:"price"`
}

type marketFundParams struct {
	Market string `json:"market"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type statusResult struct {
	Status string `json:"status"`
}

type valueResult struct {
	Market  string `json:"market"`
	Address string `json:"address"`
	Value   string `json:"value"`
}

type liquidationResult struct {
	ReceiptID string `json:"receiptId"`
	DebtPaid  string `json:"debtPaid"`
	Seized    string `json:"seized"`
}

type userDetailsResult struct {
	Market          string `json:"market"`
	Address         string `json:"address"`
	Collateral      string `json:"collateral"`
	CollateralValue string `json:"collateralValue"`
	Debt            string `json:"debt"`
	HealthFactor    string `json:"healthFactor"`
}

func userDetailsFromEngine(marketName, address string, details *market.UserDetails) userDetailsResult {
	return userDetailsResult{
		Market:          marketName,
		Address:         address,
		Collateral:      details.Collateral.String(),
		CollateralValue: details.CollateralValue.String(),
		Debt:            details.Debt.String(),
		HealthFactor:    details.HealthFactor.String(),
	}
}

func (s *Server) handleGetInfo(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	writeResult(w, req.ID, s.node.Info())
}

type eventsParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) {
	limit := 0
	if len(req.Params) == 1 {
		var input eventsParams
		if err := singleObjectParam(req, &input); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		limit = input.Limit
	} else if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	writeResult(w, req.ID, s.node.Events(limit))
}

func (s *Server) handleMarketDeposit(w http.ResponseWriter, req *RPCRequest) {
	var input marketAmountParams
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
	if err := s.node.DepositCollateral(input.Market, from, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "deposited"})
}

func (s *Server) handleMarketDepositAndMint(w http.ResponseWriter, req *RPCRequest) {
	var input marketMintParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeBech32(input.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	collateral, err := parseAmount(input.Collateral)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	mint, err := parseAmount(input.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.DepositAndMint(input.Market, from, collateral, mint); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "minted"})
}

func (s *Server) handleMarketBurnAndWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var input marketBurnParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeBech32(input.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	burn, err := parseAmount(input.Burn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	withdraw, err := parseAmount(input.Withdraw)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.BurnAndWithdraw(input.Market, from, burn, withdraw); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "burned"})
}

func (s *Server) handleMarketLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var input marketLiquidateParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidator, err := decodeBech32(input.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid liquidator address", err.Error())
		return
	}
	borrower, err := decodeBech32(input.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}
	cover, err := parseAmount(input.DebtToCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.node.Liquidate(input.Market, liquidator, borrower, cover)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, liquidationResult{
		ReceiptID: receipt.ID,
		DebtPaid:  receipt.DebtPaid.String(),
		Seized:    receipt.Seized.String(),
	})
}

func (s *Server) parseAccountParams(w http.ResponseWriter, req *RPCRequest) (string, crypto.Address, bool) {
	var input marketAccountParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "", crypto.Address{}, false
	}
	if strings.TrimSpace(input.Market) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "market required", nil)
		return "", crypto.Address{}, false
	}
	addr, err := decodeBech32(input.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return "", crypto.Address{}, false
	}
	return input.Market, addr, true
}

func (s *Server) handleMarketCollateralValue(w http.ResponseWriter, req *RPCRequest) {
	marketName, addr, ok := s.parseAccountParams(w, req)
	if !ok {
		return
	}
	value, err := s.node.CollateralValue(marketName, addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, valueResult{Market: marketName, Address: addr.String(), Value: value.String()})
}

func (s *Server) handleMarketHealthFactor(w http.ResponseWriter, req *RPCRequest) {
	marketName, addr, ok := s.parseAccountParams(w, req)
	if !ok {
		return
	}
	value, err := s.node.HealthFactor(marketName, addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, valueResult{Market: marketName, Address: addr.String(), Value: value.String()})
}

func (s *Server) handleMarketUserDetails(w http.ResponseWriter, req *RPCRequest) {
	marketName, addr, ok := s.parseAccountParams(w, req)
	if !ok {
		return
	}
	details, err := s.node.UserDetails(marketName, addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, userDetailsFromEngine(marketName, addr.String(), details))
}

func (s *Server) handleMarketSetPrice(w http.ResponseWriter, req *RPCRequest) {
	var input marketPriceParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount(input.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetPrice(input.Market, price); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "updated"})
}

func (s *Server) handleMarketFundCollateral(w http.ResponseWriter, req *RPCRequest) {
	var input marketFundParams
	if err := singleObjectParam(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := decodeBech32(input.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.FundCollateral(input.Market, to, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statusResult{Status: "funded"})
}
