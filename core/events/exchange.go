package events

import (
	"math/big"

	"synthnet/core/types"
	"synthnet/crypto"
)

const (
	// TypeSwapped is emitted when the exchange layer routes between the two
	// synthetic assets.
	TypeSwapped = "exchange.swapped"
	// TypeFloatFunded is emitted when the operator tops up the exchange float.
	TypeFloatFunded = "exchange.float_funded"
)

type Swapped struct {
	Account   crypto.Address
	Direction string
	AmountIn  *big.Int
	AmountOut *big.Int
	Rate      *big.Int
	ReceiptID string
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapped,
		Attributes: map[string]string{
			"account":   e.Account.String(),
			"direction": e.Direction,
			"amountIn":  bigString(e.AmountIn),
			"amountOut": bigString(e.AmountOut),
			"rate":      bigString(e.Rate),
			"receiptId": e.ReceiptID,
		},
	}
}

type FloatFunded struct {
	Funder crypto.Address
	Asset  string
	Amount *big.Int
}

func (FloatFunded) EventType() string { return TypeFloatFunded }

func (e FloatFunded) Event() *types.Event {
	return &types.Event{
		Type: TypeFloatFunded,
		Attributes: map[string]string{
			"funder": e.Funder.String(),
			"asset":  e.Asset,
			"amount": bigString(e.Amount),
		},
	}
}
