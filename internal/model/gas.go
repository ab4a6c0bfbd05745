package model

import "math/big"

// GasDetails is the per-transaction gas accounting recorded at the
// root of a call tree.
type GasDetails struct {
	// CoinbaseTransfer is the value of the first call in the trace
	// that pays the block beneficiary directly, if any.
	CoinbaseTransfer  *big.Int `json:"coinbase_transfer,omitempty"`
	GasUsed           uint64   `json:"gas_used"`
	EffectiveGasPrice uint64   `json:"effective_gas_price"`
	PriorityFee       uint64   `json:"priority_fee"`
	// BaseFeeMissing marks headers without a base fee; PriorityFee is
	// zero in that case rather than a bogus subtraction.
	BaseFeeMissing bool `json:"base_fee_missing,omitempty"`
}

// GasPaid returns the total wei paid for execution.
func (g GasDetails) GasPaid() *big.Int {
	paid := new(big.Int).SetUint64(g.GasUsed)
	return paid.Mul(paid, new(big.Int).SetUint64(g.EffectiveGasPrice))
}
