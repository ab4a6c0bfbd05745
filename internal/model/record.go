package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ActionRecord is the flattened, storage-stable form of one classified
// node. Amounts are decimal strings to keep JSON and Postgres
// representations exact.
type ActionRecord struct {
	BlockNumber  uint64   `json:"block_number"`
	TxHash       string   `json:"tx_hash"`
	NodeIndex    uint64   `json:"node_index"`
	TraceAddress []int    `json:"trace_address"`
	Kind         string   `json:"kind"`
	Address      string   `json:"address"`
	Pool         string   `json:"pool,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	Recipient    string   `json:"recipient,omitempty"`
	Tokens       []string `json:"tokens,omitempty"`
	Amounts      []string `json:"amounts,omitempty"`
	Finalized    bool     `json:"finalized"`
}

// NewActionRecord flattens one classified action for storage.
func NewActionRecord(blockNumber uint64, txHash common.Hash, nodeIndex uint64, traceAddr []int, address common.Address, action Action, finalized bool) ActionRecord {
	rec := ActionRecord{
		BlockNumber:  blockNumber,
		TxHash:       txHash.Hex(),
		NodeIndex:    nodeIndex,
		TraceAddress: traceAddr,
		Kind:         string(action.Kind()),
		Address:      address.Hex(),
		Finalized:    finalized,
	}

	switch a := action.(type) {
	case Swap:
		rec.Pool = a.Pool.Hex()
		rec.From = a.From.Hex()
		rec.Tokens = []string{a.TokenIn.Hex(), a.TokenOut.Hex()}
		rec.Amounts = []string{a.AmountIn.String(), a.AmountOut.String()}
	case Mint:
		rec.Pool = a.Pool.Hex()
		rec.From = a.From.Hex()
		rec.Recipient = a.Recipient.Hex()
		rec.Tokens = addressStrings(a.Tokens)
		rec.Amounts = amountStrings(a.Amounts)
	case Burn:
		rec.Pool = a.Pool.Hex()
		rec.From = a.From.Hex()
		rec.Recipient = a.Recipient.Hex()
		rec.Tokens = addressStrings(a.Tokens)
		rec.Amounts = amountStrings(a.Amounts)
	case Transfer:
		rec.From = a.From.Hex()
		rec.To = a.To.Hex()
		rec.Tokens = []string{a.Token.Hex()}
		rec.Amounts = []string{a.Amount.String()}
	}

	return rec
}

// DynProtocolRecord is one dynamically discovered exchange address and
// its inferred token pair.
type DynProtocolRecord struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
}

func addressStrings(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Hex())
	}
	return out
}

func amountStrings(amounts []decimal.Decimal) []string {
	out := make([]string, 0, len(amounts))
	for _, amount := range amounts {
		out = append(out, amount.String())
	}
	return out
}
