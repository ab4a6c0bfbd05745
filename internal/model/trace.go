package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogEvent is one log emitted during a call step.
type LogEvent struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// TraceRecord is one low-level call step of a transaction's execution.
// Immutable once produced by the acquisition layer.
type TraceRecord struct {
	From         common.Address `json:"from"`
	To           common.Address `json:"to"`
	Value        *hexutil.Big   `json:"value,omitempty"`
	Input        hexutil.Bytes  `json:"input"`
	Output       hexutil.Bytes  `json:"output"`
	TraceAddress []int          `json:"trace_address"`
	GasUsed      uint64         `json:"gas_used"`
	Logs         []LogEvent     `json:"logs,omitempty"`
}

// Selector returns the 4-byte call signature, or false when the
// calldata is too short to carry one.
func (r *TraceRecord) Selector() ([4]byte, bool) {
	var sig [4]byte
	if len(r.Input) < 4 {
		return sig, false
	}
	copy(sig[:], r.Input[:4])
	return sig, true
}

// TxTrace is the ordered execution trace of one transaction plus its
// gas accounting scalars, as materialized by the acquisition layer.
type TxTrace struct {
	TxHash            common.Hash   `json:"tx_hash"`
	TxIndex           uint64        `json:"tx_index"`
	GasUsed           uint64        `json:"gas_used"`
	EffectiveGasPrice uint64        `json:"effective_gas_price"`
	Private           bool          `json:"private,omitempty"`
	Traces            []TraceRecord `json:"traces"`
}

// BlockTrace bundles the traces of one block for JSONL transport
// between the trace and classify commands.
type BlockTrace struct {
	BlockNumber uint64    `json:"block_number"`
	BlockHash   string    `json:"block_hash"`
	Beneficiary string    `json:"beneficiary"`
	BaseFee     string    `json:"base_fee,omitempty"`
	Timestamp   uint64    `json:"timestamp"`
	Txs         []TxTrace `json:"txs"`
}

// Header reconstructs the header fields classification needs from a
// transported block trace.
func (b *BlockTrace) Header() *types.Header {
	header := &types.Header{
		Number:   new(big.Int).SetUint64(b.BlockNumber),
		Coinbase: common.HexToAddress(b.Beneficiary),
		Time:     b.Timestamp,
	}
	if b.BaseFee != "" {
		if fee, ok := new(big.Int).SetString(b.BaseFee, 10); ok {
			header.BaseFee = fee
		}
	}
	return header
}
