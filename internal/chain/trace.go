package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"mevscope/internal/model"
)

// rpcTraceFrame is one entry of a parity trace_block response.
type rpcTraceFrame struct {
	Action struct {
		From  common.Address `json:"from"`
		To    common.Address `json:"to"`
		Value *hexutil.Big   `json:"value"`
		Input hexutil.Bytes  `json:"input"`
		Gas   hexutil.Uint64 `json:"gas"`
	} `json:"action"`
	Result *struct {
		GasUsed hexutil.Uint64 `json:"gasUsed"`
		Output  hexutil.Bytes  `json:"output"`
	} `json:"result"`
	TraceAddress        []int       `json:"traceAddress"`
	TransactionHash     common.Hash `json:"transactionHash"`
	TransactionPosition uint64      `json:"transactionPosition"`
	Type                string      `json:"type"`
}

// AcquireBlock materializes everything the classification core needs
// for one block: the header plus per-transaction trace records with
// their logs and gas scalars. Runs strictly before classification.
func (c *Client) AcquireBlock(ctx context.Context, number uint64) (*model.BlockTrace, *types.Header, error) {
	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch header: %w", err)
	}

	frames, err := c.rawTraceBlock(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("trace block: %w", err)
	}

	receipts, err := c.BlockReceipts(ctx, number)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch receipts: %w", err)
	}
	receiptByHash := make(map[common.Hash]*types.Receipt, len(receipts))
	for _, receipt := range receipts {
		receiptByHash[receipt.TxHash] = receipt
	}

	// Group the flat frame list per transaction, preserving order.
	var order []common.Hash
	byTx := make(map[common.Hash][]rpcTraceFrame)
	for _, frame := range frames {
		if frame.Type != "call" {
			continue
		}
		if _, ok := byTx[frame.TransactionHash]; !ok {
			order = append(order, frame.TransactionHash)
		}
		byTx[frame.TransactionHash] = append(byTx[frame.TransactionHash], frame)
	}

	block := &model.BlockTrace{
		BlockNumber: number,
		BlockHash:   header.Hash().Hex(),
		Beneficiary: header.Coinbase.Hex(),
		Timestamp:   header.Time,
	}
	if header.BaseFee != nil {
		block.BaseFee = header.BaseFee.String()
	}

	for _, txHash := range order {
		tx := model.TxTrace{TxHash: txHash}
		receipt := receiptByHash[txHash]
		if receipt != nil {
			tx.TxIndex = uint64(receipt.TransactionIndex)
			tx.GasUsed = receipt.GasUsed
			if receipt.EffectiveGasPrice != nil && receipt.EffectiveGasPrice.IsUint64() {
				tx.EffectiveGasPrice = receipt.EffectiveGasPrice.Uint64()
			}
		}

		for _, frame := range byTx[txHash] {
			rec := model.TraceRecord{
				From:         frame.Action.From,
				To:           frame.Action.To,
				Value:        frame.Action.Value,
				Input:        frame.Action.Input,
				TraceAddress: frame.TraceAddress,
			}
			if frame.Result != nil {
				rec.Output = frame.Result.Output
				rec.GasUsed = uint64(frame.Result.GasUsed)
			}
			tx.Traces = append(tx.Traces, rec)
		}

		if receipt != nil {
			attachLogs(&tx, receipt.Logs)
		}

		block.Txs = append(block.Txs, tx)
	}

	return block, header, nil
}

// attachLogs links receipt logs to trace records. A log is attached to
// the first record that called into its emitting address; anything
// unmatched lands on the root record so no log is ever dropped.
func attachLogs(tx *model.TxTrace, logs []*types.Log) {
	if len(tx.Traces) == 0 {
		return
	}
	for _, log := range logs {
		event := model.LogEvent{
			Address: log.Address,
			Topics:  log.Topics,
			Data:    log.Data,
		}
		attached := false
		for i := range tx.Traces {
			rec := &tx.Traces[i]
			if rec.To == log.Address || rec.From == log.Address {
				rec.Logs = append(rec.Logs, event)
				attached = true
				break
			}
		}
		if !attached {
			tx.Traces[0].Logs = append(tx.Traces[0].Logs, event)
		}
	}
}
