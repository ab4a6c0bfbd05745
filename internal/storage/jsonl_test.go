package storage

import (
	"path/filepath"
	"testing"

	"mevscope/internal/model"
)

func TestBlockTraceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	sink := NewJsonlStorage(path)

	blocks := []model.BlockTrace{
		{BlockNumber: 100, Beneficiary: "0x0000000000000000000000000000000000000001", Timestamp: 1700000000},
		{BlockNumber: 101, Beneficiary: "0x0000000000000000000000000000000000000001", BaseFee: "7", Timestamp: 1700000012},
	}
	for _, block := range blocks {
		if err := sink.PutBlockTrace(block); err != nil {
			t.Fatalf("write block: %v", err)
		}
	}

	var read []model.BlockTrace
	err := ReadBlockTraces(path, func(block model.BlockTrace) error {
		read = append(read, block)
		return nil
	})
	if err != nil {
		t.Fatalf("read blocks: %v", err)
	}

	if len(read) != 2 {
		t.Fatalf("block count: got %d, want 2", len(read))
	}
	if read[0].BlockNumber != 100 || read[1].BlockNumber != 101 {
		t.Fatalf("block numbers: %d, %d", read[0].BlockNumber, read[1].BlockNumber)
	}

	header := read[1].Header()
	if header.BaseFee == nil || header.BaseFee.Int64() != 7 {
		t.Fatalf("reconstructed base fee: %v", header.BaseFee)
	}
	if header.Time != 1700000012 {
		t.Fatalf("reconstructed timestamp: %d", header.Time)
	}
}

func TestPutActionBatchAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.jsonl")
	sink := NewJsonlStorage(path)

	records := []model.ActionRecord{
		{BlockNumber: 1, TxHash: "0x01", Kind: "swap"},
		{BlockNumber: 1, TxHash: "0x02", Kind: "transfer"},
	}
	if err := sink.PutActionBatch(records); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := sink.PutActionBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	var lines int
	err := ReadBlockTraces(path, func(model.BlockTrace) error {
		lines++
		return nil
	})
	if err != nil {
		t.Fatalf("read lines: %v", err)
	}
	if lines != 2 {
		t.Fatalf("line count: got %d, want 2", lines)
	}
}
