package storage

import "mevscope/internal/model"

// ActionSink is a sink for classified action records.
type ActionSink interface {
	PutActionBatch(records []model.ActionRecord) error
}

// TraceSink is a sink for raw block traces.
type TraceSink interface {
	PutBlockTrace(block model.BlockTrace) error
}
