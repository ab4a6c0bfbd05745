package protocol

import (
	"go.uber.org/zap"

	"mevscope/internal/model"
	"mevscope/internal/token"
)

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Tokens token.Resolver
	Logger *zap.Logger
}

// Decoder turns one protocol call's trace record into a typed action.
// Implementations are registered per (pool address, 4-byte call
// signature); a decode error degrades the node to unclassified rather
// than failing the block.
type Decoder interface {
	// Signature is the 4-byte selector of the call this decoder handles.
	Signature() [4]byte
	Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error)
}
