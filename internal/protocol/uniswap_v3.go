package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"mevscope/internal/model"
	"mevscope/internal/token"
)

// NewUniswapV3Decoders builds the decoder set for a Uniswap V3 style
// pool: swap, mint and burn calls.
func NewUniswapV3Decoders() ([]Decoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse v3 pool abi: %w", err)
	}
	return []Decoder{
		&v3SwapDecoder{sig: methodSig(poolABI, "swap"), event: poolABI.Events["Swap"]},
		&v3MintDecoder{sig: methodSig(poolABI, "mint"), event: poolABI.Events["Mint"]},
		&v3BurnDecoder{sig: methodSig(poolABI, "burn"), event: poolABI.Events["Burn"]},
	}, nil
}

type v3SwapDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v3SwapDecoder) Signature() [4]byte { return d.sig }

func (d *v3SwapDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no swap event from pool %s", entry.Address.Hex())
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse swap topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack swap data: %w", err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}

	// Amounts are pool-perspective deltas: the positive side entered
	// the pool, the negative side left it.
	tokenIn, tokenOut := entry.Token0, entry.Token1
	rawIn, rawOut := amount0, amount1
	if amount0.Sign() < 0 {
		tokenIn, tokenOut = entry.Token1, entry.Token0
		rawIn, rawOut = amount1, amount0
	}
	if rawIn.Sign() <= 0 || rawOut.Sign() >= 0 {
		return nil, fmt.Errorf("unexpected swap deltas: %s / %s", amount0, amount1)
	}

	amountIn, err := token.Scale(ctx.Tokens, tokenIn, rawIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := token.Scale(ctx.Tokens, tokenOut, new(big.Int).Neg(rawOut))
	if err != nil {
		return nil, err
	}

	return model.Swap{
		Pool:      entry.Address,
		From:      indexed.Sender,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

type v3MintDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v3MintDecoder) Signature() [4]byte { return d.sig }

func (d *v3MintDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no mint event from pool %s", entry.Address.Hex())
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse mint topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack mint data: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	amounts, err := scalePair(ctx.Tokens, entry, values[2], values[3])
	if err != nil {
		return nil, err
	}

	return model.Mint{
		Pool:      entry.Address,
		From:      rec.From,
		Recipient: indexed.Owner,
		Tokens:    []common.Address{entry.Token0, entry.Token1},
		Amounts:   amounts,
	}, nil
}

type v3BurnDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v3BurnDecoder) Signature() [4]byte { return d.sig }

func (d *v3BurnDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no burn event from pool %s", entry.Address.Hex())
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse burn topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack burn data: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amounts, err := scalePair(ctx.Tokens, entry, values[1], values[2])
	if err != nil {
		return nil, err
	}

	return model.Burn{
		Pool:      entry.Address,
		From:      rec.From,
		Recipient: indexed.Owner,
		Tokens:    []common.Address{entry.Token0, entry.Token1},
		Amounts:   amounts,
	}, nil
}

func methodSig(parsed abi.ABI, name string) [4]byte {
	var sig [4]byte
	copy(sig[:], parsed.Methods[name].ID)
	return sig
}

// findPoolLog returns the first log emitted by the pool itself with
// the expected event signature.
func findPoolLog(rec *model.TraceRecord, pool common.Address, eventID common.Hash) (model.LogEvent, bool) {
	for _, log := range rec.Logs {
		if log.Address == pool && len(log.Topics) > 0 && log.Topics[0] == eventID {
			return log, true
		}
	}
	return model.LogEvent{}, false
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInt(value interface{}) (*big.Int, error) {
	b, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", value)
	}
	return b, nil
}

func scalePair(tokens token.Resolver, entry *Entry, v0, v1 interface{}) ([]decimal.Decimal, error) {
	raw0, err := asBigInt(v0)
	if err != nil {
		return nil, err
	}
	raw1, err := asBigInt(v1)
	if err != nil {
		return nil, err
	}
	amount0, err := token.Scale(tokens, entry.Token0, raw0)
	if err != nil {
		return nil, err
	}
	amount1, err := token.Scale(tokens, entry.Token1, raw1)
	if err != nil {
		return nil, err
	}
	return []decimal.Decimal{amount0, amount1}, nil
}
