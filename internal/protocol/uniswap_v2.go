package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
	"mevscope/internal/token"
)

// NewUniswapV2Decoders builds the decoder set for a Uniswap V2 style
// pair: swap, mint and burn calls.
func NewUniswapV2Decoders() ([]Decoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 pair abi: %w", err)
	}
	return []Decoder{
		&v2SwapDecoder{sig: methodSig(pairABI, "swap"), event: pairABI.Events["Swap"]},
		&v2MintDecoder{sig: methodSig(pairABI, "mint"), event: pairABI.Events["Mint"]},
		&v2BurnDecoder{sig: methodSig(pairABI, "burn"), event: pairABI.Events["Burn"]},
	}, nil
}

type v2SwapDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v2SwapDecoder) Signature() [4]byte { return d.sig }

func (d *v2SwapDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no swap event from pair %s", entry.Address.Hex())
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse swap topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack swap data: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0In, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	amount1In, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	amount0Out, err := asBigInt(values[2])
	if err != nil {
		return nil, err
	}
	amount1Out, err := asBigInt(values[3])
	if err != nil {
		return nil, err
	}

	tokenIn, rawIn := entry.Token0, amount0In
	if amount0In.Sign() == 0 {
		tokenIn, rawIn = entry.Token1, amount1In
	}
	tokenOut, rawOut := entry.Token1, amount1Out
	if amount1Out.Sign() == 0 {
		tokenOut, rawOut = entry.Token0, amount0Out
	}
	if rawIn.Sign() == 0 || rawOut.Sign() == 0 {
		return nil, fmt.Errorf("empty swap legs: in %s out %s", rawIn, rawOut)
	}

	amountIn, err := token.Scale(ctx.Tokens, tokenIn, rawIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := token.Scale(ctx.Tokens, tokenOut, rawOut)
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

type v2MintDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v2MintDecoder) Signature() [4]byte { return d.sig }

func (d *v2MintDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no mint event from pair %s", entry.Address.Hex())
	}

	var indexed struct {
		Sender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse mint topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack mint data: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	amounts, err := scalePair(ctx.Tokens, entry, values[0], values[1])
	if err != nil {
		return nil, err
	}

	// The mint recipient is the to argument of the call.
	recipient, err := callAddressArg(rec.Input)
	if err != nil {
		return nil, err
	}

	return model.Mint{
		Pool:      entry.Address,
		From:      indexed.Sender,
		Recipient: recipient,
		Tokens:    []common.Address{entry.Token0, entry.Token1},
		Amounts:   amounts,
	}, nil
}

type v2BurnDecoder struct {
	sig   [4]byte
	event abi.Event
}

func (d *v2BurnDecoder) Signature() [4]byte { return d.sig }

func (d *v2BurnDecoder) Decode(ctx DecodeContext, entry *Entry, rec *model.TraceRecord) (model.Action, error) {
	log, ok := findPoolLog(rec, entry.Address, d.event.ID)
	if !ok {
		return nil, fmt.Errorf("no burn event from pair %s", entry.Address.Hex())
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse burn topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack burn data: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amounts, err := scalePair(ctx.Tokens, entry, values[0], values[1])
	if err != nil {
		return nil, err
	}

	return model.Burn{
		Pool:      entry.Address,
		From:      indexed.Sender,
		Recipient: indexed.To,
		Tokens:    []common.Address{entry.Token0, entry.Token1},
		Amounts:   amounts,
	}, nil
}

// callAddressArg extracts a single leading address argument from
// calldata (selector + one 32-byte word).
func callAddressArg(input []byte) (common.Address, error) {
	if len(input) < 4+32 {
		return common.Address{}, fmt.Errorf("calldata too short: %d bytes", len(input))
	}
	word := input[4 : 4+32]
	if new(big.Int).SetBytes(word[:12]).Sign() != 0 {
		return common.Address{}, fmt.Errorf("malformed address argument")
	}
	return common.BytesToAddress(word[12:]), nil
}
