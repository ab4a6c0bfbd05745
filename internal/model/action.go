package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Kind identifies the variant of a classified Action.
type Kind string

const (
	KindSwap         Kind = "swap"
	KindMint         Kind = "mint"
	KindBurn         Kind = "burn"
	KindTransfer     Kind = "transfer"
	KindUnclassified Kind = "unclassified"
)

// Action is the normalized interpretation of one trace record. Concrete
// variants are Swap, Mint, Burn, Transfer and Unclassified; consumers
// switch on the concrete type or on Kind().
type Action interface {
	Kind() Kind
}

// Swap is a two-token exchange executed against a pool.
type Swap struct {
	Pool      common.Address
	From      common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
}

func (Swap) Kind() Kind { return KindSwap }

// Mint is a liquidity provision into a pool.
type Mint struct {
	Pool      common.Address
	From      common.Address
	Recipient common.Address
	Tokens    []common.Address
	Amounts   []decimal.Decimal
}

func (Mint) Kind() Kind { return KindMint }

// Burn is a liquidity withdrawal from a pool.
type Burn struct {
	Pool      common.Address
	From      common.Address
	Recipient common.Address
	Tokens    []common.Address
	Amounts   []decimal.Decimal
}

func (Burn) Kind() Kind { return KindBurn }

// Transfer is a single token transfer decoded from the canonical
// Transfer(address,address,uint256) event.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount decimal.Decimal
}

func (Transfer) Kind() Kind { return KindTransfer }

// Unclassified carries the raw trace record and the residual logs that
// no classifier consumed. These nodes remain eligible for dynamic
// exchange inference.
type Unclassified struct {
	Trace *TraceRecord
	Logs  []LogEvent
}

func (Unclassified) Kind() Kind { return KindUnclassified }

// ActionLogs returns the residual logs an action still exposes.
// Only Unclassified nodes carry logs; every other variant has
// consumed them.
func ActionLogs(a Action) []LogEvent {
	if u, ok := a.(Unclassified); ok {
		return u.Logs
	}
	return nil
}
