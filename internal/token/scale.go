package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Scale converts a raw integer amount into token units using the
// token's decimals. Unknown tokens surface the resolver error so the
// caller can degrade that decode.
func Scale(r Resolver, address common.Address, raw *big.Int) (decimal.Decimal, error) {
	meta, err := r.Meta(address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(raw, -int32(meta.Decimals)), nil
}
