package classifier

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"mevscope/internal/model"
	"mevscope/internal/token"
)

// TransferTopic is keccak("Transfer(address,address,uint256)"), the
// canonical ERC20 transfer event signature.
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// rawTransfer is a decoded transfer log before amount scaling.
type rawTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// decodeTransferLog decodes the canonical transfer event shape: topic0
// is the transfer signature, topics 1 and 2 carry the left-padded
// from/to addresses, the data holds the big-endian amount. Any other
// shape returns false.
func decodeTransferLog(log model.LogEvent) (rawTransfer, bool) {
	if len(log.Topics) < 3 || log.Topics[0] != TransferTopic {
		return rawTransfer{}, false
	}
	return rawTransfer{
		Token:  log.Address,
		From:   common.BytesToAddress(log.Topics[1].Bytes()),
		To:     common.BytesToAddress(log.Topics[2].Bytes()),
		Amount: new(big.Int).SetBytes(log.Data),
	}, true
}

// transferData is a transfer with its amount scaled to token units.
type transferData struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount decimal.Decimal
}

// scaleAmount converts a raw integer amount into token units. Unknown
// tokens keep the raw value at scale zero so equality comparisons stay
// consistent across passes.
func scaleAmount(tokens token.Resolver, addr common.Address, raw *big.Int) decimal.Decimal {
	if tokens != nil {
		if meta, err := tokens.Meta(addr); err == nil {
			return decimal.NewFromBigInt(raw, -int32(meta.Decimals))
		}
	}
	return decimal.NewFromBigInt(raw, 0)
}

// collectTransfers flattens a subtree's actions into transfer data:
// explicit Transfer actions directly, plus canonical transfer logs
// still held by Unclassified nodes.
func collectTransfers(tokens token.Resolver, actions []model.Action) []transferData {
	var transfers []transferData
	for _, action := range actions {
		if a, ok := action.(model.Transfer); ok {
			transfers = append(transfers, transferData{Token: a.Token, From: a.From, To: a.To, Amount: a.Amount})
			continue
		}
		for _, log := range model.ActionLogs(action) {
			if raw, ok := decodeTransferLog(log); ok {
				transfers = append(transfers, transferData{
					Token:  raw.Token,
					From:   raw.From,
					To:     raw.To,
					Amount: scaleAmount(tokens, raw.Token, raw.Amount),
				})
			}
		}
	}
	return transfers
}
