package token

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"mevscope/internal/chain"
)

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// ChainResolver fetches token metadata over RPC with a TTL cache. It
// runs strictly before classification: Warm materializes everything a
// block needs into a StaticResolver the core can use without I/O.
type ChainResolver struct {
	chain  *chain.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewChainResolver(chainClient *chain.Client, ttl time.Duration, logger *zap.Logger) *ChainResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainResolver{
		chain:  chainClient,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Fetch loads token metadata via ERC20 calls, consulting the cache
// first.
func (r *ChainResolver) Fetch(ctx context.Context, address common.Address) (Meta, error) {
	if cached, ok := r.cache.Get(address.Hex()); ok {
		return cached.(Meta), nil
	}
	if r.chain == nil {
		return Meta{}, fmt.Errorf("chain client is nil")
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return Meta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	call := func(method string) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &address, Data: data}
		resp, err := r.chain.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	meta := Meta{Address: address}

	values, err := call("decimals")
	if err != nil {
		return Meta{}, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return Meta{}, fmt.Errorf("decimals: unexpected type %T", values[0])
	}
	meta.Decimals = decimals

	if values, err := call("symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", address.Hex()), zap.Error(err))
	}

	r.cache.Set(address.Hex(), meta, gocache.DefaultExpiration)
	return meta, nil
}

// Warm pre-resolves a set of tokens into the static resolver. A token
// that fails to resolve is skipped: the affected decodes degrade to
// unclassified rather than failing the block.
func (r *ChainResolver) Warm(ctx context.Context, addresses []common.Address, static *StaticResolver) {
	for _, address := range addresses {
		meta, err := r.Fetch(ctx, address)
		if err != nil {
			r.logger.Warn("token metadata fetch failed", zap.String("token", address.Hex()), zap.Error(err))
			continue
		}
		static.Set(meta)
	}
}
