package classifier

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"mevscope/internal/model"
	"mevscope/internal/protocol"
	"mevscope/internal/token"
)

var (
	userAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	exchangeAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenA       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB       = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC       = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

func testResolver() *token.StaticResolver {
	r := token.NewStaticResolver()
	for _, addr := range []common.Address{tokenA, tokenB, tokenC} {
		r.Set(token.Meta{Address: addr, Symbol: "TKN", Decimals: 0})
	}
	return r
}

func transferLog(tok, from, to common.Address, amount int64) model.LogEvent {
	return model.LogEvent{
		Address: tok,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: hexutil.Bytes(common.BigToHash(big.NewInt(amount)).Bytes()),
	}
}

func testHeader() *types.Header {
	return &types.Header{
		Number:   big.NewInt(100),
		BaseFee:  big.NewInt(10),
		Coinbase: common.HexToAddress("0x00000000000000000000000000000000c01dbase"),
	}
}

func TestClassifyTransferFallback(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)

	tx := model.TxTrace{
		TxHash:            common.HexToHash("0x01"),
		GasUsed:           21000,
		EffectiveGasPrice: 15,
		Traces: []model.TraceRecord{
			{From: userAddr, To: exchangeAddr, TraceAddress: nil},
			{
				From:         tokenA,
				To:           userAddr,
				TraceAddress: []int{0},
				Logs:         []model.LogEvent{transferLog(tokenA, userAddr, exchangeAddr, 500)},
			},
		},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, testHeader())
	root := tree.GetRoot(tx.TxHash)
	if root == nil {
		t.Fatalf("root not found")
	}

	node := &root.Nodes[1]
	transfer, ok := node.Action.(model.Transfer)
	if !ok {
		t.Fatalf("node 1 action: got %T", node.Action)
	}
	if transfer.Token != tokenA || transfer.From != userAddr || transfer.To != exchangeAddr {
		t.Fatalf("transfer fields mismatch: %+v", transfer)
	}
	if transfer.Amount.String() != "500" {
		t.Fatalf("transfer amount: got %s", transfer.Amount)
	}
	if !node.Finalized {
		t.Fatalf("transfer node not finalized")
	}
}

func TestClassifyIgnoresForeignLogs(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)

	// The single transfer log is emitted by a contract other than the
	// caller, so the record stays unclassified with no residual logs.
	tx := model.TxTrace{
		TxHash: common.HexToHash("0x02"),
		Traces: []model.TraceRecord{
			{
				From:         userAddr,
				To:           tokenA,
				TraceAddress: nil,
				Logs:         []model.LogEvent{transferLog(tokenA, userAddr, exchangeAddr, 500)},
			},
		},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, testHeader())
	node := tree.GetRoot(tx.TxHash).Head()

	unclassified, ok := node.Action.(model.Unclassified)
	if !ok {
		t.Fatalf("head action: got %T", node.Action)
	}
	if len(unclassified.Logs) != 0 {
		t.Fatalf("residual logs: got %d, want 0", len(unclassified.Logs))
	}
}

func TestClassifyUnclassifiedKeepsResidualLogs(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)

	tx := model.TxTrace{
		TxHash: common.HexToHash("0x03"),
		Traces: []model.TraceRecord{
			{
				From:         tokenA,
				To:           userAddr,
				TraceAddress: nil,
				Logs: []model.LogEvent{
					transferLog(tokenA, userAddr, exchangeAddr, 100),
					transferLog(tokenA, exchangeAddr, userAddr, 200),
				},
			},
		},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, testHeader())
	node := tree.GetRoot(tx.TxHash).Head()

	unclassified, ok := node.Action.(model.Unclassified)
	if !ok {
		t.Fatalf("head action: got %T", node.Action)
	}
	if len(unclassified.Logs) != 2 {
		t.Fatalf("residual logs: got %d, want 2", len(unclassified.Logs))
	}
}

func TestGasDetails(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)
	header := testHeader()

	value := hexutil.Big(*big.NewInt(42))
	tx := model.TxTrace{
		TxHash:            common.HexToHash("0x04"),
		GasUsed:           50000,
		EffectiveGasPrice: 15,
		Traces: []model.TraceRecord{
			{From: userAddr, To: exchangeAddr, TraceAddress: nil},
			{From: exchangeAddr, To: header.Coinbase, Value: &value, TraceAddress: []int{0}},
		},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, header)
	gas := tree.GasDetails(tx.TxHash)
	if gas == nil {
		t.Fatalf("gas details not found")
	}

	if gas.PriorityFee != 5 {
		t.Fatalf("priority fee: got %d, want 5", gas.PriorityFee)
	}
	if gas.BaseFeeMissing {
		t.Fatalf("base fee flagged missing")
	}
	if gas.CoinbaseTransfer == nil || gas.CoinbaseTransfer.Int64() != 42 {
		t.Fatalf("coinbase transfer: got %v", gas.CoinbaseTransfer)
	}
	if paid := gas.GasPaid(); paid.Cmp(big.NewInt(50000*15)) != 0 {
		t.Fatalf("gas paid: got %s", paid)
	}
}

func TestGasDetailsWithoutBaseFee(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)
	header := testHeader()
	header.BaseFee = nil

	tx := model.TxTrace{
		TxHash:            common.HexToHash("0x05"),
		EffectiveGasPrice: 15,
		Traces:            []model.TraceRecord{{From: userAddr, To: exchangeAddr}},
	}

	gas := c.BuildTree([]model.TxTrace{tx}, header).GasDetails(tx.TxHash)
	if gas == nil {
		t.Fatalf("gas details not found")
	}
	if !gas.BaseFeeMissing {
		t.Fatalf("base fee not flagged missing")
	}
	if gas.PriorityFee != 0 {
		t.Fatalf("priority fee: got %d, want 0", gas.PriorityFee)
	}
}

func TestGasDetailsClampsPriorityFee(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)
	header := testHeader()

	// An unfilled effective gas price below the base fee must not wrap
	// the priority fee around zero.
	tx := model.TxTrace{
		TxHash:            common.HexToHash("0x0a"),
		GasUsed:           21000,
		EffectiveGasPrice: 0,
		Traces:            []model.TraceRecord{{From: userAddr, To: exchangeAddr}},
	}

	gas := c.BuildTree([]model.TxTrace{tx}, header).GasDetails(tx.TxHash)
	if gas == nil {
		t.Fatalf("gas details not found")
	}
	if gas.PriorityFee != 0 {
		t.Fatalf("priority fee: got %d, want 0", gas.PriorityFee)
	}
	if gas.BaseFeeMissing {
		t.Fatalf("base fee flagged missing")
	}
}

func TestBuildTreeSkipsEmptyTransactions(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 2)

	txs := []model.TxTrace{
		{TxHash: common.HexToHash("0x06")},
		{TxHash: common.HexToHash("0x07"), Traces: []model.TraceRecord{{From: userAddr, To: exchangeAddr}}},
	}

	tree := c.BuildTree(txs, testHeader())
	if len(tree.Roots) != 1 {
		t.Fatalf("root count: got %d, want 1", len(tree.Roots))
	}
	if tree.Roots[0].TxHash != txs[1].TxHash {
		t.Fatalf("wrong surviving root: %s", tree.Roots[0].TxHash.Hex())
	}
}

func TestBuildTreeIsDeterministic(t *testing.T) {
	txs := make([]model.TxTrace, 0, 8)
	for i := 0; i < 8; i++ {
		txs = append(txs, model.TxTrace{
			TxHash: common.BigToHash(big.NewInt(int64(i + 1))),
			Traces: []model.TraceRecord{
				{From: userAddr, To: exchangeAddr, TraceAddress: nil},
				{
					From:         tokenA,
					To:           userAddr,
					TraceAddress: []int{0},
					Logs:         []model.LogEvent{transferLog(tokenA, userAddr, exchangeAddr, int64(i))},
				},
			},
		})
	}

	build := func() []model.ActionRecord {
		c := New(protocol.NewRegistry(), testResolver(), nil, nil, 8)
		return c.BuildTree(txs, testHeader()).Records(100)
	}

	first := build()
	for run := 0; run < 3; run++ {
		if got := build(); !reflect.DeepEqual(first, got) {
			t.Fatalf("records differ between runs")
		}
	}
}

func TestClassifyStaticPoolSwap(t *testing.T) {
	poolABI, err := protocol.V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoders, err := protocol.NewUniswapV3Decoders()
	if err != nil {
		t.Fatalf("decoders: %v", err)
	}

	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	registry := protocol.NewRegistry()
	registry.Register(pool, protocol.UniswapV3, tokenA, tokenB, decoders...)

	c := New(registry, testResolver(), nil, nil, 1)

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(1000),
		big.NewInt(-40),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	tx := model.TxTrace{
		TxHash: common.HexToHash("0x09"),
		Traces: []model.TraceRecord{
			{
				From:  userAddr,
				To:    pool,
				Input: hexutil.Bytes(poolABI.Methods["swap"].ID),
				Logs: []model.LogEvent{
					{
						Address: pool,
						Topics: []common.Hash{
							poolABI.Events["Swap"].ID,
							common.BytesToHash(userAddr.Bytes()),
							common.BytesToHash(userAddr.Bytes()),
						},
						Data: hexutil.Bytes(data),
					},
				},
			},
		},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, testHeader())
	root := tree.GetRoot(tx.TxHash)

	swap, ok := root.Head().Action.(model.Swap)
	if !ok {
		t.Fatalf("head action: got %T", root.Head().Action)
	}
	if swap.Pool != pool || swap.TokenIn != tokenA || swap.TokenOut != tokenB {
		t.Fatalf("swap fields: %+v", swap)
	}
	if !root.Head().Finalized {
		t.Fatalf("decoded swap not finalized")
	}

	records := tree.Records(100)
	if len(records) != 1 || records[0].NodeIndex != 0 || records[0].Kind != string(model.KindSwap) {
		t.Fatalf("records: %+v", records)
	}
}

func TestBuildTreeFinalizesForest(t *testing.T) {
	c := New(protocol.NewRegistry(), testResolver(), nil, nil, 1)

	tx := model.TxTrace{
		TxHash: common.HexToHash("0x08"),
		Traces: []model.TraceRecord{{From: userAddr, To: exchangeAddr}},
	}

	tree := c.BuildTree([]model.TxTrace{tx}, testHeader())
	if !tree.Finalized() {
		t.Fatalf("tree not finalized")
	}
	if !tree.GetRoot(tx.TxHash).Head().Finalized {
		t.Fatalf("head node not finalized")
	}
}
