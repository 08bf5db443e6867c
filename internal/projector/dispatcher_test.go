package projector

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pairScope/internal/amm"
	"pairScope/internal/model"
	"pairScope/internal/projection/memory"
)

const (
	testPool = "0x1111111111111111111111111111111111111111"
	testNFT  = "0x2222222222222222222222222222222222222222"
)

type stubInspector struct {
	cfg amm.PairConfig
	err error
}

func (s *stubInspector) InspectPair(_ context.Context, _ common.Address, _ bool) (amm.PairConfig, error) {
	return s.cfg, s.err
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	inspector := &stubInspector{cfg: amm.PairConfig{
		NFTContract:  testNFT,
		SpotPrice:    big.NewInt(1000),
		Delta:        big.NewInt(10),
		Fee:          big.NewInt(50),
		BondingCurve: "0x3333333333333333333333333333333333333333",
		Owner:        "0x4444444444444444444444444444444444444444",
	}}
	return NewDispatcher(store, inspector, nil, nil), store
}

func typedEvent(name, txHash string, logIndex uint64, decoded interface{}) *model.TypedEvent {
	return &model.TypedEvent{
		ChainID:     1,
		BlockNumber: 100,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     testPool,
		PoolAddress: testPool,
		EventName:   name,
		Timestamp:   1700000000,
		Sender:      "0x5555555555555555555555555555555555555555",
		Decoded:     decoded,
	}
}

func createTestPool(t *testing.T, d *Dispatcher) {
	t.Helper()
	event := typedEvent("NewERC721Pair", "0xaa", 0, model.PairCreatedEvent{
		Variant:    model.VariantERC721ETH,
		InitialIDs: []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
	})
	if err := d.Apply(context.Background(), event); err != nil {
		t.Fatalf("create pool: %v", err)
	}
}

func TestCreationStartsWithZeroBalances(t *testing.T) {
	d, store := newTestDispatcher(t)
	createTestPool(t, d)

	pool, err := store.GetPool(context.Background(), testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.TokenBalance.Sign() != 0 || pool.NFTBalance.Sign() != 0 {
		t.Fatalf("new pool has nonzero balances: token=%s nft=%s", pool.TokenBalance, pool.NFTBalance)
	}
	if pool.NFTContract != testNFT {
		t.Fatalf("nft contract = %s, want %s", pool.NFTContract, testNFT)
	}
	if pool.SpotPrice.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("spot price = %s, want 1000", pool.SpotPrice)
	}
}

func TestDuplicateCreationIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(t)
	createTestPool(t, d)

	event := typedEvent("NewERC721Pair", "0xab", 0, model.PairCreatedEvent{Variant: model.VariantERC721ETH})
	if err := d.Apply(context.Background(), event); err == nil {
		t.Fatal("expected duplicate creation to fail")
	}
}

func TestCreationRegistersPool(t *testing.T) {
	store := memory.NewStore()
	var registered []common.Address
	d := NewDispatcher(store, &stubInspector{}, func(pool common.Address) {
		registered = append(registered, pool)
	}, nil)

	event := typedEvent("NewERC1155Pair", "0xac", 0, model.PairCreatedEvent{
		Variant:        model.VariantERC1155ETH,
		InitialBalance: big.NewInt(40),
	})
	if err := d.Apply(context.Background(), event); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if len(registered) != 1 || registered[0] != common.HexToAddress(testPool) {
		t.Fatalf("expected one registration for %s, got %v", testPool, registered)
	}
}

func TestCreationSurvivesInspectorFailure(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(store, &stubInspector{err: context.DeadlineExceeded}, nil, nil)

	event := typedEvent("NewERC721Pair", "0xad", 0, model.PairCreatedEvent{Variant: model.VariantERC721ETH})
	if err := d.Apply(context.Background(), event); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pool, err := store.GetPool(context.Background(), testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.Variant != model.VariantERC721ETH {
		t.Fatalf("variant = %s, want erc721_eth", pool.Variant)
	}
}

func TestDepositSwapLifecycle(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	createTestPool(t, d)

	deposit := typedEvent("NFTDeposit", "0xb1", 1, model.NFTDepositEvent{
		IDs: []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
	})
	if err := d.Apply(ctx, deposit); err != nil {
		t.Fatalf("nft deposit: %v", err)
	}

	tokenDeposit := typedEvent("TokenDeposit", "0xb2", 1, model.TokenDepositEvent{Amount: big.NewInt(500)})
	if err := d.Apply(ctx, tokenDeposit); err != nil {
		t.Fatalf("token deposit: %v", err)
	}

	quantity, err := model.QuantityFromIDs([]*big.Int{big.NewInt(1)})
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}
	swap := typedEvent("SwapNFTOutPair", "0xb3", 2, model.SwapNFTOutEvent{
		AmountIn: big.NewInt(100),
		Quantity: quantity,
	})
	if err := d.Apply(ctx, swap); err != nil {
		t.Fatalf("swap: %v", err)
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.NFTBalance.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("nft balance = %s, want 2", pool.NFTBalance)
	}
	if pool.TokenBalance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("token balance = %s, want 600", pool.TokenBalance)
	}

	records, err := store.PoolActivity(ctx, testPool, 0, 0)
	if err != nil {
		t.Fatalf("pool activity: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ledger has %d records, want 3", len(records))
	}
	swaps := 0
	for _, record := range records {
		if record.Kind == model.ActivitySwap {
			swaps++
			if record.Type != model.SwapSell {
				t.Fatalf("swap type = %s, want sell", record.Type)
			}
			if record.TokenAmount.Cmp(big.NewInt(100)) != 0 {
				t.Fatalf("swap token amount = %s, want 100", record.TokenAmount)
			}
		}
	}
	if swaps != 1 {
		t.Fatalf("ledger has %d swap records, want 1", swaps)
	}
}

func TestReplayedEventIsIgnored(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	createTestPool(t, d)

	deposit := typedEvent("TokenDeposit", "0xc1", 1, model.TokenDepositEvent{Amount: big.NewInt(500)})
	if err := d.Apply(ctx, deposit); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := d.Apply(ctx, deposit); err != nil {
		t.Fatalf("replay apply: %v", err)
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.TokenBalance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("token balance = %s, want 500 after replay", pool.TokenBalance)
	}
	records, err := store.PoolActivity(ctx, testPool, 0, 0)
	if err != nil {
		t.Fatalf("pool activity: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1 after replay", len(records))
	}
}

func TestUnknownPoolEventIsSkipped(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	deposit := typedEvent("TokenDeposit", "0xd1", 1, model.TokenDepositEvent{Amount: big.NewInt(500)})
	if err := d.Apply(ctx, deposit); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	update := typedEvent("SpotPriceUpdate", "0xd2", 1, model.SpotPriceUpdateEvent{NewSpotPrice: big.NewInt(9)})
	if err := d.Apply(ctx, update); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if _, err := store.GetPool(ctx, testPool); err == nil {
		t.Fatal("pool should not exist")
	}
}

func TestSwapInMovesTokensOut(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	createTestPool(t, d)

	tokenDeposit := typedEvent("TokenDeposit", "0xe1", 1, model.TokenDepositEvent{Amount: big.NewInt(1000)})
	if err := d.Apply(ctx, tokenDeposit); err != nil {
		t.Fatalf("token deposit: %v", err)
	}

	quantity, err := model.QuantityFromIDs([]*big.Int{big.NewInt(7), big.NewInt(8)})
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}
	swap := typedEvent("SwapNFTInPair", "0xe2", 1, model.SwapNFTInEvent{
		AmountOut: big.NewInt(300),
		Quantity:  quantity,
	})
	if err := d.Apply(ctx, swap); err != nil {
		t.Fatalf("swap: %v", err)
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.TokenBalance.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("token balance = %s, want 700", pool.TokenBalance)
	}
	if pool.NFTBalance.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("nft balance = %s, want 2", pool.NFTBalance)
	}
}

func TestParameterUpdatesOverwrite(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	createTestPool(t, d)

	events := []*model.TypedEvent{
		typedEvent("SpotPriceUpdate", "0xf1", 1, model.SpotPriceUpdateEvent{NewSpotPrice: big.NewInt(2000)}),
		typedEvent("DeltaUpdate", "0xf2", 1, model.DeltaUpdateEvent{NewDelta: big.NewInt(25)}),
		typedEvent("FeeUpdate", "0xf3", 1, model.FeeUpdateEvent{NewFee: big.NewInt(75)}),
		typedEvent("AssetRecipientChange", "0xf4", 1, model.AssetRecipientChangeEvent{
			Recipient: "0x6666666666666666666666666666666666666666",
		}),
	}
	for _, event := range events {
		if err := d.Apply(ctx, event); err != nil {
			t.Fatalf("%s: %v", event.EventName, err)
		}
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.SpotPrice.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("spot price = %s, want 2000", pool.SpotPrice)
	}
	if pool.Delta.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("delta = %s, want 25", pool.Delta)
	}
	if pool.Fee.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("fee = %s, want 75", pool.Fee)
	}
	if pool.AssetRecipient != "0x6666666666666666666666666666666666666666" {
		t.Fatalf("asset recipient = %s", pool.AssetRecipient)
	}
	// Update events never touch balances.
	if pool.TokenBalance.Sign() != 0 || pool.NFTBalance.Sign() != 0 {
		t.Fatalf("updates changed balances: token=%s nft=%s", pool.TokenBalance, pool.NFTBalance)
	}
}

func TestERC1155DepositBackfillsNFTID(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(store, &stubInspector{cfg: amm.PairConfig{NFTContract: testNFT}}, nil, nil)
	ctx := context.Background()

	create := typedEvent("NewERC1155Pair", "0xaa", 0, model.PairCreatedEvent{
		Variant:        model.VariantERC1155ETH,
		InitialBalance: big.NewInt(40),
	})
	if err := d.Apply(ctx, create); err != nil {
		t.Fatalf("create pool: %v", err)
	}

	deposit := typedEvent("ERC1155Deposit", "0xab", 1, model.ERC1155DepositEvent{
		ID:     big.NewInt(42),
		Amount: big.NewInt(40),
	})
	if err := d.Apply(ctx, deposit); err != nil {
		t.Fatalf("erc1155 deposit: %v", err)
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.NFTID == nil || pool.NFTID.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("nft id = %v, want 42", pool.NFTID)
	}
	if pool.NFTBalance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("nft balance = %s, want 40", pool.NFTBalance)
	}
}

func TestBalancesMatchLedgerReplay(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	createTestPool(t, d)

	events := []*model.TypedEvent{
		typedEvent("TokenDeposit", "0x01", 1, model.TokenDepositEvent{Amount: big.NewInt(900)}),
		typedEvent("NFTDeposit", "0x02", 1, model.NFTDepositEvent{IDs: []*big.Int{big.NewInt(5), big.NewInt(6)}}),
		typedEvent("TokenWithdrawal", "0x03", 1, model.TokenWithdrawalEvent{Amount: big.NewInt(200)}),
		typedEvent("NFTWithdrawal", "0x04", 1, model.NFTWithdrawalEvent{IDs: []*big.Int{big.NewInt(5)}}),
	}
	for _, event := range events {
		if err := d.Apply(ctx, event); err != nil {
			t.Fatalf("%s: %v", event.EventName, err)
		}
	}

	records, err := store.PoolActivity(ctx, testPool, 0, 0)
	if err != nil {
		t.Fatalf("pool activity: %v", err)
	}

	tokenSum := new(big.Int)
	nftSum := new(big.Int)
	for _, record := range records {
		sign := int64(1)
		if record.Kind == model.ActivityWithdrawal {
			sign = -1
		}
		if record.TokenAmount != nil {
			tokenSum.Add(tokenSum, new(big.Int).Mul(big.NewInt(sign), record.TokenAmount))
		}
		nftSum.Add(nftSum, new(big.Int).Mul(big.NewInt(sign), record.Quantity.Count()))
	}

	pool, err := store.GetPool(ctx, testPool)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.TokenBalance.Cmp(tokenSum) != 0 {
		t.Fatalf("token balance %s does not match ledger sum %s", pool.TokenBalance, tokenSum)
	}
	if pool.NFTBalance.Cmp(nftSum) != 0 {
		t.Fatalf("nft balance %s does not match ledger sum %s", pool.NFTBalance, nftSum)
	}
}
