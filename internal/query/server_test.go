package query

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"pairScope/internal/model"
	"pairScope/internal/projection/memory"
)

const (
	poolA = "0x1111111111111111111111111111111111111111"
	poolB = "0x2222222222222222222222222222222222222222"
	nftA  = "0x3333333333333333333333333333333333333333"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	pools := []*model.Pool{
		{
			Address:      poolA,
			NFTContract:  nftA,
			Variant:      model.VariantERC721ETH,
			SpotPrice:    big.NewInt(2000),
			Delta:        big.NewInt(10),
			Fee:          big.NewInt(0),
			TokenBalance: big.NewInt(0),
			NFTBalance:   big.NewInt(0),
		},
		{
			Address:      poolB,
			NFTContract:  nftA,
			Variant:      model.VariantERC721ETH,
			SpotPrice:    big.NewInt(1000),
			Delta:        big.NewInt(10),
			Fee:          big.NewInt(0),
			TokenBalance: big.NewInt(0),
			NFTBalance:   big.NewInt(0),
		},
	}
	for _, pool := range pools {
		if err := store.CreatePool(ctx, pool); err != nil {
			t.Fatalf("create pool: %v", err)
		}
	}

	activity := &model.Activity{
		Kind:        model.ActivityDeposit,
		Pool:        poolA,
		Type:        model.AssetToken,
		TokenAmount: big.NewInt(500),
		Timestamp:   1700000000,
		BlockNumber: 100,
		TxHash:      "0xaa",
		LogIndex:    1,
	}
	if err := store.ApplyActivity(ctx, activity, big.NewInt(500), nil); err != nil {
		t.Fatalf("apply activity: %v", err)
	}

	return store
}

func TestGetPool(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools/" + poolA)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var pool map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&pool); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pool["address"] != poolA {
		t.Fatalf("address = %v, want %s", pool["address"], poolA)
	}
	if pool["current_token_balance"] != "500" {
		t.Fatalf("token balance = %v, want 500", pool["current_token_balance"])
	}
}

func TestGetPoolNotFound(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools/0x9999999999999999999999999999999999999999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetPoolBadAddress(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools/not-an-address")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListPoolsOrderedBySpotPrice(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools?nft=" + nftA)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Pools []map[string]interface{} `json:"pools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Pools) != 2 {
		t.Fatalf("pools = %d, want 2", len(body.Pools))
	}
	// Cheapest first.
	if body.Pools[0]["address"] != poolB {
		t.Fatalf("first pool = %v, want %s", body.Pools[0]["address"], poolB)
	}
}

func TestListPoolsRequiresNFT(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPoolActivity(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools/" + poolA + "/activity")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Activity []map[string]interface{} `json:"activity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Activity) != 1 {
		t.Fatalf("activity = %d, want 1", len(body.Activity))
	}
	if body.Activity[0]["kind"] != "deposit" {
		t.Fatalf("kind = %v, want deposit", body.Activity[0]["kind"])
	}
	if body.Activity[0]["token_amount"] != "500" {
		t.Fatalf("token_amount = %v, want 500", body.Activity[0]["token_amount"])
	}
}

func TestPoolActivityEmptyForQuietPool(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools/" + poolB + "/activity")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Activity []map[string]interface{} `json:"activity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Activity) != 0 {
		t.Fatalf("activity = %d, want 0", len(body.Activity))
	}
}

func TestPaginationLimits(t *testing.T) {
	server := NewServer(seedStore(t), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pools?nft=" + nftA + "&limit=1&offset=1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Pools []map[string]interface{} `json:"pools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Pools) != 1 {
		t.Fatalf("pools = %d, want 1", len(body.Pools))
	}
	if body.Pools[0]["address"] != poolA {
		t.Fatalf("second page pool = %v, want %s", body.Pools[0]["address"], poolA)
	}

	resp, err = http.Get(ts.URL + "/v1/pools?nft=" + nftA + "&limit=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
