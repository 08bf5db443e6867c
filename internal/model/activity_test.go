package model

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestActivityValidate(t *testing.T) {
	quantity, err := QuantityFromIDs([]*big.Int{big.NewInt(1)})
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}

	valid := Activity{
		Kind:     ActivityDeposit,
		Pool:     "0x1111111111111111111111111111111111111111",
		Type:     AssetNFT,
		Quantity: quantity,
		TxHash:   "0xaa",
		LogIndex: 1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid activity rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Activity)
	}{
		{"bad kind", func(a *Activity) { a.Kind = "mint" }},
		{"bad deposit type", func(a *Activity) { a.Type = "buy" }},
		{"bad swap type", func(a *Activity) { a.Kind = ActivitySwap; a.Type = AssetNFT }},
		{"no pool", func(a *Activity) { a.Pool = "" }},
		{"no tx hash", func(a *Activity) { a.TxHash = "" }},
	}
	for _, tc := range cases {
		activity := valid
		tc.mutate(&activity)
		if err := activity.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestActivityKeyString(t *testing.T) {
	key := ActivityKey{TxHash: "0xabc", LogIndex: 12}
	if key.String() != "0xabc-12" {
		t.Fatalf("key = %s", key.String())
	}
}

func TestActivityJSONRoundTrip(t *testing.T) {
	quantity, err := QuantityFromIDs([]*big.Int{big.NewInt(3), big.NewInt(4)})
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}

	original := Activity{
		Kind:        ActivitySwap,
		Pool:        "0x1111111111111111111111111111111111111111",
		Type:        SwapSell,
		TokenAmount: big.NewInt(1234),
		Quantity:    quantity,
		Timestamp:   1700000000,
		BlockNumber: 99,
		TxHash:      "0xbb",
		LogIndex:    2,
		Sender:      "0x2222222222222222222222222222222222222222",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Activity
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TokenAmount.Cmp(original.TokenAmount) != 0 {
		t.Fatalf("token amount = %s, want %s", decoded.TokenAmount, original.TokenAmount)
	}
	if decoded.Key() != original.Key() {
		t.Fatalf("key mismatch: %s != %s", decoded.Key(), original.Key())
	}
	ids := decoded.Quantity.IDs()
	if len(ids) != 2 || ids[1].Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("ids mismatch: %v", ids)
	}
}

func TestActivityJSONOmitsNilTokenAmount(t *testing.T) {
	activity := Activity{
		Kind:     ActivityDeposit,
		Pool:     "0x1111111111111111111111111111111111111111",
		Type:     AssetNFT,
		TxHash:   "0xcc",
		LogIndex: 3,
	}

	data, err := json.Marshal(activity)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, present := raw["token_amount"]; present {
		t.Fatal("nil token amount must be omitted")
	}
}
