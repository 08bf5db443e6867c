package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRegistryTracksNewPools(t *testing.T) {
	factory := common.HexToAddress("0x0000000000000000000000000000000000000001")
	pool := common.HexToAddress("0x0000000000000000000000000000000000000002")

	registry := NewRegistry(factory)
	if registry.Len() != 1 {
		t.Fatalf("len = %d, want 1", registry.Len())
	}
	if fresh := registry.DrainNew(); len(fresh) != 0 {
		t.Fatalf("seed addresses must not be fresh, got %v", fresh)
	}

	registry.Register(pool)
	registry.Register(pool)

	addresses := registry.Addresses()
	if len(addresses) != 2 {
		t.Fatalf("addresses = %v, want factory and pool", addresses)
	}

	fresh := registry.DrainNew()
	if len(fresh) != 1 || fresh[0] != pool {
		t.Fatalf("fresh = %v, want [%s]", fresh, pool.Hex())
	}
	if fresh := registry.DrainNew(); len(fresh) != 0 {
		t.Fatalf("second drain should be empty, got %v", fresh)
	}
}
