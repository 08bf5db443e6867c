package indexer

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry tracks the contract addresses whose logs are fetched: the factory
// plus every pool it has created. Pool creations register their pair address
// here synchronously so the very next filter call already includes it.
type Registry struct {
	mu    sync.Mutex
	known map[common.Address]struct{}
	order []common.Address
	fresh []common.Address
}

func NewRegistry(seed ...common.Address) *Registry {
	r := &Registry{known: make(map[common.Address]struct{})}
	for _, address := range seed {
		r.add(address)
	}
	return r
}

// Register adds an address if it is not already tracked.
func (r *Registry) Register(address common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[address]; ok {
		return
	}
	r.add(address)
	r.fresh = append(r.fresh, address)
}

func (r *Registry) add(address common.Address) {
	r.known[address] = struct{}{}
	r.order = append(r.order, address)
}

// Addresses returns every tracked address in registration order.
func (r *Registry) Addresses() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// DrainNew returns and clears the addresses registered since the last call.
// The runner uses it to re-scan a block range for pools created inside it.
func (r *Registry) DrainNew() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.fresh
	r.fresh = nil
	return out
}

// Len returns the number of tracked addresses.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
