package model

// TypedEvent is a decoded pool or factory event enriched with metadata.
// Address is the emitting contract; PoolAddress is the pool the event applies
// to (for factory events the two differ).
type TypedEvent struct {
	ChainID     uint64
	BlockNumber uint64
	BlockHash   string
	TxHash      string
	LogIndex    uint64
	Address     string
	PoolAddress string
	EventName   string
	Timestamp   uint64
	Sender      string
	Decoded     interface{}
}

// Key returns the event's idempotency key.
func (e *TypedEvent) Key() ActivityKey {
	return ActivityKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}
