package settlement

import (
	"context"
	"sync"
)

// RailClient fronts the external settlement network. Transfers are assumed
// idempotent and atomic on the rail side; until the rail integration lands
// this client acknowledges unconditionally, matching local/dev runtimes.
type RailClient struct{ addr string }

func NewRailClient(addr string) *RailClient { return &RailClient{addr: addr} }

func (c *RailClient) Transfer(_ context.Context, identity string, amount int64) error {
	_ = identity
	_ = amount
	return nil
}

type TransferRecord struct {
	Identity string
	Amount   int64
}

// MemoryRail is the test double: it records transfers, can be told to fail,
// and can run a hook mid-transfer to exercise reentrant callbacks.
type MemoryRail struct {
	mu        sync.Mutex
	failWith  error
	transfers []TransferRecord

	// Hook runs inside Transfer, before the outcome is decided. Used to
	// simulate a rail that synchronously calls back into the engine.
	Hook func(ctx context.Context, identity string, amount int64)
}

func NewMemoryRail() *MemoryRail { return &MemoryRail{} }

// FailWith makes every subsequent Transfer return err. Pass nil to heal.
func (r *MemoryRail) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *MemoryRail) Transfers() []TransferRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransferRecord, len(r.transfers))
	copy(out, r.transfers)
	return out
}

func (r *MemoryRail) Transfer(ctx context.Context, identity string, amount int64) error {
	if r.Hook != nil {
		r.Hook(ctx, identity, amount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.transfers = append(r.transfers, TransferRecord{Identity: identity, Amount: amount})
	return nil
}
