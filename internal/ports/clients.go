package ports

import "context"

// SettlementClient is the external value-movement primitive. A transfer either
// fully succeeds or fully fails; the engine never observes partial settlement.
// Implementations may synchronously call back into the engine.
type SettlementClient interface {
	Transfer(ctx context.Context, identity string, amount int64) error
}
