/*

This file contains the interfaces between the engine and the Meridian
protocol: one for reading positions, one for handing off execution. The
engine only ever observes positions and emits intents, so these two surfaces
are all it knows about the protocol.

*/

package position

import (
	"context"

	"github.com/meridian-protocol/aco/internal/types"
)

// Source reads collateralized debt positions from the protocol.
type Source interface {
	ActivePositions(ctx context.Context) ([]types.PositionSnapshot, error)
	GetSnapshot(ctx context.Context, id uint64) (types.PositionSnapshot, error)
}

// SwapExecutor submits a collateral swap for execution. Implementations
// decide what "execution" means: the gateway client forwards intents to the
// protocol's executor, the no-op executor records them and stops there.
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, intent types.SwapIntent) (types.ExecutionReceipt, error)
}
