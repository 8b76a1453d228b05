package amm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// Provider serves the read-only contract calls pool refreshes depend on.
// ethclient.Client satisfies it, as does chain.Client.
type Provider interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
