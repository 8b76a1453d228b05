package amm

import "errors"

// Simulation and refresh failures wrap one of these sentinels so callers can
// branch with errors.Is without caring which pool family produced them.
var (
	// ErrUnknownToken marks a token address that is not part of the pool's pair.
	ErrUnknownToken = errors.New("unknown token")

	// ErrInsufficientLiquidity marks a trade the pool's reserves cannot satisfy.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrDivisionByZero marks a degenerate pool state, such as a zero reserve
	// on the priced side of the pair.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnderflow marks an arithmetic input outside the supported domain,
	// such as a negative trade amount.
	ErrUnderflow = errors.New("underflow")

	// ErrNetworkFailure marks a failed provider round trip.
	ErrNetworkFailure = errors.New("network failure")

	// ErrDecodeFailure marks a response or stored payload that could not be
	// decoded. Decode failures are not retryable.
	ErrDecodeFailure = errors.New("decode failure")
)
