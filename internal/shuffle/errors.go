package shuffle

import errorsmod "cosmossdk.io/errors"

// Codespace groups fair-shuffle failures. Any of them aborts the round in
// setup; the episode falls back to awaiting a fresh deal.
const Codespace = "shuffle"

var (
	ErrCommitmentMismatch = errorsmod.Register(Codespace, 2, "revealed seed does not match commitment")
	ErrPrematureReveal    = errorsmod.Register(Codespace, 3, "seed revealed before both commitments were posted")
	ErrInvalidSeed        = errorsmod.Register(Codespace, 4, "invalid shuffle seed")
)
